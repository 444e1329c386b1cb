package docstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDocument(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))

		switch r.URL.Path {
		case "/v1/documents/users/u1":
			_ = json.NewEncoder(w).Encode(map[string]any{"role": "teacher", "email": "a@b.c"})
		case "/v1/documents/users/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "key")

	doc, err := c.GetDocument(context.Background(), "users", "u1")
	require.NoError(t, err)
	assert.True(t, doc.Exists)
	assert.Equal(t, "teacher", doc.Fields["role"])

	doc, err = c.GetDocument(context.Background(), "users", "missing")
	require.NoError(t, err, "a missing document is not an error")
	assert.False(t, doc.Exists)

	_, err = c.GetDocument(context.Background(), "users", "boom")
	assert.Error(t, err)
}

func TestSetDocument(t *testing.T) {
	var gotPath string
	var gotFields map[string]any

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotFields))
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "key")

	err := c.SetDocument(context.Background(), "users", "u1", map[string]any{
		"role":      "student",
		"teacherId": "t-42",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/documents/users/u1", gotPath)
	assert.Equal(t, "student", gotFields["role"])
	assert.Equal(t, "t-42", gotFields["teacherId"])
}

func TestSetDocumentFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "key")

	err := c.SetDocument(context.Background(), "users", "u1", map[string]any{"role": "student"})
	assert.Error(t, err)
}
