package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCreds is an in-memory credential store for testing
type memCreds struct {
	token string
}

func (m *memCreds) SaveCredential(token string) error {
	m.token = token
	return nil
}

func (m *memCreds) LoadCredential() (string, error) {
	return m.token, nil
}

func (m *memCreds) ClearCredential() error {
	m.token = ""
	return nil
}

func testToken(t *testing.T, uid, email, name string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// mockBackend serves the accounts API surface the client uses
func mockBackend(t *testing.T, idToken string, failWith string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failWith != "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": failWith},
			})
			return
		}

		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword", "/v1/accounts:signUp":
			_ = json.NewEncoder(w).Encode(map[string]string{"idToken": idToken})
		case "/v1/accounts:update", "/v1/accounts:signOut":
			_ = json.NewEncoder(w).Encode(map[string]string{})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSubscribeInvokesImmediately(t *testing.T) {
	backend := mockBackend(t, "", "")
	defer backend.Close()

	c := NewClient(backend.URL, "key", nil, zerolog.Nop())

	var got *Handle
	called := false
	cancel := c.Subscribe(func(h *Handle) {
		called = true
		got = h
	})
	defer cancel()

	assert.True(t, called, "subscribe must deliver the current state immediately")
	assert.Nil(t, got)
}

func TestSignInWithPasswordNotifiesSubscribers(t *testing.T) {
	token := testToken(t, "u1", "a@b.c", "Alice")
	backend := mockBackend(t, token, "")
	defer backend.Close()

	creds := &memCreds{}
	c := NewClient(backend.URL, "key", creds, zerolog.Nop())

	var notified []*Handle
	cancel := c.Subscribe(func(h *Handle) {
		notified = append(notified, h)
	})
	defer cancel()

	require.NoError(t, c.SignInWithPassword(context.Background(), "a@b.c", "pw"))

	require.Len(t, notified, 2, "initial absence plus the sign-in")
	require.NotNil(t, notified[1])
	assert.Equal(t, "u1", notified[1].UID)
	assert.Equal(t, "a@b.c", notified[1].Email)
	assert.Equal(t, "Alice", notified[1].DisplayName)

	assert.Equal(t, token, creds.token, "the credential must be persisted")
}

func TestSignInWithPasswordFailurePassesMessageThrough(t *testing.T) {
	backend := mockBackend(t, "", "INVALID_PASSWORD")
	defer backend.Close()

	c := NewClient(backend.URL, "key", nil, zerolog.Nop())

	err := c.SignInWithPassword(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)

	provErr, ok := err.(*ProviderError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_PASSWORD", provErr.Message)
	assert.Equal(t, http.StatusUnauthorized, provErr.Code)
}

func TestSignUpReturnsHandle(t *testing.T) {
	token := testToken(t, "new-1", "n@b.c", "")
	backend := mockBackend(t, token, "")
	defer backend.Close()

	c := NewClient(backend.URL, "key", nil, zerolog.Nop())

	handle, err := c.SignUp(context.Background(), "n@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new-1", handle.UID)
	assert.Equal(t, "n@b.c", handle.Email)
	assert.Empty(t, handle.DisplayName)
}

func TestSignOutNotifiesAbsenceAndClearsCredential(t *testing.T) {
	token := testToken(t, "u1", "a@b.c", "Alice")
	backend := mockBackend(t, token, "")
	defer backend.Close()

	creds := &memCreds{}
	c := NewClient(backend.URL, "key", creds, zerolog.Nop())
	require.NoError(t, c.SignInWithPassword(context.Background(), "a@b.c", "pw"))

	var last *Handle
	cancel := c.Subscribe(func(h *Handle) { last = h })
	defer cancel()
	require.NotNil(t, last)

	require.NoError(t, c.SignOut(context.Background()))

	assert.Nil(t, last, "subscribers must see the absence")
	assert.Empty(t, creds.token, "the persisted credential must be cleared")
}

func TestRestoresPersistedCredential(t *testing.T) {
	token := testToken(t, "u1", "a@b.c", "Alice")
	creds := &memCreds{token: token}

	c := NewClient("http://localhost:0", "key", creds, zerolog.Nop())

	var got *Handle
	cancel := c.Subscribe(func(h *Handle) { got = h })
	defer cancel()

	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UID)
}

func TestUpdateProfileRequiresCredential(t *testing.T) {
	backend := mockBackend(t, "", "")
	defer backend.Close()

	c := NewClient(backend.URL, "key", nil, zerolog.Nop())

	err := c.UpdateProfile(context.Background(), "Alice")
	assert.Error(t, err)
}
