package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall-dev/studyhall/internal/config"
	"github.com/studyhall-dev/studyhall/internal/docstore"
	"github.com/studyhall-dev/studyhall/internal/identity"
	"github.com/studyhall-dev/studyhall/internal/session"
)

// stubProvider is a minimal scriptable identity backend for handler tests
type stubProvider struct {
	mu           sync.Mutex
	cb           identity.Callback
	signInErr    error
	emitOnSignIn *identity.Handle
	signUpHandle *identity.Handle
}

func (p *stubProvider) Subscribe(cb identity.Callback) func() {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	cb(nil)
	return func() {}
}

func (p *stubProvider) SignInWithPassword(ctx context.Context, email, password string) error {
	if p.signInErr != nil {
		return p.signInErr
	}
	if p.emitOnSignIn != nil {
		p.mu.Lock()
		cb := p.cb
		p.mu.Unlock()
		cb(p.emitOnSignIn)
	}
	return nil
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string) (*identity.Handle, error) {
	return p.signUpHandle, nil
}

func (p *stubProvider) UpdateProfile(ctx context.Context, displayName string) error {
	return nil
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	return nil
}

// stubDocs is an in-memory document store for handler tests
type stubDocs struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

func newStubDocs() *stubDocs {
	return &stubDocs{docs: make(map[string]map[string]any)}
}

func (d *stubDocs) GetDocument(ctx context.Context, collection, key string) (docstore.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fields, ok := d.docs[collection+"/"+key]
	if !ok {
		return docstore.Document{Exists: false}, nil
	}
	return docstore.Document{Exists: true, Fields: fields}, nil
}

func (d *stubDocs) SetDocument(ctx context.Context, collection, key string, fields map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[collection+"/"+key] = fields
	return nil
}

func newTestServer(t *testing.T, provider *stubProvider, docs *stubDocs) *Server {
	t.Helper()

	sessions := session.New(provider, docs, zerolog.Nop())
	t.Cleanup(sessions.Close)

	registerValidators()

	s := &Server{
		config:   &config.Config{},
		logger:   zerolog.Nop(),
		sessions: sessions,
		version:  "test",
	}
	s.setupRouter()

	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSignInHandler(t *testing.T) {
	docs := newStubDocs()
	docs.docs["users/u1"] = map[string]any{"role": "teacher"}
	provider := &stubProvider{
		emitOnSignIn: &identity.Handle{UID: "u1", Email: "a@b.c", DisplayName: "Alice"},
	}
	s := newTestServer(t, provider, docs)

	w := doJSON(t, s, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "a@b.c",
		"password": "pw",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)
	assert.Equal(t, "u1", resp.User.ID)
	assert.True(t, resp.IsTeacher)
	assert.False(t, resp.IsStudent)
	assert.False(t, resp.Loading)
}

func TestSignInHandlerValidation(t *testing.T) {
	s := newTestServer(t, &stubProvider{}, newStubDocs())

	w := doJSON(t, s, http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "not-an-email",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignInHandlerBackendRejection(t *testing.T) {
	provider := &stubProvider{
		signInErr: &identity.ProviderError{Code: http.StatusUnauthorized, Message: "INVALID_PASSWORD"},
	}
	s := newTestServer(t, provider, newStubDocs())

	w := doJSON(t, s, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "a@b.c",
		"password": "wrong",
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_PASSWORD", resp["error"])
}

func TestSignUpHandlerRejectsUnknownRole(t *testing.T) {
	s := newTestServer(t, &stubProvider{}, newStubDocs())

	w := doJSON(t, s, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":        "n@b.c",
		"password":     "pw",
		"display_name": "Nina",
		"role":         "principal",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignUpHandler(t *testing.T) {
	docs := newStubDocs()
	provider := &stubProvider{
		signUpHandle: &identity.Handle{UID: "new-1", Email: "n@b.c"},
	}
	s := newTestServer(t, provider, docs)

	w := doJSON(t, s, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":        "n@b.c",
		"password":     "pw",
		"display_name": "Nina",
		"role":         "student",
		"teacher_ref":  "t-42",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	fields, ok := docs.docs["users/new-1"]
	require.True(t, ok, "sign-up must write the role document")
	assert.Equal(t, "student", fields["role"])
	assert.Equal(t, "t-42", fields["teacherId"])
}

func TestSessionAndSignOutHandlers(t *testing.T) {
	docs := newStubDocs()
	docs.docs["users/u1"] = map[string]any{"role": "student"}
	provider := &stubProvider{
		emitOnSignIn: &identity.Handle{UID: "u1", Email: "s@b.c"},
	}
	s := newTestServer(t, provider, docs)

	w := doJSON(t, s, http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.User)

	doJSON(t, s, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "s@b.c",
		"password": "pw",
	})

	w = doJSON(t, s, http.MethodGet, "/api/auth/session", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)
	assert.True(t, resp.IsStudent)

	w = doJSON(t, s, http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.User)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, &stubProvider{}, newStubDocs())

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
