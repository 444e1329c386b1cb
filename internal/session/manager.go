package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/studyhall-dev/studyhall/internal/docstore"
	"github.com/studyhall-dev/studyhall/internal/identity"
)

const (
	// usersCollection is where role documents live in the document store
	usersCollection = "users"

	errProfileLoad = "Failed to load user profile"
	errSignIn      = "Failed to sign in"
	errSignUp      = "Failed to sign up"
	errSignOut     = "Failed to sign out"
)

// subBuffer bounds how many snapshots a slow subscriber can lag behind
const subBuffer = 16

// Manager is the single authoritative writer of session state. All
// mutations go through it; consumers read snapshots or subscribe for
// updates. It holds the credential-change subscription for its entire
// lifetime and releases it exactly once on Close.
type Manager struct {
	provider    identity.Provider
	docs        docstore.Store
	completions Completions
	logger      zerolog.Logger

	mu      sync.Mutex
	user    *User
	loading bool
	errMsg  string
	subs    map[int]chan Snapshot
	nextSub int

	unsubscribe func()
	closeOnce   sync.Once
}

// Option configures a Manager
type Option func(*Manager)

// WithCompletions enables background retry of failed sign-up profile writes
func WithCompletions(c Completions) Option {
	return func(m *Manager) {
		m.completions = c
	}
}

// New creates a Manager and subscribes it to the provider's credential
// changes. The provider delivers the current state immediately, so by the
// time New returns the first notification has been processed.
func New(provider identity.Provider, docs docstore.Store, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		docs:     docs,
		logger:   logger,
		loading:  true,
		subs:     make(map[int]chan Snapshot),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.unsubscribe = provider.Subscribe(m.handleAuthChange)

	return m
}

// Close releases the credential-change subscription and all subscriber
// channels. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()

		m.mu.Lock()
		for id, ch := range m.subs {
			close(ch)
			delete(m.subs, id)
		}
		m.mu.Unlock()
	})
}

// Snapshot returns the current session state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: m.loading, Err: m.errMsg}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// Subscribe returns a channel of session snapshots and a cancel function.
// The current snapshot is delivered immediately. Slow subscribers drop
// intermediate snapshots rather than block the writer.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
		m.mu.Unlock()
	}

	return ch, cancel
}

// notifyLocked fans the current snapshot out to all subscribers.
// Callers must hold m.mu.
func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is not keeping up; it will see the next snapshot
		}
	}
}

// handleAuthChange processes one credential-change notification. A nil
// handle means no principal is signed in. Notifications are processed in
// delivery order; there is no coalescing and no out-of-order guard.
func (m *Manager) handleAuthChange(h *identity.Handle) {
	if h == nil {
		m.mu.Lock()
		m.user = nil
		m.loading = false
		m.notifyLocked()
		m.mu.Unlock()
		return
	}

	doc, err := m.docs.GetDocument(context.Background(), usersCollection, h.UID)
	if err != nil {
		// No caller to propagate to; record and log only. The user stays
		// absent rather than partially populated.
		m.logger.Error().Err(err).Str("uid", h.UID).Msg("Failed to fetch role document")
		m.mu.Lock()
		m.user = nil
		m.errMsg = errProfileLoad
		m.loading = false
		m.notifyLocked()
		m.mu.Unlock()
		return
	}

	role := RoleStudent
	if doc.Exists {
		raw, _ := doc.Fields["role"].(string)
		parsed, ok := ParseRole(raw)
		if !ok {
			m.logger.Warn().Str("uid", h.UID).Str("role", raw).Msg("Role document carries an unknown role, treating as student")
		}
		role = parsed
	}

	displayName := h.DisplayName
	if displayName == "" {
		displayName = h.Email
	}

	m.mu.Lock()
	m.user = &User{
		ID:          h.UID,
		Email:       h.Email,
		Role:        role,
		DisplayName: displayName,
	}
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
}

// SignIn verifies the credential with the identity backend. It never sets
// the user itself; the credential-change notification triggered by a
// successful verification does that.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	m.beginOperation()
	defer m.endOperation()

	if err := m.provider.SignInWithPassword(ctx, email, password); err != nil {
		m.setError(operationMessage(err, errSignIn))
		return err
	}

	return nil
}

// SignUp creates a credential, sets its display name, and writes the role
// document. The three steps are sequential, not transactional: a failure
// mid-way leaves the earlier steps in place. A failed document write is
// handed to the completions queue for background retry when one is
// configured.
func (m *Manager) SignUp(ctx context.Context, p SignUpParams) error {
	m.beginOperation()
	defer m.endOperation()

	handle, err := m.provider.SignUp(ctx, p.Email, p.Password)
	if err != nil {
		m.setError(operationMessage(err, errSignUp))
		return err
	}

	if err := m.provider.UpdateProfile(ctx, p.DisplayName); err != nil {
		m.setError(operationMessage(err, errSignUp))
		return err
	}

	fields := map[string]any{
		"email":       p.Email,
		"role":        p.Role.String(),
		"displayName": p.DisplayName,
		"createdAt":   time.Now().UTC().Format(time.RFC3339),
	}
	if p.Role == RoleStudent && p.TeacherRef != "" {
		fields["teacherId"] = p.TeacherRef
	}

	if err := m.docs.SetDocument(ctx, usersCollection, handle.UID, fields); err != nil {
		m.enqueueCompletion(ctx, handle.UID, p)
		m.setError(operationMessage(err, errSignUp))
		return err
	}

	return nil
}

// SignOut invalidates the credential and clears the user locally without
// waiting for the credential-change notification
func (m *Manager) SignOut(ctx context.Context) error {
	m.clearError()

	if err := m.provider.SignOut(ctx); err != nil {
		m.setError(operationMessage(err, errSignOut))
		return err
	}

	m.mu.Lock()
	m.user = nil
	m.notifyLocked()
	m.mu.Unlock()

	return nil
}

// enqueueCompletion records the failed profile write for background retry
func (m *Manager) enqueueCompletion(ctx context.Context, uid string, p SignUpParams) {
	if m.completions == nil {
		return
	}

	pending := PendingProfile{
		UID:         uid,
		Email:       p.Email,
		Role:        p.Role.String(),
		DisplayName: p.DisplayName,
	}
	if p.Role == RoleStudent && p.TeacherRef != "" {
		pending.TeacherID = p.TeacherRef
	}

	if err := m.completions.EnqueueProfileWrite(ctx, pending); err != nil {
		m.logger.Error().Err(err).Str("uid", uid).Msg("Failed to enqueue profile write for retry")
	}
}

func (m *Manager) beginOperation() {
	m.mu.Lock()
	m.errMsg = ""
	m.loading = true
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) endOperation() {
	m.mu.Lock()
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.errMsg = msg
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) clearError() {
	m.mu.Lock()
	m.errMsg = ""
	m.notifyLocked()
	m.mu.Unlock()
}

// operationMessage extracts the backend's message for the session error
// field. Backend messages pass through verbatim; anything else gets the
// operation's generic fallback.
func operationMessage(err error, fallback string) string {
	var provErr *identity.ProviderError
	if errors.As(err, &provErr) && provErr.Message != "" {
		return provErr.Message
	}
	return fallback
}
