// Package identity defines the boundary to the managed identity backend.
// The backend owns credential verification and session issuance; this package
// only exposes the capabilities the session layer needs and a subscription
// for credential-change notifications.
package identity

import (
	"context"
	"fmt"
)

// Handle represents a signed-in principal as reported by the backend.
// It carries facts only, no decisions.
type Handle struct {
	UID         string
	Email       string
	DisplayName string
}

// Callback receives credential-change notifications. A nil handle signals
// that no principal is signed in.
type Callback func(h *Handle)

// Provider is the identity backend capability surface
type Provider interface {
	// SignInWithPassword verifies the credential. On success the provider
	// emits a credential-change notification; the call itself does not
	// return the principal.
	SignInWithPassword(ctx context.Context, email, password string) error

	// SignUp creates a new credential and returns its handle
	SignUp(ctx context.Context, email, password string) (*Handle, error)

	// UpdateProfile sets the display name on the current credential
	UpdateProfile(ctx context.Context, displayName string) error

	// SignOut invalidates the current credential. On success the provider
	// emits a credential-change notification with absence.
	SignOut(ctx context.Context) error

	// Subscribe registers a credential-change callback. The callback is
	// invoked once immediately with the current state and again on every
	// subsequent change. The returned function cancels the subscription.
	Subscribe(cb Callback) (cancel func())
}

// ProviderError is an error reported by the identity backend. The message
// is passed through verbatim (e.g. "INVALID_PASSWORD", "EMAIL_EXISTS").
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity backend error (status %d)", e.Code)
	}
	return e.Message
}

// CredentialStore persists the backend-issued session token between runs
type CredentialStore interface {
	SaveCredential(token string) error
	LoadCredential() (string, error)
	ClearCredential() error
}
