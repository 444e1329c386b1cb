package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims are the claims the backend puts into its ID tokens
type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// handleFromToken extracts the principal facts from a backend ID token.
// The token comes straight from our own backend over an authenticated
// channel, so the signature is not re-verified here.
func handleFromToken(idToken string) (*Handle, error) {
	var claims tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("ID token has no subject")
	}

	return &Handle{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}
