package domain

import "errors"

// Identity is an authenticated user as seen by the rest of the service.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Session is returned by a password login.
type Session struct {
	Identity
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Same reports whether two identities name the same user. Two nil
// identities are the same.
func Same(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password too weak")
	ErrNotConfigured      = errors.New("authentication provider not configured")
)
