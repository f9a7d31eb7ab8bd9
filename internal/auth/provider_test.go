package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge-backend/internal/auth/domain"
)

func newToolkitServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req signInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.ReturnSecureToken)

		w.Header().Set("Content-Type", "application/json")
		switch req.Password {
		case "correct":
			_ = json.NewEncoder(w).Encode(signInResponse{
				LocalID:      "uid-1",
				Email:        req.Email,
				DisplayName:  "Ana",
				IDToken:      "id-token",
				RefreshToken: "refresh",
				ExpiresIn:    "3600",
			})
		case "outage":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"UNAVAILABLE"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirebaseProvider_Login(t *testing.T) {
	srv := newToolkitServer(t)
	p := NewFirebaseProvider(nil, "test-key", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	t.Run("returns a session", func(t *testing.T) {
		session, err := p.Login(ctx, "ana@example.com", "correct")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", session.UID)
		assert.Equal(t, "ana@example.com", session.Email)
		assert.Equal(t, "id-token", session.IDToken)
		assert.Equal(t, int64(3600), session.ExpiresIn)
	})

	t.Run("maps bad credentials", func(t *testing.T) {
		_, err := p.Login(ctx, "ana@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("reports other failures", func(t *testing.T) {
		_, err := p.Login(ctx, "ana@example.com", "outage")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.Contains(t, err.Error(), "503")
	})
}

func TestFirebaseProvider_NotConfigured(t *testing.T) {
	p := NewFirebaseProvider(nil, "")
	ctx := context.Background()

	_, err := p.Login(ctx, "a@b.c", "x")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = p.Register(ctx, "a@b.c", "x", "")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = p.Verify(ctx, "token")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	assert.ErrorIs(t, p.Logout(ctx, "uid"), domain.ErrNotConfigured)
}
