package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/auth/domain"
)

// Provider authenticates users.
type Provider interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Register(ctx context.Context, email, password, displayName string) (*domain.Identity, error)
	Logout(ctx context.Context, uid string) error
	Verify(ctx context.Context, idToken string) (*domain.Identity, error)
}

// TokenVerifier is the part of Provider used by the middleware.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.Identity, error)
}

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	loginTimeout       = 10 * time.Second
)

// FirebaseProvider uses the Admin SDK for account management and token
// checks, and the Identity Toolkit REST API for password sign-in.
type FirebaseProvider struct {
	client   *fbauth.Client
	apiKey   string
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

type ProviderOption func(*FirebaseProvider)

// WithEndpoint overrides the Identity Toolkit base URL.
func WithEndpoint(endpoint string) ProviderOption {
	return func(p *FirebaseProvider) { p.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *FirebaseProvider) { p.http = c }
}

func WithProviderLogger(l *zap.Logger) ProviderOption {
	return func(p *FirebaseProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewFirebaseProvider(client *fbauth.Client, apiKey string, opts ...ProviderOption) *FirebaseProvider {
	p := &FirebaseProvider{
		client:   client,
		apiKey:   apiKey,
		endpoint: identityToolkitURL,
		http:     &http.Client{Timeout: loginTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	if p.apiKey == "" {
		return nil, domain.ErrNotConfigured
	}

	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("encode sign-in request: %w", err)
	}

	reqURL := p.endpoint + "/accounts:signInWithPassword?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sign-in response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var tkErr toolkitError
		_ = json.Unmarshal(raw, &tkErr)
		switch tkErr.Error.Message {
		case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
			return nil, domain.ErrInvalidCredentials
		}
		p.logger.Warn("sign-in rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("reason", tkErr.Error.Message))
		return nil, fmt.Errorf("sign-in failed with status %d: %s", resp.StatusCode, tkErr.Error.Message)
	}

	var out signInResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sign-in response: %w", err)
	}
	expires, _ := strconv.ParseInt(out.ExpiresIn, 10, 64)

	return &domain.Session{
		Identity: domain.Identity{
			UID:         out.LocalID,
			Email:       out.Email,
			DisplayName: out.DisplayName,
		},
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    expires,
	}, nil
}

func (p *FirebaseProvider) Register(ctx context.Context, email, password, displayName string) (*domain.Identity, error) {
	if p.client == nil {
		return nil, domain.ErrNotConfigured
	}

	params := (&fbauth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	user, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &domain.Identity{
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}

// Logout revokes the user's refresh tokens so other sessions end too.
func (p *FirebaseProvider) Logout(ctx context.Context, uid string) error {
	if p.client == nil {
		return domain.ErrNotConfigured
	}
	if err := p.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("failed to revoke tokens for %s: %w", uid, err)
	}
	return nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, idToken string) (*domain.Identity, error) {
	if p.client == nil {
		return nil, domain.ErrNotConfigured
	}

	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	id := &domain.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id, nil
}
