// Package auth verifies bearer tokens presented at websocket upgrade.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the verifier backend is unreachable.
	// Callers may choose to fail open (allow) or fail closed (reject).
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is the authenticated player behind a connection.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Verifier resolves a bearer token to a player identity.
type Verifier interface {
	// Verify returns:
	//   - (*Identity, nil) if the token is valid
	//   - (nil, ErrInvalidToken) if the token is definitively invalid
	//   - (nil, ErrUnavailable) if the backend cannot answer
	Verify(ctx context.Context, token string) (*Identity, error)
}

// HTTPVerifier resolves tokens via HTTP callback to an external account
// service.
type HTTPVerifier struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPVerifier creates a verifier that POSTs tokens to url. secret, if
// non-empty, is sent as X-Auth-Secret so the endpoint can reject strangers.
func NewHTTPVerifier(url, secret string) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 500 * time.Millisecond, // Align with context timeout
		},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Auth-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		// Network errors, timeouts, etc. = unavailable
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - decode response
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	limited := io.LimitReader(resp.Body, 1<<20)

	var vr verifyResponse
	if err := json.NewDecoder(limited).Decode(&vr); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !vr.Valid {
		return nil, ErrInvalidToken
	}
	if vr.UserID == "" {
		return nil, fmt.Errorf("%w: backend sent no user id", ErrUnavailable)
	}
	name := vr.Username
	if name == "" {
		name = vr.UserID
	}
	return &Identity{UserID: vr.UserID, Username: name}, nil
}

// StaticVerifier resolves tokens from a fixed map. Useful for small
// deployments and tests.
type StaticVerifier struct {
	tokens map[string]Identity
}

// NewStaticVerifier creates a verifier over a fixed token table. The map is
// copied.
func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	m := make(map[string]Identity, len(tokens))
	for k, v := range tokens {
		m[k] = v
	}
	return &StaticVerifier{tokens: m}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: id.UserID, Username: id.Username}, nil
}

// InsecureVerifier trusts the token itself as the identity: the token text
// becomes both user id and username. Dev mode only.
type InsecureVerifier struct{}

// NewInsecureVerifier creates the trust-everyone dev verifier.
func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{}
}

func (v *InsecureVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	name := strings.TrimSpace(token)
	if name == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: name, Username: name}, nil
}
