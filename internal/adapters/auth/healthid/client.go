package healthid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"medical-consent/internal/platform/httpclient"
	"medical-consent/internal/ports/auth"
)

var (
	ErrHealthIDNotConfigured = errors.New("healthid client not configured")
	ErrHealthIDUnauthorized  = errors.New("healthid unauthorized")
	ErrHealthIDUpstream      = errors.New("healthid upstream error")
)

// Config del cliente HealthID (el IAM que emite los tokens).
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: header de la API key. Default "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

// VerifyToken verifica el token contra HealthID y devuelve claims.
// El claim role viene del IAM: este servicio no decide roles, solo los consume.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrHealthIDNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrHealthIDUnauthorized
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	var out struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
	}

	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/tokens/verify", headers, map[string]string{"token": token}, &out)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return auth.Claims{}, ErrHealthIDUnauthorized
			default:
				return auth.Claims{}, fmt.Errorf("%w: status=%d", ErrHealthIDUpstream, httpErr.StatusCode)
			}
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrHealthIDUpstream, err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, errors.New("healthid response missing user_id")
	}

	role, err := parseRole(out.Role)
	if err != nil {
		return auth.Claims{}, err
	}

	return auth.Claims{
		UserID: out.UserID,
		Email:  strings.TrimSpace(out.Email),
		Role:   role,
	}, nil
}

func parseRole(raw string) (auth.Role, error) {
	switch auth.Role(strings.ToLower(strings.TrimSpace(raw))) {
	case auth.RolePatient:
		return auth.RolePatient, nil
	case auth.RoleDoctor:
		return auth.RoleDoctor, nil
	default:
		return "", fmt.Errorf("healthid response has unknown role %q", raw)
	}
}
