package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medical-consent/internal/platform/httpclient"
)

var (
	ErrRegistryNotConfigured = errors.New("profile registry client not configured")
	ErrRegistryUnauthorized  = errors.New("profile registry unauthorized")
	ErrRegistryUpstream      = errors.New("profile registry upstream error")
	ErrProfileNotFound       = errors.New("profile not found")
)

// Config del cliente contra el registry de perfiles.
// BaseURL y APIKey normalmente vienen de env vars en quien lo instancia.
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

type patientDTO struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

type doctorDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	Verified  bool   `json:"verified"`
}

func (c *Client) GetPatient(ctx context.Context, id string) (patientDTO, error) {
	var out patientDTO
	if err := c.get(ctx, "/v1/patients/"+url.PathEscape(id), &out); err != nil {
		return patientDTO{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return patientDTO{}, fmt.Errorf("%w: response missing id", ErrRegistryUpstream)
	}
	return out, nil
}

func (c *Client) GetDoctor(ctx context.Context, id string) (doctorDTO, error) {
	var out doctorDTO
	if err := c.get(ctx, "/v1/doctors/"+url.PathEscape(id), &out); err != nil {
		return doctorDTO{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return doctorDTO{}, fmt.Errorf("%w: response missing id", ErrRegistryUpstream)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.IsConfigured() {
		return ErrRegistryNotConfigured
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	err := c.http.DoJSON(ctx, http.MethodGet, path, headers, nil, out)
	if err == nil {
		return nil
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return ErrProfileNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrRegistryUnauthorized
		default:
			return fmt.Errorf("%w: status=%d", ErrRegistryUpstream, httpErr.StatusCode)
		}
	}
	return fmt.Errorf("%w: %v", ErrRegistryUpstream, err)
}
