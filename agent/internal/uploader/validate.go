package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sysinv/sysinv/agent/internal/config"
)

// Key validation outcomes.
var (
	// ErrInvalidKey means the server rejected the key (401/403).
	ErrInvalidKey = errors.New("uploader: agent key rejected by server")

	// ErrValidationUnavailable means the server has no validation endpoint (404).
	ErrValidationUnavailable = errors.New("uploader: server has no key validation endpoint")
)

// Validator checks a candidate agent key against the server before it is
// saved locally.
type Validator struct {
	baseURL string
	path    string
	header  string
	http    *http.Client
}

// NewValidator returns a Validator using the agent configuration.
// httpClient may be nil.
func NewValidator(a config.AgentConfig, httpClient *http.Client) *Validator {
	header := a.Upload.KeyHeader
	if header == "" {
		header = config.DefaultAgentKeyHeader
	}
	path := a.Upload.ValidatePath
	if path == "" {
		path = config.DefaultValidatePath
	}
	return &Validator{
		baseURL: strings.TrimRight(a.ServerBaseURL, "/"),
		path:    path,
		header:  header,
		http:    httpClient,
	}
}

// Validate issues GET {baseUrl}{validatePath} with key in the credential
// header. It returns nil for 2xx, ErrInvalidKey for 401/403 and
// ErrValidationUnavailable for 404.
func (v *Validator) Validate(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return &config.ConfigurationError{Field: config.EnvAgentKey, Reason: "is empty"}
	}
	if v.baseURL == "" {
		return &config.ConfigurationError{Field: config.EnvServerBaseURL, Reason: "is required"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+v.path, nil)
	if err != nil {
		return fmt.Errorf("uploader: build validate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := WithCredential(v.http, v.header, key).Do(req)
	if err != nil {
		return &DeliveryError{Message: "validate key: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidKey
	case resp.StatusCode == http.StatusNotFound:
		return ErrValidationUnavailable
	default:
		return &DeliveryError{StatusCode: resp.StatusCode, Message: "unexpected validation response"}
	}
}
