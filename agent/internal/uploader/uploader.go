package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/identity"
	"github.com/sysinv/sysinv/pkg/types"
)

// maxErrorBody caps how much of a failure response is kept in the error.
const maxErrorBody = 512

// Target describes where and how inventories are uploaded.
type Target struct {
	BaseURL       string
	EndpointPath  string
	HeaderName    string
	SendKeyInBody bool
}

// TargetFrom builds a Target from the agent configuration.
func TargetFrom(a config.AgentConfig) Target {
	return Target{
		BaseURL:       a.ServerBaseURL,
		EndpointPath:  a.Upload.EndpointPath,
		HeaderName:    a.Upload.KeyHeader,
		SendKeyInBody: a.Upload.SendKeyInBody,
	}
}

// EndpointURL returns the upload URL for agentID.
func (t Target) EndpointURL(agentID string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		return "", &config.ConfigurationError{Field: config.EnvServerBaseURL, Reason: "is required"}
	}
	path := t.EndpointPath
	if path == "" {
		path = config.DefaultEndpointPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	raw := base + strings.ReplaceAll(path, types.AgentIDPlaceholder, url.PathEscape(agentID))
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("uploader: endpoint url: %w", err)
	}
	return raw, nil
}

// Client uploads one snapshot per Send call.
type Client struct {
	target   Target
	identity identity.Identity
	endpoint string
	http     *http.Client
}

// New returns a Client for target authenticated as id. It refuses to build
// a client without a base URL or agent key. httpClient may be nil.
func New(target Target, id identity.Identity, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(id.AgentKey) == "" {
		return nil, &config.ConfigurationError{Field: config.EnvAgentKey, Reason: "is required"}
	}
	if target.HeaderName == "" {
		target.HeaderName = config.DefaultAgentKeyHeader
	}
	endpoint, err := target.EndpointURL(id.AgentID)
	if err != nil {
		return nil, err
	}
	return &Client{
		target:   target,
		identity: id,
		endpoint: endpoint,
		http:     WithCredential(httpClient, target.HeaderName, id.AgentKey),
	}, nil
}

// Endpoint returns the resolved upload URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Send serializes payload and PUTs it once.
func (c *Client) Send(ctx context.Context, payload any) error {
	body, err := c.encode(payload)
	if err != nil {
		return &DeliveryError{Message: "encode payload: " + err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Message: "http put: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(text))
	if msg == "" {
		msg = "empty body"
	}
	return &DeliveryError{StatusCode: resp.StatusCode, Message: msg}
}

// encode marshals payload, merging the agent key when configured. Payloads
// that are already JSON ([]byte, json.RawMessage) are used as-is.
func (c *Client) encode(payload any) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	if !c.target.SendKeyInBody {
		return stripKey(raw)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("payload must be a JSON object to carry %s", types.BodyKeyField)
	}
	key, err := json.Marshal(c.identity.AgentKey)
	if err != nil {
		return nil, err
	}
	obj[types.BodyKeyField] = key
	return json.Marshal(obj)
}

// stripKey removes a top-level agentKey member so the key only ever travels
// in the header when body placement is off.
func stripKey(raw []byte) ([]byte, error) {
	if !bytes.Contains(raw, []byte(`"`+types.BodyKeyField+`"`)) {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return raw, nil
	}
	if _, ok := obj[types.BodyKeyField]; !ok {
		return raw, nil
	}
	delete(obj, types.BodyKeyField)
	return json.Marshal(obj)
}
