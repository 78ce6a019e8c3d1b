package types

// Endpoint paths. AgentIDPlaceholder in SystemInfoPath is replaced with the
// path-escaped agent ID.
const (
	AgentIDPlaceholder = "{agentId}"
	SystemInfoPath     = "/api/v1/agents/" + AgentIDPlaceholder + "/system-info"
	ValidateKeyPath    = "/api/v1/agents/validate-agent-key"
	AgentsPath         = "/api/v1/agents"
	HealthPath         = "/api/v1/health"
)

// DefaultAgentKeyHeader carries the agent key on every request.
const DefaultAgentKeyHeader = "x-agent-key"

// BodyKeyField is the JSON member holding the agent key when it also travels
// in the request body.
const BodyKeyField = "agentKey"

// ValidateResponse is returned by GET ValidateKeyPath for an accepted key.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// AgentSummary is one entry of GET AgentsPath.
type AgentSummary struct {
	AgentID        string `json:"agentId"`
	Host           string `json:"host,omitempty"`
	CollectedAtUTC string `json:"collectedAtUtc,omitempty"`
	UpdatedAt      string `json:"updatedAt"` // RFC3339
}

// HealthResponse is returned by GET HealthPath.
type HealthResponse struct {
	Status string `json:"status"`
	Agents int    `json:"agents"`
}

// ErrorResponse is the body of every non-2xx server response.
type ErrorResponse struct {
	Error string `json:"error"`
}
