package httpapi

import "github.com/kandev/agentd/internal/universal"

// SkillSource mirrors the create-session request's optional skills block.
type SkillSource struct {
	Type   string   `json:"type"`
	Source string   `json:"source"`
	Skills []string `json:"skills,omitempty"`
}

type SkillsConfig struct {
	Sources []SkillSource `json:"sources,omitempty"`
}

// CreateSessionRequest is the body of POST /v1/sessions/{session_id}.
type CreateSessionRequest struct {
	Agent          string        `json:"agent"`
	AgentMode      string        `json:"agent_mode,omitempty"`
	PermissionMode string        `json:"permission_mode,omitempty"`
	Model          string        `json:"model,omitempty"`
	Variant        string        `json:"variant,omitempty"`
	Token          string        `json:"token,omitempty"`
	ValidateToken  bool          `json:"validate_token,omitempty"`
	AgentVersion   string        `json:"agent_version,omitempty"`
	Skills         *SkillsConfig `json:"skills,omitempty"`
}

// AgentErrorPayload carries agent-specific error detail nested in a
// CreateSessionResponse or problem-details body.
type AgentErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CreateSessionResponse is the body returned by session creation.
type CreateSessionResponse struct {
	Healthy        bool               `json:"healthy"`
	Error          *AgentErrorPayload `json:"error,omitempty"`
	AgentSessionID string             `json:"agent_session_id,omitempty"`
}

// SessionSummary is one entry in the session list response.
type SessionSummary struct {
	SessionID      string `json:"sessionId"`
	Agent          string `json:"agent"`
	PermissionMode string `json:"permissionMode"`
	Ended          bool   `json:"ended"`
	AgentSessionID string `json:"agentSessionId,omitempty"`
}

// PostMessageRequest is the body of POST .../messages.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// EventsResponse is the body of GET .../events.
type EventsResponse struct {
	Events  []universal.UniversalEvent `json:"events"`
	HasMore bool                       `json:"has_more"`
}

// QuestionReplyRequest is the body of POST .../questions/{qid}/reply.
// answers is a matrix: outer index = question, inner = selected options.
type QuestionReplyRequest struct {
	Answers [][]string `json:"answers"`
}

// PermissionReplyRequest is the body of POST .../permissions/{pid}/reply.
type PermissionReplyRequest struct {
	Reply string `json:"reply"`
}

// AgentMetadata is one entry in GET /v1/agents.
type AgentMetadata struct {
	Agent     string `json:"agent"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}

// InstallRequest is the body of POST /v1/agents/{agent}/install.
type InstallRequest struct {
	Reinstall bool `json:"reinstall,omitempty"`
}

// InstallResponse is the body returned by the install route.
type InstallResponse struct {
	Path string `json:"path"`
}
