// Package universal defines the Universal Event Schema: the normalized
// event/item/content model that every agent adapter translates into, and
// that the HTTP surface serializes back out to clients.
package universal

import "time"

// AgentID identifies one of the supported agent backends.
type AgentID string

const (
	AgentClaude   AgentID = "claude"
	AgentCodex    AgentID = "codex"
	AgentOpencode AgentID = "opencode"
	AgentAmp      AgentID = "amp"
	AgentCodebuff AgentID = "codebuff"
	AgentMock     AgentID = "mock"
)

// KnownAgents lists every agent id the daemon fronts, in stable order.
func KnownAgents() []AgentID {
	return []AgentID{AgentClaude, AgentCodex, AgentOpencode, AgentAmp, AgentCodebuff, AgentMock}
}

// Valid reports whether id names a known agent.
func (id AgentID) Valid() bool {
	for _, known := range KnownAgents() {
		if known == id {
			return true
		}
	}
	return false
}

// PermissionMode controls how aggressively the agent auto-approves actions.
type PermissionMode string

const (
	PermissionModeDefault     PermissionMode = "default"
	PermissionModePlan        PermissionMode = "plan"
	PermissionModeAcceptEdits PermissionMode = "acceptEdits"
)

// Normalize collapses AcceptEdits to Default for every agent except Claude,
// per the source's "no-op outside Claude" rule.
func (m PermissionMode) Normalize(agent AgentID) PermissionMode {
	if m == PermissionModeAcceptEdits && agent != AgentClaude {
		return PermissionModeDefault
	}
	if m == "" {
		return PermissionModeDefault
	}
	return m
}

// Valid reports whether m is one of the closed set of permission modes.
func (m PermissionMode) Valid() bool {
	switch m {
	case PermissionModeDefault, PermissionModePlan, PermissionModeAcceptEdits, "":
		return true
	default:
		return false
	}
}

// SessionEndReason explains why a session's terminal SessionEnded event fired.
type SessionEndReason string

const (
	SessionEndCompleted SessionEndReason = "completed"
	SessionEndError     SessionEndReason = "error"
	SessionEndCancelled SessionEndReason = "cancelled"
)

// TerminatedBy distinguishes who closed out a session.
type TerminatedBy string

const (
	TerminatedByAgent TerminatedBy = "agent"
	TerminatedByHost  TerminatedBy = "host"
)

// UniversalEventType is the closed set of event kinds the daemon emits.
type UniversalEventType string

const (
	EventSessionStarted      UniversalEventType = "session_started"
	EventSessionEnded        UniversalEventType = "session_ended"
	EventTurnStarted         UniversalEventType = "turn_started"
	EventTurnEnded           UniversalEventType = "turn_ended"
	EventItemStarted         UniversalEventType = "item_started"
	EventItemDelta           UniversalEventType = "item_delta"
	EventItemCompleted       UniversalEventType = "item_completed"
	EventToolCallStarted     UniversalEventType = "tool_call_started"
	EventToolCallCompleted   UniversalEventType = "tool_call_completed"
	EventQuestionRequested   UniversalEventType = "question_requested"
	EventQuestionResolved    UniversalEventType = "question_resolved"
	EventPermissionRequested UniversalEventType = "permission_requested"
	EventPermissionResolved  UniversalEventType = "permission_resolved"
	EventError               UniversalEventType = "error"
	EventAgentUnparsed       UniversalEventType = "agent_unparsed"
)

// ItemKind is the closed set of logical output units an agent can produce.
type ItemKind string

const (
	ItemKindMessage  ItemKind = "message"
	ItemKindReasoning ItemKind = "reasoning"
	ItemKindToolCall ItemKind = "tool_call"
	ItemKindToolResult ItemKind = "tool_result"
	ItemKindStatus   ItemKind = "status"
)

// ItemRole attributes an item to a conversational party.
type ItemRole string

const (
	RoleUser      ItemRole = "user"
	RoleAssistant ItemRole = "assistant"
	RoleTool      ItemRole = "tool"
	RoleSystem    ItemRole = "system"
)

// ItemStatus tracks an item's lifecycle.
type ItemStatus string

const (
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// ContentPart is a tagged union of the content an item can carry. Exactly one
// field group is populated per part, selected by Type.
type ContentPart struct {
	Type string `json:"type"`

	// Text / Reasoning
	Text string `json:"text,omitempty"`

	// ToolCall
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"callId,omitempty"`

	// ToolResult (reuses CallID above)
	Output string `json:"output,omitempty"`

	// Status
	Label  string  `json:"label,omitempty"`
	Detail *string `json:"detail,omitempty"`
}

const (
	ContentTypeText       = "text"
	ContentTypeReasoning  = "reasoning"
	ContentTypeToolCall   = "tool_call"
	ContentTypeToolResult = "tool_result"
	ContentTypeStatus     = "status"
)

func TextPart(text string) ContentPart      { return ContentPart{Type: ContentTypeText, Text: text} }
func ReasoningPart(text string) ContentPart { return ContentPart{Type: ContentTypeReasoning, Text: text} }
func ToolCallPart(name, arguments, callID string) ContentPart {
	return ContentPart{Type: ContentTypeToolCall, Name: name, Arguments: arguments, CallID: callID}
}
func ToolResultPart(callID, output string) ContentPart {
	return ContentPart{Type: ContentTypeToolResult, CallID: callID, Output: output}
}
func StatusPart(label string, detail *string) ContentPart {
	return ContentPart{Type: ContentTypeStatus, Label: label, Detail: detail}
}

// UniversalItem is a logical unit of agent output: a message, a reasoning
// block, a tool call, a tool result, or a status marker.
type UniversalItem struct {
	ItemID       string        `json:"itemId"`
	NativeItemID string        `json:"nativeItemId,omitempty"`
	ParentID     string        `json:"parentId,omitempty"`
	Kind         ItemKind      `json:"kind"`
	Role         ItemRole      `json:"role,omitempty"`
	Content      []ContentPart `json:"content"`
	Status       ItemStatus    `json:"status"`
}

// Question is the open state of an ask-user interaction.
type Question struct {
	QuestionID string     `json:"questionId"`
	Prompt     string     `json:"prompt"`
	Options    []string   `json:"options,omitempty"`
	Response   string     `json:"response,omitempty"`
	Status     QuestionResolution `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// QuestionResolution tracks whether a question is still open.
type QuestionResolution string

const (
	QuestionRequestedState QuestionResolution = "requested"
	QuestionAnswered       QuestionResolution = "answered"
	QuestionRejected       QuestionResolution = "rejected"
)

// PermissionReplyKind is the closed set of ways a client can answer a
// permission request.
type PermissionReplyKind string

const (
	PermissionOnce   PermissionReplyKind = "once"
	PermissionAlways PermissionReplyKind = "always"
	PermissionReject PermissionReplyKind = "reject"
)

// Permission is the open state of a tool-use approval request.
type Permission struct {
	PermissionID string               `json:"permissionId"`
	ToolName     string               `json:"toolName"`
	Request      map[string]any       `json:"request,omitempty"`
	Status       PermissionResolution `json:"status"`
	Reply        PermissionReplyKind  `json:"reply,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// PermissionResolution tracks whether a permission is still open.
type PermissionResolution string

const (
	PermissionRequestedState PermissionResolution = "requested"
	PermissionReplied        PermissionResolution = "replied"
)

// SessionStartedData is the payload of a SessionStarted event.
type SessionStartedData struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionEndedData is the payload of a SessionEnded event.
type SessionEndedData struct {
	Reason       SessionEndReason `json:"reason"`
	TerminatedBy TerminatedBy     `json:"terminatedBy"`
	Message      string           `json:"message,omitempty"`
	ExitCode     *int             `json:"exitCode,omitempty"`
	Stderr       string           `json:"stderr,omitempty"`
}

// TurnData is the payload shared by TurnStarted/TurnEnded events.
type TurnData struct {
	ItemID string `json:"itemId,omitempty"`
}

// ItemEventData is the payload of ItemStarted/ItemCompleted/ToolCallStarted/ToolCallCompleted.
type ItemEventData struct {
	Item UniversalItem `json:"item"`
}

// ItemDeltaData is the payload of an ItemDelta event.
type ItemDeltaData struct {
	ItemID       string `json:"itemId"`
	NativeItemID string `json:"nativeItemId,omitempty"`
	Delta        string `json:"delta"`
}

// QuestionEventData is the payload of QuestionRequested/QuestionResolved.
type QuestionEventData struct {
	QuestionID string             `json:"questionId"`
	Prompt     string             `json:"prompt,omitempty"`
	Options    []string           `json:"options,omitempty"`
	Response   string             `json:"response,omitempty"`
	Status     QuestionResolution `json:"status"`
}

// PermissionEventData is the payload of PermissionRequested/PermissionResolved.
type PermissionEventData struct {
	PermissionID string              `json:"permissionId"`
	ToolName     string              `json:"toolName,omitempty"`
	Request      map[string]any      `json:"request,omitempty"`
	Reply        PermissionReplyKind `json:"reply,omitempty"`
}

// ErrorData is the payload of an Error event.
type ErrorData struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// UnparsedData is the payload of an AgentUnparsed event: a native message
// the adapter could not make sense of.
type UnparsedData struct {
	RawBytes string `json:"rawBytes,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// UniversalEventData is a tagged union; exactly one field is populated,
// selected by the sibling UniversalEvent.Type.
type UniversalEventData struct {
	SessionStarted *SessionStartedData `json:"sessionStarted,omitempty"`
	SessionEnded   *SessionEndedData   `json:"sessionEnded,omitempty"`
	Turn           *TurnData           `json:"turn,omitempty"`
	Item           *ItemEventData      `json:"item,omitempty"`
	ItemDelta      *ItemDeltaData      `json:"itemDelta,omitempty"`
	Question       *QuestionEventData  `json:"question,omitempty"`
	Permission     *PermissionEventData `json:"permission,omitempty"`
	Error          *ErrorData          `json:"error,omitempty"`
	Unparsed       *UnparsedData       `json:"unparsed,omitempty"`
}

// UniversalEvent is one entry in a session's append-only event log.
type UniversalEvent struct {
	Sequence      uint64              `json:"sequence"`
	Timestamp     time.Time           `json:"timestamp"`
	SessionID     string              `json:"sessionId"`
	Agent         AgentID             `json:"agent"`
	AgentSessionID string             `json:"agentSessionId,omitempty"`
	Type          UniversalEventType  `json:"type"`
	Data          UniversalEventData  `json:"data"`
	Raw           map[string]any      `json:"raw,omitempty"`
}
