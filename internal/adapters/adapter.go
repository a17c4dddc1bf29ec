// Package adapters defines the per-agent translation capability: turning
// native agent wire events into Universal Event Schema conversions, and
// encoding outbound actions back into each agent's native wire format.
package adapters

import (
	"context"

	"github.com/kandev/agentd/internal/universal"
)

// EventConversion is one unit of translated output from an adapter: a
// single universal event's type/data, whether it was synthesized by the
// adapter rather than present verbatim in the native stream, and the raw
// native event it was derived from (retained for forensic replay).
type EventConversion struct {
	Type      universal.UniversalEventType
	Data      universal.UniversalEventData
	Synthetic bool
	Raw       map[string]any

	// AgentSessionID, when non-empty, is the agent's own session/thread
	// identifier as it became known to the adapter (e.g. the id ACP assigns
	// in its session/new response). Carried through onto UniversalEvent so
	// API consumers can see it without reaching into Raw.
	AgentSessionID string
}

// OutboundActionKind is the closed set of actions a session can ask an
// adapter to encode for delivery to the native agent.
type OutboundActionKind string

const (
	ActionCreateSession   OutboundActionKind = "create_session"
	ActionSendUserMessage OutboundActionKind = "send_user_message"
	ActionReplyQuestion   OutboundActionKind = "reply_question"
	ActionRejectQuestion  OutboundActionKind = "reject_question"
	ActionReplyPermission OutboundActionKind = "reply_permission"
	ActionCancel          OutboundActionKind = "cancel"
)

// OutboundAction is a tagged union of outbound action payloads.
type OutboundAction struct {
	Kind OutboundActionKind

	// CreateSession: CorrelationID is a client-generated id the session
	// runtime registers with the supervisor *before* sending this action,
	// so that the very first native event naming this id (directly, or via
	// an echoed field) can be resolved back to the calling client session.
	// Adapters for protocols that accept a client-chosen thread/session id
	// should embed it verbatim; adapters for protocols that assign session
	// ids server-side (e.g. ACP) should smuggle it through in whatever
	// correlating field the wire format affords, so Translate can still
	// report it back alongside the assigned native id.
	CorrelationID  string
	PermissionMode universal.PermissionMode
	Metadata       map[string]any

	// SendUserMessage
	Text string

	// ReplyQuestion / RejectQuestion
	QuestionID string
	Answers    [][]string

	// ReplyPermission
	PermissionID string
	Reply        universal.PermissionReplyKind
}

// Adapter is the closed capability every agent backend implements: parse
// native events into universal conversions, and encode outbound actions
// into native wire bytes. Adapters are stateless with respect to any
// particular session except for whatever per-process disambiguation
// counters they need (e.g. synthetic item id counters); all session state
// lives in the session runtime, not here.
type Adapter interface {
	// Agent reports which AgentID this adapter serves.
	Agent() universal.AgentID

	// Translate parses one native event (already framed — one JSON object's
	// worth of bytes) into zero or more universal event conversions.
	// Malformed input yields a single AgentUnparsed conversion rather than
	// an error; translation never fails the calling session.
	Translate(ctx context.Context, native []byte) []EventConversion

	// EncodeOutbound renders an outbound action into the bytes that should
	// be written to the native transport (stdin for stdio children, an
	// HTTP request body for HTTP endpoints).
	EncodeOutbound(action OutboundAction) ([]byte, error)
}
