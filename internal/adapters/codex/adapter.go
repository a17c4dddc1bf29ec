// Package codex translates Codex's RPC notification stream (thread_id /
// turn_id keyed) into the Universal Event Schema. Framing and notification
// names follow the hand-rolled JSON-RPC style the teacher uses for its own
// Codex client, rather than a full JSON-RPC 2.0 envelope.
package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/universal"
)

var tempID atomic.Uint64

func nextTempID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, tempID.Add(1))
}

// notification mirrors the teacher's hand-rolled Codex notification shape:
// a method name plus a loosely-typed params object.
type notification struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Agent() universal.AgentID { return universal.AgentCodex }

func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var n notification
	if err := json.Unmarshal(native, &n); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: err.Error()}},
		}}
	}

	var out []adapters.EventConversion
	switch n.Method {
	case "thread.created":
		out = a.threadCreated(n.Params)
	case "turn.started":
		out = []adapters.EventConversion{{Type: universal.EventTurnStarted, Data: universal.UniversalEventData{Turn: &universal.TurnData{}}}}
	case "turn.completed":
		out = []adapters.EventConversion{{Type: universal.EventTurnEnded, Data: universal.UniversalEventData{Turn: &universal.TurnData{}}}}
	case "item/started":
		out = a.itemStarted(n.Params)
	case "item/delta":
		out = a.itemDelta(n.Params)
	case "item/completed":
		out = a.itemCompleted(n.Params)
	case "error":
		out = a.errorEvent(n.Params)
	case "thread.ended":
		out = []adapters.EventConversion{{Type: universal.EventSessionEnded, Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{
			Reason: universal.SessionEndCompleted, TerminatedBy: universal.TerminatedByAgent,
		}}}}
	default:
		out = nil
	}

	raw := map[string]any{"method": n.Method, "params": n.Params}
	// Codex multiplexes many threads over one connection, keyed by
	// threadId/sessionId nested under params; surface it at the top level
	// too so nativeSessionIDFromRaw's flat field lookup can resolve it
	// without having to know Codex's particular envelope shape.
	for _, key := range []string{"threadId", "thread_id", "sessionId", "session_id"} {
		if v, ok := n.Params[key]; ok {
			raw[key] = v
		}
	}
	for i := range out {
		out[i].Raw = raw
	}
	return out
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (a *Adapter) threadCreated(params map[string]any) []adapters.EventConversion {
	metadata := map[string]any{"agent": "codex"}
	if model := str(params, "model"); model != "" {
		metadata["model"] = model
	}
	if threadID := str(params, "threadId"); threadID != "" {
		metadata["threadId"] = threadID
	}
	return []adapters.EventConversion{{
		Type: universal.EventSessionStarted,
		Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{Metadata: metadata}},
	}}
}

func (a *Adapter) itemStarted(params map[string]any) []adapters.EventConversion {
	itemID := str(params, "itemId")
	if itemID == "" {
		itemID = nextTempID("codex_item")
	}
	kind := universal.ItemKindMessage
	if str(params, "kind") == "tool_call" {
		kind = universal.ItemKindToolCall
	}
	item := universal.UniversalItem{
		NativeItemID: itemID,
		Kind:         kind,
		Role:         universal.RoleAssistant,
		Status:       universal.ItemInProgress,
	}
	return []adapters.EventConversion{{Type: universal.EventItemStarted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) itemDelta(params map[string]any) []adapters.EventConversion {
	delta := str(params, "delta")
	if delta == "" {
		return nil
	}
	itemID := str(params, "itemId")
	if itemID == "" {
		itemID = nextTempID("codex_item")
	}
	return []adapters.EventConversion{{Type: universal.EventItemDelta, Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
		NativeItemID: itemID, Delta: delta,
	}}}}
}

func (a *Adapter) itemCompleted(params map[string]any) []adapters.EventConversion {
	itemID := str(params, "itemId")
	if itemID == "" {
		itemID = nextTempID("codex_item")
	}
	item := universal.UniversalItem{
		NativeItemID: itemID,
		Kind:         universal.ItemKindMessage,
		Role:         universal.RoleAssistant,
		Status:       universal.ItemCompleted,
	}
	return []adapters.EventConversion{{Type: universal.EventItemCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) errorEvent(params map[string]any) []adapters.EventConversion {
	message := str(params, "message")
	if message == "" {
		message = "Unknown error"
	}
	return []adapters.EventConversion{{Type: universal.EventError, Data: universal.UniversalEventData{Error: &universal.ErrorData{
		Message: message, Code: "codex", Details: params,
	}}}}
}

func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		// Codex accepts a client-chosen thread id, so the correlation id the
		// session runtime generated becomes the native id from here on — no
		// remap is ever needed for Codex.
		return json.Marshal(map[string]any{"method": "thread.create", "params": map[string]any{"threadId": action.CorrelationID}})
	case adapters.ActionSendUserMessage:
		return json.Marshal(map[string]any{"method": "turn.create", "params": map[string]any{"text": action.Text}})
	case adapters.ActionReplyQuestion:
		return json.Marshal(map[string]any{"method": "question.reply", "params": map[string]any{"questionId": action.QuestionID, "answers": action.Answers}})
	case adapters.ActionRejectQuestion:
		return json.Marshal(map[string]any{"method": "question.reject", "params": map[string]any{"questionId": action.QuestionID}})
	case adapters.ActionReplyPermission:
		return json.Marshal(map[string]any{"method": "permission.reply", "params": map[string]any{"permissionId": action.PermissionID, "reply": string(action.Reply)}})
	case adapters.ActionCancel:
		return json.Marshal(map[string]any{"method": "turn.cancel"})
	default:
		return nil, fmt.Errorf("codex: unsupported outbound action %q", action.Kind)
	}
}
