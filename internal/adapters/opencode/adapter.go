// Package opencode translates OpenCode's HTTP+SSE event stream into the
// Universal Event Schema. Event framing mirrors the teacher's OpenCode
// client, which consumes server-sent events with a "type" discriminator.
package opencode

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

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Agent() universal.AgentID { return universal.AgentOpencode }

func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var event map[string]any
	if err := json.Unmarshal(native, &event); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: err.Error()}},
		}}
	}

	eventType, _ := event["type"].(string)
	var out []adapters.EventConversion
	switch eventType {
	case "session.started":
		out = a.sessionStarted(event)
	case "message.delta":
		out = a.messageDelta(event)
	case "message.completed":
		out = a.messageCompleted(event)
	case "tool.invoked":
		out = a.toolInvoked(event)
	case "tool.result":
		out = a.toolResult(event)
	case "session.error":
		out = a.sessionError(event)
	case "session.ended":
		out = []adapters.EventConversion{{Type: universal.EventSessionEnded, Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{
			Reason: universal.SessionEndCompleted, TerminatedBy: universal.TerminatedByAgent,
		}}}}
	default:
		out = nil
	}

	for i := range out {
		out[i].Raw = event
	}
	return out
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (a *Adapter) sessionStarted(event map[string]any) []adapters.EventConversion {
	metadata := map[string]any{"agent": "opencode"}
	if model := str(event, "model"); model != "" {
		metadata["model"] = model
	}
	return []adapters.EventConversion{{Type: universal.EventSessionStarted, Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{Metadata: metadata}}}}
}

func (a *Adapter) messageDelta(event map[string]any) []adapters.EventConversion {
	delta := str(event, "delta")
	if delta == "" {
		return nil
	}
	itemID := str(event, "messageId")
	if itemID == "" {
		itemID = nextTempID("opencode_msg")
	}
	return []adapters.EventConversion{{Type: universal.EventItemDelta, Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
		NativeItemID: itemID, Delta: delta,
	}}}}
}

func (a *Adapter) messageCompleted(event map[string]any) []adapters.EventConversion {
	itemID := str(event, "messageId")
	if itemID == "" {
		itemID = nextTempID("opencode_msg")
	}
	item := universal.UniversalItem{NativeItemID: itemID, Kind: universal.ItemKindMessage, Role: universal.RoleAssistant, Status: universal.ItemCompleted}
	return []adapters.EventConversion{{Type: universal.EventItemCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) toolInvoked(event map[string]any) []adapters.EventConversion {
	callID := str(event, "callId")
	if callID == "" {
		callID = nextTempID("opencode_tool")
	}
	name := str(event, "tool")
	argsBytes, _ := json.Marshal(event["args"])
	item := universal.UniversalItem{
		NativeItemID: callID,
		Kind:         universal.ItemKindToolCall,
		Role:         universal.RoleAssistant,
		Content:      []universal.ContentPart{universal.ToolCallPart(name, string(argsBytes), callID)},
		Status:       universal.ItemInProgress,
	}
	return []adapters.EventConversion{{Type: universal.EventToolCallStarted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) toolResult(event map[string]any) []adapters.EventConversion {
	callID := str(event, "callId")
	if callID == "" {
		callID = nextTempID("opencode_tool")
	}
	outBytes, _ := json.Marshal(event["output"])
	item := universal.UniversalItem{
		NativeItemID: callID,
		Kind:         universal.ItemKindToolResult,
		Role:         universal.RoleTool,
		Content:      []universal.ContentPart{universal.ToolResultPart(callID, string(outBytes))},
		Status:       universal.ItemCompleted,
	}
	return []adapters.EventConversion{{Type: universal.EventToolCallCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) sessionError(event map[string]any) []adapters.EventConversion {
	message := str(event, "message")
	if message == "" {
		message = "Unknown error"
	}
	return []adapters.EventConversion{{Type: universal.EventError, Data: universal.UniversalEventData{Error: &universal.ErrorData{Message: message, Code: "opencode", Details: event}}}}
}

func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		// OpenCode accepts a client-chosen session id, which the session
		// runtime's correlation id becomes from here on — the server echoes
		// it back on every subsequent event's top-level "sessionId", so no
		// remap is ever needed.
		return json.Marshal(map[string]any{"type": "session.create", "sessionId": action.CorrelationID})
	case adapters.ActionSendUserMessage:
		return json.Marshal(map[string]any{"type": "message.send", "text": action.Text})
	case adapters.ActionReplyQuestion:
		return json.Marshal(map[string]any{"type": "question.reply", "questionId": action.QuestionID, "answers": action.Answers})
	case adapters.ActionRejectQuestion:
		return json.Marshal(map[string]any{"type": "question.reject", "questionId": action.QuestionID})
	case adapters.ActionReplyPermission:
		return json.Marshal(map[string]any{"type": "permission.reply", "permissionId": action.PermissionID, "reply": string(action.Reply)})
	case adapters.ActionCancel:
		return json.Marshal(map[string]any{"type": "session.cancel"})
	default:
		return nil, fmt.Errorf("opencode: unsupported outbound action %q", action.Kind)
	}
}
