// Package amp translates Amp's line-delimited JSON messages (role/content/
// tool_calls) into the Universal Event Schema, following the teacher's Amp
// client message shape.
package amp

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

// message mirrors the teacher's Amp Message struct.
type message struct {
	Type      string     `json:"type"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls"`
	Result    string     `json:"result"`
	Model     string     `json:"model"`
}

type toolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Output string         `json:"output,omitempty"`
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Agent() universal.AgentID { return universal.AgentAmp }

func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var m message
	if err := json.Unmarshal(native, &m); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: err.Error()}},
		}}
	}

	var raw map[string]any
	_ = json.Unmarshal(native, &raw)

	var out []adapters.EventConversion
	switch m.Type {
	case "system":
		metadata := map[string]any{"agent": "amp"}
		if m.Model != "" {
			metadata["model"] = m.Model
		}
		out = []adapters.EventConversion{{Type: universal.EventSessionStarted, Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{Metadata: metadata}}}}
	case "assistant":
		if m.Content != "" {
			out = append(out, adapters.EventConversion{Type: universal.EventItemDelta, Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
				NativeItemID: nextTempID("amp_text"), Delta: m.Content,
			}}})
		}
		for _, tc := range m.ToolCalls {
			callID := tc.ID
			if callID == "" {
				callID = nextTempID("amp_tool")
			}
			argsBytes, _ := json.Marshal(tc.Args)
			item := universal.UniversalItem{
				NativeItemID: callID,
				Kind:         universal.ItemKindToolCall,
				Role:         universal.RoleAssistant,
				Content:      []universal.ContentPart{universal.ToolCallPart(tc.Name, string(argsBytes), callID)},
				Status:       universal.ItemCompleted,
			}
			started := item
			started.Status = universal.ItemInProgress
			out = append(out,
				adapters.EventConversion{Type: universal.EventItemStarted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: started}}, Synthetic: true},
				adapters.EventConversion{Type: universal.EventItemCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}},
			)
		}
	case "tool_result":
		for _, tc := range m.ToolCalls {
			callID := tc.ID
			if callID == "" {
				callID = nextTempID("amp_tool")
			}
			item := universal.UniversalItem{
				NativeItemID: callID,
				Kind:         universal.ItemKindToolResult,
				Role:         universal.RoleTool,
				Content:      []universal.ContentPart{universal.ToolResultPart(callID, tc.Output)},
				Status:       universal.ItemCompleted,
			}
			out = append(out, adapters.EventConversion{Type: universal.EventToolCallCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}})
		}
	case "result":
		reason := universal.SessionEndCompleted
		out = []adapters.EventConversion{{Type: universal.EventSessionEnded, Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{
			Reason: reason, TerminatedBy: universal.TerminatedByAgent, Message: m.Result,
		}}}}
	case "error":
		message := m.Content
		if message == "" {
			message = "Unknown error"
		}
		out = []adapters.EventConversion{{Type: universal.EventError, Data: universal.UniversalEventData{Error: &universal.ErrorData{Message: message, Code: "amp", Details: raw}}}}
	default:
		out = nil
	}

	for i := range out {
		out[i].Raw = raw
	}
	return out
}

func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		// Amp accepts a client-chosen session id; like Codex and OpenCode it
		// becomes the native id from here on since Amp echoes it back on
		// every subsequent line, so no remap step is needed.
		return json.Marshal(map[string]any{"type": "session_create", "session_id": action.CorrelationID})
	case adapters.ActionSendUserMessage:
		return json.Marshal(message{Type: "user", Role: "user", Content: action.Text})
	case adapters.ActionReplyQuestion:
		answersBytes, _ := json.Marshal(action.Answers)
		return json.Marshal(map[string]any{"type": "tool_result", "tool_call_id": action.QuestionID, "output": string(answersBytes)})
	case adapters.ActionRejectQuestion:
		return json.Marshal(map[string]any{"type": "tool_result", "tool_call_id": action.QuestionID, "output": "rejected"})
	case adapters.ActionReplyPermission:
		return json.Marshal(map[string]any{"type": "permission_reply", "permission_id": action.PermissionID, "reply": string(action.Reply)})
	case adapters.ActionCancel:
		return json.Marshal(map[string]any{"type": "cancel"})
	default:
		return nil, fmt.Errorf("amp: unsupported outbound action %q", action.Kind)
	}
}
