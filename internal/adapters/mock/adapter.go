// Package mock implements a deterministic, in-process agent used for tests
// and local development, following the teacher's cmd/mock-agent binary:
// a scripted turn that emits a start, a few text deltas, and a finish.
package mock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/universal"
)

// Event is the native wire shape the mock agent emits; unlike the other
// four backends this is a schema of our own design rather than a borrowed
// one, since "mock" has no real external protocol to match.
type Event struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Model string `json:"model,omitempty"`
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Agent() universal.AgentID { return universal.AgentMock }

func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var e Event
	if err := json.Unmarshal(native, &e); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: err.Error()}},
		}}
	}

	raw := map[string]any{"type": e.Type, "text": e.Text, "model": e.Model}

	switch e.Type {
	case "start":
		model := e.Model
		if model == "" {
			model = "mock-1"
		}
		return []adapters.EventConversion{{
			Type: universal.EventSessionStarted,
			Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{Metadata: map[string]any{"agent": "mock", "model": model}}},
			Raw:  raw,
		}}
	case "text":
		if e.Text == "" {
			return nil
		}
		return []adapters.EventConversion{{
			Type: universal.EventItemDelta,
			Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{NativeItemID: "mock_text", Delta: e.Text}},
			Raw:  raw,
		}}
	case "finish":
		return []adapters.EventConversion{{
			Type: universal.EventSessionEnded,
			Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{Reason: universal.SessionEndCompleted, TerminatedBy: universal.TerminatedByAgent}},
			Raw:  raw,
		}}
	default:
		return nil
	}
}

func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		// The mock agent is always one process per conversation, so there is
		// no native session id to negotiate; nativeSessionIDFromRaw's
		// single-registered-session fallback resolves it.
		return nil, nil
	case adapters.ActionSendUserMessage:
		return json.Marshal(map[string]any{"type": "user_input", "text": action.Text})
	case adapters.ActionReplyQuestion:
		return json.Marshal(map[string]any{"type": "question_reply", "questionId": action.QuestionID, "answers": action.Answers})
	case adapters.ActionRejectQuestion:
		return json.Marshal(map[string]any{"type": "question_reject", "questionId": action.QuestionID})
	case adapters.ActionReplyPermission:
		return json.Marshal(map[string]any{"type": "permission_reply", "permissionId": action.PermissionID, "reply": string(action.Reply)})
	case adapters.ActionCancel:
		return json.Marshal(map[string]any{"type": "cancel"})
	default:
		return nil, fmt.Errorf("mock: unsupported outbound action %q", action.Kind)
	}
}

// Script runs a fixed, deterministic conversation: a start event, the given
// text chunks, and a finish event — matching the teacher's mock-agent CLI
// behavior of emitting a canned transcript rather than calling a model.
func Script(model string, chunks ...string) [][]byte {
	var lines [][]byte
	startBytes, _ := json.Marshal(Event{Type: "start", Model: model})
	lines = append(lines, startBytes)
	for _, c := range chunks {
		b, _ := json.Marshal(Event{Type: "text", Text: c})
		lines = append(lines, b)
	}
	finishBytes, _ := json.Marshal(Event{Type: "finish"})
	lines = append(lines, finishBytes)
	return lines
}
