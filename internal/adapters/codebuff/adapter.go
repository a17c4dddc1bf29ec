// Package codebuff translates Codebuff's line-delimited PrintModeEvent JSON
// stream into the Universal Event Schema. This is the one adapter the
// source specifies exhaustively; every other adapter follows the same
// shape with protocol-specific framing swapped in.
package codebuff

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
	n := tempID.Add(1)
	return fmt.Sprintf("%s_%d", prefix, n)
}

var askUserToolNames = map[string]bool{
	"ask_user": true,
	"AskUser":  true,
	"ask-user": true,
	"askUser":  true,
}

// Adapter implements adapters.Adapter for Codebuff.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Agent() universal.AgentID { return universal.AgentCodebuff }

// Translate parses one PrintModeEvent JSON object into universal conversions.
func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var event map[string]any
	if err := json.Unmarshal(native, &event); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{
				RawBytes: string(native),
				Reason:   err.Error(),
			}},
		}}
	}

	eventType, _ := event["type"].(string)

	var conversions []adapters.EventConversion
	switch eventType {
	case "start":
		conversions = startEvent(event)
	case "text":
		conversions = textEvent(event)
	case "reasoning_delta":
		conversions = reasoningDeltaEvent(event)
	case "tool_call":
		conversions = toolCallEvent(event)
	case "tool_result":
		conversions = toolResultEvent(event)
	case "tool_progress":
		conversions = toolProgressEvent(event)
	case "subagent_start":
		conversions = subagentStartEvent(event)
	case "subagent_finish":
		conversions = subagentFinishEvent(event)
	case "error":
		conversions = errorEvent(event)
	case "finish":
		conversions = finishEvent()
	case "subagent_chunk", "reasoning_chunk", "download", "":
		conversions = nil
	default:
		conversions = nil
	}

	for i := range conversions {
		conversions[i].Raw = event
	}
	return conversions
}

func getString(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func getStringOr(m map[string]any, key, fallback string) string {
	if v, ok := getString(m, key); ok {
		return v
	}
	return fallback
}

func startEvent(event map[string]any) []adapters.EventConversion {
	agentID, hasAgentID := getString(event, "agentId")
	model, hasModel := getString(event, "model")
	historyLen := 0
	if v, ok := event["messageHistoryLength"].(float64); ok {
		historyLen = int(v)
	}

	metadata := map[string]any{
		"agent":                "codebuff",
		"messageHistoryLength": historyLen,
	}
	if hasAgentID {
		metadata["agentId"] = agentID
	}
	if hasModel {
		metadata["model"] = model
	}

	return []adapters.EventConversion{{
		Type: universal.EventSessionStarted,
		Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{Metadata: metadata}},
	}}
}

func textEvent(event map[string]any) []adapters.EventConversion {
	text := getStringOr(event, "text", "")
	if text == "" {
		return nil
	}
	nativeItemID, ok := getString(event, "agentId")
	if !ok {
		nativeItemID = nextTempID("codebuff_text")
	}
	return []adapters.EventConversion{{
		Type: universal.EventItemDelta,
		Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
			NativeItemID: nativeItemID,
			Delta:        text,
		}},
	}}
}

func reasoningDeltaEvent(event map[string]any) []adapters.EventConversion {
	text := getStringOr(event, "text", "")
	if text == "" {
		return nil
	}
	runID, ok := getString(event, "runId")
	if !ok {
		runID = nextTempID("codebuff_reasoning")
	}
	return []adapters.EventConversion{{
		Type: universal.EventItemDelta,
		Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
			NativeItemID: "reasoning_" + runID,
			Delta:        text,
		}},
	}}
}

func toolCallEvent(event map[string]any) []adapters.EventConversion {
	toolCallID, ok := getString(event, "toolCallId")
	if !ok {
		toolCallID = nextTempID("codebuff_tool")
	}
	toolName := getStringOr(event, "toolName", "unknown")
	input := event["input"]
	parentAgentID, _ := getString(event, "parentAgentId")

	argBytes, err := json.Marshal(input)
	arguments := "{}"
	if err == nil {
		arguments = string(argBytes)
	}

	var conversions []adapters.EventConversion

	if askUserToolNames[toolName] {
		if q, ok := questionFromAskUserInput(input, toolCallID); ok {
			conversions = append(conversions, adapters.EventConversion{
				Type: universal.EventQuestionRequested,
				Data: universal.UniversalEventData{Question: q},
			})
		}
	}

	toolItem := universal.UniversalItem{
		NativeItemID: toolCallID,
		ParentID:     parentAgentID,
		Kind:         universal.ItemKindToolCall,
		Role:         universal.RoleAssistant,
		Content:      []universal.ContentPart{universal.ToolCallPart(toolName, arguments, toolCallID)},
		Status:       universal.ItemCompleted,
	}
	conversions = append(conversions, itemEvents(toolItem, true)...)
	return conversions
}

func toolResultEvent(event map[string]any) []adapters.EventConversion {
	toolCallID, ok := getString(event, "toolCallId")
	if !ok {
		toolCallID = nextTempID("codebuff_tool")
	}
	toolName := getStringOr(event, "toolName", "unknown")
	output := event["output"]
	parentAgentID, _ := getString(event, "parentAgentId")

	outBytes, err := json.Marshal(output)
	outputText := ""
	if err == nil {
		outputText = string(outBytes)
	}

	var conversions []adapters.EventConversion

	if askUserToolNames[toolName] {
		response := extractQuestionResponse(output)
		conversions = append(conversions, adapters.EventConversion{
			Type: universal.EventQuestionResolved,
			Data: universal.UniversalEventData{Question: &universal.QuestionEventData{
				QuestionID: toolCallID,
				Response:   response,
				Status:     universal.QuestionAnswered,
			}},
		})
	}

	toolItem := universal.UniversalItem{
		NativeItemID: toolCallID,
		ParentID:     parentAgentID,
		Kind:         universal.ItemKindToolResult,
		Role:         universal.RoleTool,
		Content:      []universal.ContentPart{universal.ToolResultPart(toolCallID, outputText)},
		Status:       universal.ItemCompleted,
	}
	conversions = append(conversions, itemEvents(toolItem, true)...)
	return conversions
}

func toolProgressEvent(event map[string]any) []adapters.EventConversion {
	toolCallID, ok := getString(event, "toolCallId")
	if !ok {
		toolCallID = nextTempID("codebuff_tool")
	}
	output := getStringOr(event, "output", "")
	if output == "" {
		return nil
	}
	return []adapters.EventConversion{{
		Type: universal.EventItemDelta,
		Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{
			NativeItemID: toolCallID,
			Delta:        output,
		}},
	}}
}

func subagentStartEvent(event map[string]any) []adapters.EventConversion {
	agentID, ok := getString(event, "agentId")
	if !ok {
		agentID = nextTempID("codebuff_subagent")
	}
	agentType := getStringOr(event, "agentType", "unknown")
	displayName := getStringOr(event, "displayName", agentType)
	parentAgentID, _ := getString(event, "parentAgentId")
	model, hasModel := getString(event, "model")
	prompt, hasPrompt := getString(event, "prompt")

	detail := displayName
	if hasModel {
		detail = fmt.Sprintf("%s (%s)", detail, model)
	}
	if hasPrompt {
		preview := prompt
		if len(preview) > 50 {
			preview = preview[:50] + "..."
		}
		detail = fmt.Sprintf("%s: %s", detail, preview)
	}

	item := universal.UniversalItem{
		NativeItemID: agentID,
		ParentID:     parentAgentID,
		Kind:         universal.ItemKindStatus,
		Role:         universal.RoleAssistant,
		Content:      []universal.ContentPart{universal.StatusPart("subagent:"+agentType, &detail)},
		Status:       universal.ItemInProgress,
	}

	return []adapters.EventConversion{{
		Type: universal.EventItemStarted,
		Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}},
	}}
}

func subagentFinishEvent(event map[string]any) []adapters.EventConversion {
	agentID, ok := getString(event, "agentId")
	if !ok {
		agentID = nextTempID("codebuff_subagent")
	}
	agentType := getStringOr(event, "agentType", "unknown")
	displayName := getStringOr(event, "displayName", agentType)
	parentAgentID, _ := getString(event, "parentAgentId")

	detail := displayName + " completed"
	item := universal.UniversalItem{
		NativeItemID: agentID,
		ParentID:     parentAgentID,
		Kind:         universal.ItemKindStatus,
		Role:         universal.RoleAssistant,
		Content:      []universal.ContentPart{universal.StatusPart("subagent:"+agentType, &detail)},
		Status:       universal.ItemCompleted,
	}

	return []adapters.EventConversion{{
		Type: universal.EventItemCompleted,
		Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}},
	}}
}

func errorEvent(event map[string]any) []adapters.EventConversion {
	message := getStringOr(event, "message", "Unknown error")
	return []adapters.EventConversion{{
		Type: universal.EventError,
		Data: universal.UniversalEventData{Error: &universal.ErrorData{
			Message: message,
			Code:    "codebuff",
			Details: event,
		}},
	}}
}

func finishEvent() []adapters.EventConversion {
	return []adapters.EventConversion{{
		Type: universal.EventSessionEnded,
		Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{
			Reason:       universal.SessionEndCompleted,
			TerminatedBy: universal.TerminatedByAgent,
		}},
	}}
}

// itemEvents optionally synthesizes an ItemStarted (InProgress) before the
// terminal ItemCompleted, matching the source's item_events helper.
func itemEvents(item universal.UniversalItem, synthesizeStart bool) []adapters.EventConversion {
	var events []adapters.EventConversion
	if synthesizeStart {
		started := item
		started.Status = universal.ItemInProgress
		events = append(events, adapters.EventConversion{
			Type:      universal.EventItemStarted,
			Data:      universal.UniversalEventData{Item: &universal.ItemEventData{Item: started}},
			Synthetic: true,
		})
	}
	events = append(events, adapters.EventConversion{
		Type: universal.EventItemCompleted,
		Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}},
	})
	return events
}

func questionFromAskUserInput(input any, toolID string) (*universal.QuestionEventData, bool) {
	inputMap, _ := input.(map[string]any)
	if inputMap == nil {
		return nil, false
	}

	if questions, ok := inputMap["questions"].([]any); ok && len(questions) > 0 {
		first, _ := questions[0].(map[string]any)
		if first != nil {
			prompt, _ := getString(first, "question")
			var options []string
			if opts, ok := first["options"].([]any); ok {
				for _, o := range opts {
					if om, ok := o.(map[string]any); ok {
						if label, ok := getString(om, "label"); ok {
							options = append(options, label)
						}
					}
				}
			}
			if prompt != "" {
				return &universal.QuestionEventData{
					QuestionID: toolID,
					Prompt:     prompt,
					Options:    options,
					Status:     universal.QuestionRequestedState,
				}, true
			}
		}
	}

	prompt, _ := getString(inputMap, "question")
	if prompt == "" {
		return nil, false
	}
	var options []string
	if opts, ok := inputMap["options"].([]any); ok {
		for _, o := range opts {
			if s, ok := o.(string); ok {
				options = append(options, s)
			}
		}
	}
	return &universal.QuestionEventData{
		QuestionID: toolID,
		Prompt:     prompt,
		Options:    options,
		Status:     universal.QuestionRequestedState,
	}, true
}

func extractQuestionResponse(output any) string {
	arr, ok := output.([]any)
	if !ok {
		return ""
	}
	for _, item := range arr {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		value, exists := itemMap["value"]
		if !exists {
			continue
		}
		if s, ok := value.(string); ok {
			return s
		}
		if obj, ok := value.(map[string]any); ok {
			if response, ok := getString(obj, "response"); ok {
				return response
			}
			if answer, ok := getString(obj, "answer"); ok {
				return answer
			}
		}
	}
	return ""
}

// EncodeOutbound renders an outbound action into a Codebuff request line.
func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		// Codebuff spawns one process per conversation and has no
		// session/thread-id concept in its wire vocabulary; the
		// single-registered-session fallback in nativeSessionIDFromRaw
		// resolves routing instead.
		return nil, nil
	case adapters.ActionSendUserMessage:
		return json.Marshal(map[string]any{"type": "user_input", "text": action.Text})
	case adapters.ActionReplyQuestion:
		return json.Marshal(map[string]any{
			"type":       "tool_result",
			"toolCallId": action.QuestionID,
			"output":     answersToValues(action.Answers),
		})
	case adapters.ActionRejectQuestion:
		return json.Marshal(map[string]any{
			"type":       "tool_result",
			"toolCallId": action.QuestionID,
			"output":     []map[string]any{{"value": "rejected"}},
		})
	case adapters.ActionReplyPermission:
		return json.Marshal(map[string]any{
			"type":         "permission_reply",
			"permissionId": action.PermissionID,
			"reply":        string(action.Reply),
		})
	case adapters.ActionCancel:
		return json.Marshal(map[string]any{"type": "cancel"})
	default:
		return nil, fmt.Errorf("codebuff: unsupported outbound action %q", action.Kind)
	}
}

func answersToValues(answers [][]string) []map[string]any {
	out := make([]map[string]any, 0, len(answers))
	for _, a := range answers {
		if len(a) == 1 {
			out = append(out, map[string]any{"value": a[0]})
		} else {
			out = append(out, map[string]any{"value": a})
		}
	}
	return out
}
