// Package claude translates Claude Code's Agent Client Protocol (ACP) stream
// into the Universal Event Schema. ACP is real newline-delimited JSON-RPC
// 2.0 over stdio (github.com/coder/acp-go-sdk defines its Go shapes); this
// adapter decodes/encodes the same envelope and method names the SDK uses,
// without adopting the SDK's synchronous connection engine, so it can stay a
// stateless Translate/EncodeOutbound pair like every other adapter in this
// package. Grounded on the teacher's
// internal/agentctl/server/adapter/transport/acp/adapter.go and
// internal/agentctl/server/acp/client.go, which show the real
// Initialize/NewSession/Prompt/Cancel/RequestPermission call surface and the
// SessionUpdate tagged-union shapes (AgentMessageChunk, AgentThoughtChunk,
// ToolCall, ToolCallUpdate, Plan, AvailableCommandsUpdate).
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/universal"
)

// envelope is the generic JSON-RPC 2.0 frame: a request has Method+ID, a
// notification has Method with no ID, a response has ID with no Method.
type envelope struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result,omitempty"`
}

// contentBlock mirrors acp.ContentBlock for the text case, the only variant
// Claude's message/thought chunks use.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type toolCallLocation struct {
	Path string `json:"path"`
	Line *int   `json:"line,omitempty"`
}

type planEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

type availableCommand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// sessionUpdate mirrors acp.SessionUpdate's wire shape: a "sessionUpdate"
// discriminator plus whichever field group that variant populates.
type sessionUpdate struct {
	SessionUpdate string `json:"sessionUpdate"`

	// agent_message_chunk / agent_thought_chunk
	Content *contentBlock `json:"content,omitempty"`

	// tool_call / tool_call_update
	ToolCallID string             `json:"toolCallId,omitempty"`
	Title      string             `json:"title,omitempty"`
	Kind       string             `json:"kind,omitempty"`
	Status     string             `json:"status,omitempty"`
	RawInput   any                `json:"rawInput,omitempty"`
	RawOutput  any                `json:"rawOutput,omitempty"`
	Locations  []toolCallLocation `json:"locations,omitempty"`

	// plan
	Entries []planEntry `json:"entries,omitempty"`

	// available_commands_update
	AvailableCommands []availableCommand `json:"availableCommands,omitempty"`
}

type sessionUpdateParams struct {
	SessionID string        `json:"sessionId"`
	Update    sessionUpdate `json:"update"`
}

type requestPermissionToolCall struct {
	ToolCallID string `json:"toolCallId"`
	Title      string `json:"title,omitempty"`
	Kind       string `json:"kind,omitempty"`
	RawInput   any    `json:"rawInput,omitempty"`
}

type requestPermissionOption struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
}

type requestPermissionParams struct {
	SessionID string                    `json:"sessionId"`
	ToolCall  requestPermissionToolCall `json:"toolCall"`
	Options   []requestPermissionOption `json:"options"`
}

// pendingRequest tracks one of our outbound requests awaiting its response.
// kind selects how handleResponse interprets env.Result; correlationID is
// only meaningful for kind == "session/new".
type pendingRequest struct {
	kind          string
	correlationID string
}

// pendingPermission tracks one agent-initiated session/request_permission
// call awaiting our client's decision, mapping the closed set of
// universal.PermissionReplyKind onto whichever optionId the agent offered
// for it.
type pendingPermission struct {
	requestID int64
	options   map[universal.PermissionReplyKind]string
}

// Adapter is a stateless translator except for the small amount of
// per-process disambiguation state every adapter here is allowed: pending
// request/permission bookkeeping and the native id of whichever message or
// thought block is currently streaming (ACP message chunks carry no item
// id of their own; they're attributed to "the text currently accumulating"
// the same way the rest of this package invents item ids for delta-only
// native events).
type Adapter struct {
	nextID   atomic.Int64
	initOnce sync.Once

	mu              sync.Mutex
	pendingRequests map[int64]pendingRequest
	pendingPerms    map[string]pendingPermission
	currentMessage  string
	currentThought  string
}

func New() *Adapter {
	return &Adapter{
		pendingRequests: make(map[int64]pendingRequest),
		pendingPerms:    make(map[string]pendingPermission),
	}
}

func (a *Adapter) Agent() universal.AgentID { return universal.AgentClaude }

func (a *Adapter) Translate(_ context.Context, native []byte) []adapters.EventConversion {
	var env envelope
	if err := json.Unmarshal(native, &env); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: err.Error()}},
		}}
	}

	switch {
	case env.Method != "" && env.ID != nil:
		return a.handleAgentRequest(env)
	case env.Method != "":
		return a.handleNotification(env)
	case env.ID != nil:
		return a.handleResponse(env)
	default:
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(native), Reason: "neither a request, notification, nor response"}},
		}}
	}
}

func (a *Adapter) handleNotification(env envelope) []adapters.EventConversion {
	if env.Method != "session/update" {
		return nil
	}
	var params sessionUpdateParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(env.Params), Reason: err.Error()}},
		}}
	}

	out := a.convertSessionUpdate(params.Update)
	raw := map[string]any{"method": env.Method, "sessionId": params.SessionID}
	for i := range out {
		out[i].Raw = raw
	}
	return out
}

func (a *Adapter) convertSessionUpdate(u sessionUpdate) []adapters.EventConversion {
	switch u.SessionUpdate {
	case "agent_message_chunk":
		return a.streamChunk(&a.currentMessage, "claude_msg", universal.ItemKindMessage, u.Content)
	case "agent_thought_chunk":
		return a.streamChunk(&a.currentThought, "claude_thought", universal.ItemKindReasoning, u.Content)
	case "tool_call":
		return a.toolCallStarted(u)
	case "tool_call_update":
		return a.toolCallUpdated(u)
	case "plan":
		return a.planUpdate(u)
	case "available_commands_update":
		return a.availableCommandsUpdate(u)
	default:
		return nil
	}
}

// streamChunk attributes a text/thought chunk to whichever item id is
// currently open for that stream, opening one (with a synthetic ItemStarted)
// the first time a chunk arrives since the last turn boundary or tool call.
func (a *Adapter) streamChunk(current *string, tempPrefix string, kind universal.ItemKind, content *contentBlock) []adapters.EventConversion {
	if content == nil || content.Text == "" {
		return nil
	}

	a.mu.Lock()
	opening := *current == ""
	if opening {
		*current = nextTempID(tempPrefix)
	}
	itemID := *current
	a.mu.Unlock()

	var out []adapters.EventConversion
	if opening {
		role := universal.RoleAssistant
		out = append(out, adapters.EventConversion{
			Type: universal.EventItemStarted,
			Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: universal.UniversalItem{
				NativeItemID: itemID, Kind: kind, Role: role, Status: universal.ItemInProgress,
			}}},
			Synthetic: true,
		})
	}
	out = append(out, adapters.EventConversion{
		Type: universal.EventItemDelta,
		Data: universal.UniversalEventData{ItemDelta: &universal.ItemDeltaData{NativeItemID: itemID, Delta: content.Text}},
	})
	return out
}

func (a *Adapter) toolCallStarted(u sessionUpdate) []adapters.EventConversion {
	if u.ToolCallID == "" {
		return nil
	}
	// A tool call interrupts whatever text/thought was streaming; the next
	// chunk after it starts a fresh item.
	a.mu.Lock()
	a.currentMessage = ""
	a.currentThought = ""
	a.mu.Unlock()

	argsBytes, _ := json.Marshal(u.RawInput)
	item := universal.UniversalItem{
		NativeItemID: u.ToolCallID,
		Kind:         universal.ItemKindToolCall,
		Role:         universal.RoleAssistant,
		Content:      []universal.ContentPart{universal.ToolCallPart(u.Title, string(argsBytes), u.ToolCallID)},
		Status:       universal.ItemInProgress,
	}
	return []adapters.EventConversion{{Type: universal.EventItemStarted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) toolCallUpdated(u sessionUpdate) []adapters.EventConversion {
	if u.ToolCallID == "" {
		return nil
	}
	var status universal.ItemStatus
	switch u.Status {
	case "completed":
		status = universal.ItemCompleted
	case "failed":
		status = universal.ItemFailed
	default:
		// Interim progress update (e.g. partial rawOutput) carries no
		// universal event shape to land in; only terminal updates do.
		return nil
	}

	outBytes, _ := json.Marshal(u.RawOutput)
	item := universal.UniversalItem{
		NativeItemID: u.ToolCallID,
		Kind:         universal.ItemKindToolResult,
		Role:         universal.RoleTool,
		Content:      []universal.ContentPart{universal.ToolResultPart(u.ToolCallID, string(outBytes))},
		Status:       status,
	}
	return []adapters.EventConversion{{Type: universal.EventToolCallCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}}}
}

func (a *Adapter) planUpdate(u sessionUpdate) []adapters.EventConversion {
	if len(u.Entries) == 0 {
		return nil
	}
	parts := make([]universal.ContentPart, 0, len(u.Entries))
	for _, e := range u.Entries {
		status := e.Status
		parts = append(parts, universal.StatusPart(e.Content, &status))
	}
	item := universal.UniversalItem{
		NativeItemID: nextTempID("claude_plan"),
		Kind:         universal.ItemKindStatus,
		Role:         universal.RoleAssistant,
		Content:      parts,
		Status:       universal.ItemCompleted,
	}
	return []adapters.EventConversion{{Type: universal.EventItemCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}, Synthetic: true}}
}

func (a *Adapter) availableCommandsUpdate(u sessionUpdate) []adapters.EventConversion {
	if len(u.AvailableCommands) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.AvailableCommands))
	for _, c := range u.AvailableCommands {
		names = append(names, c.Name)
	}
	label := "available commands updated"
	detail := strings.Join(names, ", ")
	item := universal.UniversalItem{
		NativeItemID: nextTempID("claude_commands"),
		Kind:         universal.ItemKindStatus,
		Role:         universal.RoleSystem,
		Content:      []universal.ContentPart{universal.StatusPart(label, &detail)},
		Status:       universal.ItemCompleted,
	}
	return []adapters.EventConversion{{Type: universal.EventItemCompleted, Data: universal.UniversalEventData{Item: &universal.ItemEventData{Item: item}}, Synthetic: true}}
}

// handleAgentRequest handles an agent-initiated JSON-RPC request. The only
// one this daemon answers is session/request_permission; ACP's file and
// terminal RPCs (fs/read_text_file, terminal/create, ...) require a real
// filesystem/process surface on the client side that this stateless
// Translate/EncodeOutbound adapter does not have, so they surface as
// AgentUnparsed rather than silently stalling the agent.
func (a *Adapter) handleAgentRequest(env envelope) []adapters.EventConversion {
	if env.Method != "session/request_permission" {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{
				RawBytes: string(env.Params),
				Reason:   fmt.Sprintf("unsupported agent-initiated request %q", env.Method),
			}},
		}}
	}

	var params requestPermissionParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return []adapters.EventConversion{{
			Type: universal.EventAgentUnparsed,
			Data: universal.UniversalEventData{Unparsed: &universal.UnparsedData{RawBytes: string(env.Params), Reason: err.Error()}},
		}}
	}
	if params.ToolCall.ToolCallID == "" {
		return nil
	}

	options := make(map[universal.PermissionReplyKind]string, len(params.Options))
	for _, opt := range params.Options {
		switch {
		case strings.Contains(opt.Kind, "allow") && strings.Contains(opt.Kind, "always"):
			options[universal.PermissionAlways] = opt.OptionID
		case strings.Contains(opt.Kind, "allow"):
			options[universal.PermissionOnce] = opt.OptionID
		case strings.Contains(opt.Kind, "reject"):
			options[universal.PermissionReject] = opt.OptionID
		}
	}

	a.mu.Lock()
	a.pendingPerms[params.ToolCall.ToolCallID] = pendingPermission{requestID: *env.ID, options: options}
	a.mu.Unlock()

	return []adapters.EventConversion{{
		Type: universal.EventPermissionRequested,
		Data: universal.UniversalEventData{Permission: &universal.PermissionEventData{
			PermissionID: params.ToolCall.ToolCallID,
			ToolName:     params.ToolCall.Title,
			Request:      map[string]any{"kind": params.ToolCall.Kind, "rawInput": params.ToolCall.RawInput},
		}},
		Raw: map[string]any{"method": env.Method, "sessionId": params.SessionID, "toolCallId": params.ToolCall.ToolCallID},
	}}
}

// handleResponse resolves a response against the pending request it answers.
// A response whose id was never registered (a stray duplicate, or one from
// before a process restart) is ignored rather than treated as malformed.
func (a *Adapter) handleResponse(env envelope) []adapters.EventConversion {
	a.mu.Lock()
	req, ok := a.pendingRequests[*env.ID]
	if ok {
		delete(a.pendingRequests, *env.ID)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}

	if env.Error != nil {
		return []adapters.EventConversion{{Type: universal.EventError, Data: universal.UniversalEventData{Error: &universal.ErrorData{
			Message: env.Error.Message,
			Code:    "claude",
			Details: map[string]any{"acpErrorCode": env.Error.Code, "requestKind": req.kind},
		}}}}
	}

	switch req.kind {
	case "session/new":
		var result struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(env.Result, &result); err != nil || result.SessionID == "" {
			return nil
		}
		return []adapters.EventConversion{{
			Type: universal.EventSessionStarted,
			Data: universal.UniversalEventData{SessionStarted: &universal.SessionStartedData{
				Metadata: map[string]any{"agent": "claude", "sessionId": result.SessionID},
			}},
			AgentSessionID: result.SessionID,
			Raw:            map[string]any{"correlationId": req.correlationID, "sessionId": result.SessionID},
		}}
	case "session/prompt":
		a.mu.Lock()
		a.currentMessage = ""
		a.currentThought = ""
		a.mu.Unlock()
		return []adapters.EventConversion{{Type: universal.EventTurnEnded, Data: universal.UniversalEventData{Turn: &universal.TurnData{}}}}
	default:
		// "initialize": handshake ack only, no event.
		return nil
	}
}

func (a *Adapter) EncodeOutbound(action adapters.OutboundAction) ([]byte, error) {
	switch action.Kind {
	case adapters.ActionCreateSession:
		return a.encodeCreateSession(action)
	case adapters.ActionSendUserMessage:
		id := a.nextID.Add(1)
		a.mu.Lock()
		a.pendingRequests[id] = pendingRequest{kind: "session/prompt"}
		a.mu.Unlock()
		return json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: "session/prompt", Params: map[string]any{
			"prompt": []contentBlock{{Type: "text", Text: action.Text}},
		}})
	case adapters.ActionReplyQuestion, adapters.ActionRejectQuestion:
		// ACP has no ask-user-question primitive distinct from permission
		// requests; Claude surfaces clarifying questions as ordinary
		// assistant text, so there is nothing to acknowledge on the wire.
		return nil, nil
	case adapters.ActionReplyPermission:
		return a.encodeReplyPermission(action)
	case adapters.ActionCancel:
		// ACP's cancel is a notification (CancelNotification in the SDK), not
		// a request: it carries no id and expects no response.
		return json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "session/cancel"})
	default:
		return nil, fmt.Errorf("claude: unsupported outbound action %q", action.Kind)
	}
}

// encodeCreateSession renders the session/new request that carries
// CorrelationID through to handleResponse, preceded (once per process, via
// initOnce) by the initialize handshake ACP requires before any session/new.
// The two JSON-RPC frames are newline-joined since the supervisor writes
// whatever EncodeOutbound returns as one stdin write followed by a single
// trailing newline (internal/supervisor.Supervisor.Send); an embedded
// newline here still yields two well-framed lines for the native reader.
func (a *Adapter) encodeCreateSession(action adapters.OutboundAction) ([]byte, error) {
	var lines [][]byte

	a.initOnce.Do(func() {
		id := a.nextID.Add(1)
		a.mu.Lock()
		a.pendingRequests[id] = pendingRequest{kind: "initialize"}
		a.mu.Unlock()
		initReq, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: "initialize", Params: map[string]any{
			"protocolVersion": 1,
			"clientInfo":      map[string]any{"name": "agentd", "version": "0.1.0"},
		}})
		if err == nil {
			lines = append(lines, initReq)
		}
	})

	id := a.nextID.Add(1)
	a.mu.Lock()
	a.pendingRequests[id] = pendingRequest{kind: "session/new", correlationID: action.CorrelationID}
	a.mu.Unlock()
	sessionReq, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: "session/new", Params: map[string]any{
		"cwd":        ".",
		"mcpServers": []any{},
	}})
	if err != nil {
		return nil, err
	}
	lines = append(lines, sessionReq)
	return bytes.Join(lines, []byte("\n")), nil
}

func (a *Adapter) encodeReplyPermission(action adapters.OutboundAction) ([]byte, error) {
	a.mu.Lock()
	pending, ok := a.pendingPerms[action.PermissionID]
	if ok {
		delete(a.pendingPerms, action.PermissionID)
	}
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("claude: no pending permission request %q", action.PermissionID)
	}

	var result map[string]any
	if optionID, ok := pending.options[action.Reply]; ok {
		result = map[string]any{"outcome": map[string]any{"selected": map[string]any{"optionId": optionID}}}
	} else {
		result = map[string]any{"outcome": map[string]any{"cancelled": map[string]any{}}}
	}
	return json.Marshal(rpcResponse{JSONRPC: "2.0", ID: pending.requestID, Result: result})
}

var tempID atomic.Uint64

func nextTempID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, tempID.Add(1))
}
