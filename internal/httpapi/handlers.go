package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kandev/agentd/internal/installer"
	"github.com/kandev/agentd/internal/session"
	"github.com/kandev/agentd/internal/supervisor"
	"github.com/kandev/agentd/internal/universal"
)

// Handlers wires the session manager, installer, supervisor, and agent
// start trigger into gin route handlers.
type Handlers struct {
	sessions    *session.Manager
	installer   installer.Installer
	sup         *supervisor.Supervisor
	ensureAgent func(ctx context.Context, agent universal.AgentID) error
}

func NewHandlers(sessions *session.Manager, inst installer.Installer, sup *supervisor.Supervisor, ensureAgent func(ctx context.Context, agent universal.AgentID) error) *Handlers {
	return &Handlers{sessions: sessions, installer: inst, sup: sup, ensureAgent: ensureAgent}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (h *Handlers) ListAgents(c *gin.Context) {
	out := make([]AgentMetadata, 0, len(universal.KnownAgents()))
	for _, agent := range universal.KnownAgents() {
		version, installed := h.installer.Version(c.Request.Context(), agent)
		out = append(out, AgentMetadata{Agent: string(agent), Installed: installed, Version: version})
	}
	c.JSON(200, out)
}

func (h *Handlers) InstallAgent(c *gin.Context) {
	agent := universal.AgentID(c.Param("agent"))
	if !agent.Valid() {
		WriteProblem(c, universal.UnsupportedAgent(string(agent)))
		return
	}
	var req InstallRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.installer.Install(c.Request.Context(), agent, installer.InstallOptions{Reinstall: req.Reinstall})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(200, InstallResponse{Path: result.Path})
}

func (h *Handlers) AgentModes(c *gin.Context) {
	agent := universal.AgentID(c.Param("agent"))
	if !agent.Valid() {
		WriteProblem(c, universal.UnsupportedAgent(string(agent)))
		return
	}
	c.JSON(200, gin.H{"modes": []string{
		string(universal.PermissionModeDefault),
		string(universal.PermissionModePlan),
		string(universal.PermissionModeAcceptEdits),
	}})
}

func (h *Handlers) AgentModels(c *gin.Context) {
	agent := universal.AgentID(c.Param("agent"))
	if !agent.Valid() {
		WriteProblem(c, universal.UnsupportedAgent(string(agent)))
		return
	}
	c.JSON(200, gin.H{"models": defaultModelsFor(agent)})
}

func defaultModelsFor(agent universal.AgentID) []string {
	switch agent {
	case universal.AgentClaude:
		return []string{"claude-default"}
	case universal.AgentCodex:
		return []string{"codex-default"}
	case universal.AgentOpencode:
		return []string{"opencode-default"}
	case universal.AgentAmp:
		return []string{"amp-default"}
	case universal.AgentCodebuff:
		return []string{"codebuff-default"}
	default:
		return []string{"mock-1"}
	}
}

func (h *Handlers) CreateSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, universal.InvalidRequest("malformed create-session body"))
		return
	}

	agent := universal.AgentID(req.Agent)
	if !agent.Valid() {
		WriteProblem(c, universal.UnsupportedAgent(string(agent)))
		return
	}
	permissionMode := universal.PermissionMode(req.PermissionMode)

	metadata := map[string]any{"model": req.Model, "variant": req.Variant}

	if h.ensureAgent != nil {
		if err := h.ensureAgent(c.Request.Context(), agent); err != nil {
			WriteError(c, err)
			return
		}
	}

	server, ok := h.sup.Server(agent)
	if !ok {
		WriteProblem(c, universal.UnsupportedAgent(string(agent)))
		return
	}

	// Register a client-generated correlation id as the session's
	// provisional native id *before* the session exists, so the first
	// native event the agent emits for it can already be routed. Adapters
	// whose protocol accepts a client-chosen session/thread id keep this as
	// the real native id forever; adapters whose protocol assigns one
	// server-side (ACP) later call RebindNative once they learn it.
	correlationID := uuid.NewString()
	if err := server.RegisterSession(sessionID, correlationID); err != nil {
		WriteError(c, err)
		return
	}

	s, err := h.sessions.Create(sessionID, agent, session.CreateOptions{
		PermissionMode: permissionMode,
		Metadata:       metadata,
	})
	if err != nil {
		server.UnregisterSession(sessionID)
		WriteError(c, err)
		return
	}

	if err := s.SendCreateHandshake(c.Request.Context(), correlationID); err != nil {
		server.UnregisterSession(sessionID)
		h.sessions.Remove(sessionID)
		WriteError(c, err)
		return
	}

	c.JSON(200, CreateSessionResponse{Healthy: true})
}

func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			SessionID:      s.ID,
			Agent:          string(s.Agent),
			PermissionMode: string(s.PermissionMode()),
			Ended:          s.Ended(),
			AgentSessionID: s.AgentSessionID(),
		})
	}
	c.JSON(200, gin.H{"sessions": out})
}

func (h *Handlers) PostMessage(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, universal.InvalidRequest("malformed message body"))
		return
	}
	if err := s.PostMessage(c.Request.Context(), req.Text); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(202, gin.H{"accepted": true})
}

func (h *Handlers) ReadEvents(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	offset := parseUintQuery(c, "offset", 0)
	limit := int(parseUintQuery(c, "limit", 0))

	events, hasMore := s.ReadEvents(offset, limit)
	if events == nil {
		events = []universal.UniversalEvent{}
	}
	c.JSON(200, EventsResponse{Events: events, HasMore: hasMore})
}

func (h *Handlers) StreamEvents(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	offset := parseUintQuery(c, "offset", 0)
	ch, unsubscribe := s.SubscribeSSE(offset)
	streamSSE(c, ch, unsubscribe)
}

func (h *Handlers) StreamTurns(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	ch, unsubscribe := s.SubscribeTurn()
	streamSSE(c, ch, unsubscribe)
}

// streamSSE frames each event as one "data:" line (spec §6) and closes the
// stream on a terminal SessionEnded event, client disconnect, or channel
// close (e.g. after a lagged subscriber is dropped).
func streamSSE(c *gin.Context, ch <-chan universal.UniversalEvent, unsubscribe func()) {
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			return ev.Type != universal.EventSessionEnded
		case <-clientGone:
			return false
		}
	})
}

func (h *Handlers) ReplyQuestion(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	var req QuestionReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, universal.InvalidRequest("malformed question reply body"))
		return
	}
	if err := s.ReplyQuestion(c.Request.Context(), c.Param("qid"), req.Answers); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(200, gin.H{"accepted": true})
}

func (h *Handlers) RejectQuestion(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	if err := s.RejectQuestion(c.Request.Context(), c.Param("qid")); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(200, gin.H{"accepted": true})
}

func (h *Handlers) ReplyPermission(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	var req PermissionReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, universal.InvalidRequest("malformed permission reply body"))
		return
	}
	reply := universal.PermissionReplyKind(req.Reply)
	switch reply {
	case universal.PermissionOnce, universal.PermissionAlways, universal.PermissionReject:
	default:
		WriteProblem(c, universal.InvalidRequest("permission reply must be once, always, or reject"))
		return
	}
	if err := s.ReplyPermission(c.Request.Context(), c.Param("pid"), reply); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(200, gin.H{"accepted": true})
}

func parseUintQuery(c *gin.Context, key string, fallback uint64) uint64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	var v uint64
	for _, r := range raw {
		if r < '0' || r > '9' {
			return fallback
		}
		v = v*10 + uint64(r-'0')
	}
	return v
}
