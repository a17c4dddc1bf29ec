// Package session implements the per-session state machine: the message
// queue, the monotonically sequenced event log, the question/permission
// registries, and turn-boundary tracking. Each Session is an actor — one
// goroutine owns all mutable state and every public method round-trips a
// closure through its command channel — which is the Go-idiomatic
// substitute for the source's "non-blocking asynchronous mutex" per
// session critical section: a single-threaded owner makes every mutation
// automatically race-free with no explicit lock.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/universal"
)

// Sender delivers an encoded outbound payload to the agent backing a
// session. Implemented by *supervisor.Supervisor in production wiring; a
// narrow interface here keeps the session package decoupled from
// supervisor's process/transport concerns.
type Sender interface {
	Send(ctx context.Context, agent universal.AgentID, payload []byte) error
}

// CreateOptions configures a new session.
type CreateOptions struct {
	PermissionMode universal.PermissionMode
	Metadata       map[string]any
}

const (
	subscriberBufferSize = 64
	defaultEventsLimit   = 200
)

type subscriber struct {
	id        int
	ch        chan universal.UniversalEvent
	turnsOnly bool
	lagged    bool
}

// Session is a single client-owned conversation bound to one agent.
type Session struct {
	ID     string
	Agent  universal.AgentID
	adapter adapters.Adapter
	sender  Sender
	log     *logging.Logger

	cmdCh chan func()

	// Everything below is only ever touched from the actor goroutine
	// started by run().
	permissionMode universal.PermissionMode
	createdAt      time.Time
	ended          bool
	endReason      *universal.SessionEndReason

	events  []universal.UniversalEvent
	nextSeq uint64

	items       map[string]string // nativeItemID -> itemID
	itemCounter uint64

	openQuestions   map[string]*universal.Question
	openPermissions map[string]*universal.Permission

	turnRunning bool
	turnItemID  string

	// agentSessionID is the agent's own session/thread id, once the adapter
	// has learned it (e.g. from ACP's session/new response). Empty for
	// protocols where the client-chosen correlation id already doubles as
	// the permanent native id.
	agentSessionID string

	subscribers  map[int]*subscriber
	subIDCounter int
}

// New constructs and starts a Session's actor goroutine. Callers should use
// Manager.Create rather than calling this directly in production code.
func New(id string, agent universal.AgentID, adapter adapters.Adapter, sender Sender, opts CreateOptions, log *logging.Logger) *Session {
	s := &Session{
		ID:              id,
		Agent:           agent,
		adapter:         adapter,
		sender:          sender,
		log:             log,
		cmdCh:           make(chan func(), 16),
		permissionMode:  opts.PermissionMode.Normalize(agent),
		createdAt:       time.Now(),
		items:           make(map[string]string),
		openQuestions:   make(map[string]*universal.Question),
		openPermissions: make(map[string]*universal.Permission),
		subscribers:     make(map[int]*subscriber),
	}
	go s.run()
	s.exec(func() {
		s.appendLocked(universal.EventSessionStarted, universal.UniversalEventData{
			SessionStarted: &universal.SessionStartedData{Metadata: opts.Metadata},
		}, nil)
	})
	return s
}

func (s *Session) run() {
	for cmd := range s.cmdCh {
		cmd()
	}
}

// exec submits fn to the actor and blocks until it has run.
func (s *Session) exec(fn func()) {
	done := make(chan struct{})
	s.cmdCh <- func() {
		fn()
		close(done)
	}
	<-done
}

// PermissionMode returns the session's current (already-normalized)
// permission mode.
func (s *Session) PermissionMode() universal.PermissionMode {
	var mode universal.PermissionMode
	s.exec(func() { mode = s.permissionMode })
	return mode
}

// CreatedAt returns the session's creation time.
func (s *Session) CreatedAt() time.Time {
	var t time.Time
	s.exec(func() { t = s.createdAt })
	return t
}

// Ended reports whether the session has reached a terminal state.
func (s *Session) Ended() bool {
	var ended bool
	s.exec(func() { ended = s.ended })
	return ended
}

// AgentSessionID returns the agent's own session/thread id once the adapter
// has learned it, or "" if the protocol never assigns one distinct from the
// client's correlation id.
func (s *Session) AgentSessionID() string {
	var id string
	s.exec(func() { id = s.agentSessionID })
	return id
}

// SendCreateHandshake asks the adapter to encode a create-session action
// carrying correlationID, the provisional native id the caller registered
// with the supervisor before this session existed, and sends it to the
// agent. Adapters whose protocol has no session-creation handshake (mock,
// codebuff — one process per conversation, no native session id to
// negotiate) return a nil payload from EncodeOutbound, which is treated as
// a no-op rather than an error.
func (s *Session) SendCreateHandshake(ctx context.Context, correlationID string) error {
	var payload []byte
	var encodeErr error
	s.exec(func() {
		payload, encodeErr = s.adapter.EncodeOutbound(adapters.OutboundAction{
			Kind:           adapters.ActionCreateSession,
			CorrelationID:  correlationID,
			PermissionMode: s.permissionMode,
		})
	})
	if encodeErr != nil {
		return universal.AgentErrorf("encoding create-session handshake: %v", encodeErr)
	}
	if payload == nil {
		return nil
	}
	return s.sender.Send(ctx, s.Agent, payload)
}

// PostMessage encodes and sends a user message, transitioning Idle -> Running
// and emitting a synthetic TurnStarted if no turn is currently open.
func (s *Session) PostMessage(ctx context.Context, text string) error {
	var sendErr error
	var payload []byte
	var encodeErr error

	s.exec(func() {
		if s.ended {
			sendErr = universal.SessionEnded(s.ID)
			return
		}
		payload, encodeErr = s.adapter.EncodeOutbound(adapters.OutboundAction{
			Kind: adapters.ActionSendUserMessage,
			Text: text,
		})
	})
	if sendErr != nil {
		return sendErr
	}
	if encodeErr != nil {
		return universal.AgentErrorf("encoding outbound message: %v", encodeErr)
	}

	if err := s.sender.Send(ctx, s.Agent, payload); err != nil {
		return err
	}

	s.exec(func() {
		if !s.turnRunning {
			itemID := s.allocateSyntheticItemID()
			s.turnRunning = true
			s.turnItemID = itemID
			s.appendLocked(universal.EventTurnStarted, universal.UniversalEventData{Turn: &universal.TurnData{ItemID: itemID}}, nil)
		}
	})
	return nil
}

// ReadEvents returns events with sequence > offset, capped at limit (or
// defaultEventsLimit if limit <= 0), plus whether more events exist beyond
// the returned range. Never blocks.
func (s *Session) ReadEvents(offset uint64, limit int) ([]universal.UniversalEvent, bool) {
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	var out []universal.UniversalEvent
	var hasMore bool
	s.exec(func() {
		for _, ev := range s.events {
			if ev.Sequence > offset {
				out = append(out, ev)
			}
		}
		if len(out) > limit {
			hasMore = true
			out = out[:limit]
		}
	})
	return out, hasMore
}

// SubscribeSSE returns a channel that first drains the backlog strictly
// after offset, then receives live events, and an unsubscribe func.
func (s *Session) SubscribeSSE(offset uint64) (<-chan universal.UniversalEvent, func()) {
	return s.subscribe(offset, false)
}

// SubscribeTurn is like SubscribeSSE but filters to TurnStarted/TurnEnded
// and is expected by callers to auto-close on the first TurnEnded.
func (s *Session) SubscribeTurn() (<-chan universal.UniversalEvent, func()) {
	return s.subscribe(0, true)
}

func (s *Session) subscribe(offset uint64, turnsOnly bool) (<-chan universal.UniversalEvent, func()) {
	ch := make(chan universal.UniversalEvent, subscriberBufferSize)
	var id int
	var alreadyEnded bool
	var dropped bool

	s.exec(func() {
		id = s.subIDCounter
		s.subIDCounter++
		sub := &subscriber{id: id, ch: ch, turnsOnly: turnsOnly}
		s.subscribers[id] = sub

		for _, ev := range s.events {
			if ev.Sequence <= offset {
				continue
			}
			if turnsOnly && ev.Type != universal.EventTurnStarted && ev.Type != universal.EventTurnEnded {
				continue
			}
			select {
			case ch <- ev:
			default:
				sub.lagged = true
			}
		}
		if sub.lagged {
			// The backlog alone overflowed the buffer: close the stream the
			// same way fanOut does for a live overflow.
			s.dropLaggedSubscriberLocked(id, sub)
			dropped = true
		}
		alreadyEnded = s.ended
	})

	if alreadyEnded && !dropped {
		close(ch)
	}

	unsubscribe := func() {
		s.exec(func() {
			delete(s.subscribers, id)
		})
	}
	return ch, unsubscribe
}

// ReplyQuestion forwards an answer to the agent; the corresponding
// QuestionResolved event is adapter-driven, not synthesized here.
func (s *Session) ReplyQuestion(ctx context.Context, questionID string, answers [][]string) error {
	var appErr error
	var payload []byte
	s.exec(func() {
		q, ok := s.openQuestions[questionID]
		if !ok {
			appErr = universal.QuestionNotFound(questionID)
			return
		}
		if q.Status != universal.QuestionRequestedState {
			appErr = universal.QuestionAlreadyResolved(questionID)
			return
		}
		var err error
		payload, err = s.adapter.EncodeOutbound(adapters.OutboundAction{
			Kind:       adapters.ActionReplyQuestion,
			QuestionID: questionID,
			Answers:    answers,
		})
		if err != nil {
			appErr = universal.AgentErrorf("encoding question reply: %v", err)
		}
	})
	if appErr != nil {
		return appErr
	}
	return s.sender.Send(ctx, s.Agent, payload)
}

// RejectQuestion behaves like ReplyQuestion but encodes a rejection payload.
func (s *Session) RejectQuestion(ctx context.Context, questionID string) error {
	var appErr error
	var payload []byte
	s.exec(func() {
		q, ok := s.openQuestions[questionID]
		if !ok {
			appErr = universal.QuestionNotFound(questionID)
			return
		}
		if q.Status != universal.QuestionRequestedState {
			appErr = universal.QuestionAlreadyResolved(questionID)
			return
		}
		var err error
		payload, err = s.adapter.EncodeOutbound(adapters.OutboundAction{Kind: adapters.ActionRejectQuestion, QuestionID: questionID})
		if err != nil {
			appErr = universal.AgentErrorf("encoding question rejection: %v", err)
		}
	})
	if appErr != nil {
		return appErr
	}
	return s.sender.Send(ctx, s.Agent, payload)
}

// ReplyPermission forwards a permission decision to the agent; the
// corresponding PermissionResolved event is adapter-driven.
func (s *Session) ReplyPermission(ctx context.Context, permissionID string, reply universal.PermissionReplyKind) error {
	var appErr error
	var payload []byte
	s.exec(func() {
		if _, ok := s.openPermissions[permissionID]; !ok {
			appErr = universal.PermissionNotFound(permissionID)
			return
		}
		var err error
		payload, err = s.adapter.EncodeOutbound(adapters.OutboundAction{
			Kind:         adapters.ActionReplyPermission,
			PermissionID: permissionID,
			Reply:        reply,
		})
		if err != nil {
			appErr = universal.AgentErrorf("encoding permission reply: %v", err)
		}
	})
	if appErr != nil {
		return appErr
	}
	return s.sender.Send(ctx, s.Agent, payload)
}

// AppendConversions is invoked by the Event Router with a batch of adapter
// conversions produced from a single native read. Ordering within the
// batch is preserved verbatim.
func (s *Session) AppendConversions(conversions []adapters.EventConversion) {
	s.exec(func() {
		for _, c := range conversions {
			if s.ended {
				// SessionEnded is terminal; drop anything the adapter still
				// emits afterward (e.g. a stray trailing line).
				return
			}
			s.applyConversion(c)
		}
	})
}

func (s *Session) applyConversion(c adapters.EventConversion) {
	data := c.Data

	switch c.Type {
	case universal.EventItemDelta:
		if data.ItemDelta != nil {
			itemID := s.resolveItemID(data.ItemDelta.NativeItemID)
			data.ItemDelta.ItemID = itemID
		}
	case universal.EventItemStarted, universal.EventItemCompleted, universal.EventToolCallStarted, universal.EventToolCallCompleted:
		if data.Item != nil {
			itemID := s.resolveItemID(data.Item.Item.NativeItemID)
			data.Item.Item.ItemID = itemID
		}
	}

	if c.AgentSessionID != "" {
		s.agentSessionID = c.AgentSessionID
	}
	s.appendLocked(c.Type, data, c.Raw)

	switch c.Type {
	case universal.EventQuestionRequested:
		if data.Question != nil {
			s.openQuestions[data.Question.QuestionID] = &universal.Question{
				QuestionID: data.Question.QuestionID,
				Prompt:     data.Question.Prompt,
				Options:    data.Question.Options,
				Status:     universal.QuestionRequestedState,
				CreatedAt:  time.Now(),
			}
		}
	case universal.EventQuestionResolved:
		if data.Question != nil {
			if q, ok := s.openQuestions[data.Question.QuestionID]; ok {
				q.Status = universal.QuestionAnswered
				q.Response = data.Question.Response
			}
		}
	case universal.EventPermissionRequested:
		if data.Permission != nil {
			s.openPermissions[data.Permission.PermissionID] = &universal.Permission{
				PermissionID: data.Permission.PermissionID,
				ToolName:     data.Permission.ToolName,
				Request:      data.Permission.Request,
				Status:       universal.PermissionRequestedState,
				CreatedAt:    time.Now(),
			}
		}
	case universal.EventPermissionResolved:
		if data.Permission != nil {
			if p, ok := s.openPermissions[data.Permission.PermissionID]; ok {
				p.Status = universal.PermissionReplied
				p.Reply = data.Permission.Reply
			}
		}
	case universal.EventTurnEnded:
		s.turnRunning = false
		s.turnItemID = ""
	case universal.EventSessionEnded:
		s.ended = true
		if data.SessionEnded != nil {
			reason := data.SessionEnded.Reason
			s.endReason = &reason
		}
		s.closeSubscribers()
	}
}

// resolveItemID looks up or allocates the stable synthetic item_id for a
// given native_item_id, per the injective mapping invariant (spec §3).
func (s *Session) resolveItemID(nativeItemID string) string {
	if nativeItemID == "" {
		return s.allocateSyntheticItemID()
	}
	if id, ok := s.items[nativeItemID]; ok {
		return id
	}
	id := uuid.NewString()
	s.items[nativeItemID] = id
	return id
}

func (s *Session) allocateSyntheticItemID() string {
	s.itemCounter++
	return uuid.NewString()
}

func (s *Session) appendLocked(eventType universal.UniversalEventType, data universal.UniversalEventData, raw map[string]any) {
	s.nextSeq++
	ev := universal.UniversalEvent{
		Sequence:  s.nextSeq,
		Timestamp: time.Now(),
		SessionID: s.ID,
		Agent:     s.Agent,
		Type:      eventType,
		Data:      data,
		Raw:       raw,
		AgentSessionID: s.agentSessionID,
	}
	s.events = append(s.events, ev)
	s.fanOut(ev)
}

func (s *Session) fanOut(ev universal.UniversalEvent) {
	for id, sub := range s.subscribers {
		if sub.turnsOnly && ev.Type != universal.EventTurnStarted && ev.Type != universal.EventTurnEnded {
			continue
		}
		if sub.lagged {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.lagged = true
			s.dropLaggedSubscriberLocked(id, sub)
			continue
		}
		if sub.turnsOnly && ev.Type == universal.EventTurnEnded {
			close(sub.ch)
			delete(s.subscribers, id)
		}
	}
}

// dropLaggedSubscriberLocked closes an overflowing subscriber's channel, but
// first attempts a non-blocking send of a terminal AgentUnparsed-kind event
// so the client can tell "server dropped events under backpressure" apart
// from an ordinary channel close at end of stream.
func (s *Session) dropLaggedSubscriberLocked(id int, sub *subscriber) {
	terminal := universal.UniversalEvent{
		Sequence:  s.nextSeq,
		Timestamp: time.Now(),
		SessionID: s.ID,
		Agent:     s.Agent,
		Type:      universal.EventAgentUnparsed,
		Data: universal.UniversalEventData{
			Unparsed: &universal.UnparsedData{RawBytes: "subscriber lagged: buffer overflow, events dropped"},
		},
	}
	select {
	case sub.ch <- terminal:
	default:
	}
	close(sub.ch)
	delete(s.subscribers, id)
}

func (s *Session) closeSubscribers() {
	for id, sub := range s.subscribers {
		close(sub.ch)
		delete(s.subscribers, id)
	}
}

// MarkEnded force-ends the session (used by the supervisor on process exit
// or host-initiated shutdown) with the given reason/exit code.
func (s *Session) MarkEnded(reason universal.SessionEndReason, terminatedBy universal.TerminatedBy, exitCode *int) {
	s.exec(func() {
		if s.ended {
			return
		}
		s.applyConversion(adapters.EventConversion{
			Type: universal.EventSessionEnded,
			Data: universal.UniversalEventData{SessionEnded: &universal.SessionEndedData{
				Reason:       reason,
				TerminatedBy: terminatedBy,
				ExitCode:     exitCode,
			}},
		})
	})
}
