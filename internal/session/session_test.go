package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/adapters"
	mockadapter "github.com/kandev/agentd/internal/adapters/mock"
	"github.com/kandev/agentd/internal/universal"
)

type noopSender struct{}

func (noopSender) Send(ctx context.Context, agent universal.AgentID, payload []byte) error {
	return nil
}

func newTestManager() *Manager {
	registry := adapters.NewRegistry()
	return NewManager(registry, noopSender{}, nil)
}

func TestAcceptEditsNormalizedForNonClaude(t *testing.T) {
	m := newTestManager()
	s, err := m.Create("x", universal.AgentMock, CreateOptions{PermissionMode: universal.PermissionModeAcceptEdits})
	require.NoError(t, err)
	assert.Equal(t, universal.PermissionModeDefault, s.PermissionMode())
}

func TestAcceptEditsPreservedForClaude(t *testing.T) {
	m := newTestManager()
	s, err := m.Create("x", universal.AgentClaude, CreateOptions{PermissionMode: universal.PermissionModeAcceptEdits})
	require.NoError(t, err)
	assert.Equal(t, universal.PermissionModeAcceptEdits, s.PermissionMode())
}

func TestCreateDuplicateFails(t *testing.T) {
	m := newTestManager()
	_, err := m.Create("x", universal.AgentMock, CreateOptions{})
	require.NoError(t, err)
	_, err = m.Create("x", universal.AgentMock, CreateOptions{})
	require.Error(t, err)
	appErr, ok := err.(*universal.AppError)
	require.True(t, ok)
	assert.Equal(t, universal.ErrSessionExists, appErr.Code)
}

func TestUnsupportedAgentFails(t *testing.T) {
	m := newTestManager()
	_, err := m.Create("x", universal.AgentID("nonsense"), CreateOptions{})
	require.Error(t, err)
	appErr, ok := err.(*universal.AppError)
	require.True(t, ok)
	assert.Equal(t, universal.ErrUnsupportedAgent, appErr.Code)
}

func TestEventSequenceDenseAndMonotonic(t *testing.T) {
	m := newTestManager()
	s, err := m.Create("x", universal.AgentMock, CreateOptions{})
	require.NoError(t, err)

	adapter := mockadapter.New()
	for _, line := range mockadapter.Script("mock-1", "hello", "world") {
		conversions := adapter.Translate(context.Background(), line)
		s.AppendConversions(conversions)
	}

	events, hasMore := s.ReadEvents(0, 200)
	assert.False(t, hasMore)
	require.True(t, len(events) >= 4) // started, 2 deltas, ended
	var last uint64
	for _, ev := range events {
		assert.Equal(t, last+1, ev.Sequence)
		last = ev.Sequence
	}
	assert.True(t, s.Ended())
}

func TestPostMessageFailsAfterSessionEnded(t *testing.T) {
	m := newTestManager()
	s, err := m.Create("x", universal.AgentMock, CreateOptions{})
	require.NoError(t, err)
	s.MarkEnded(universal.SessionEndCancelled, universal.TerminatedByHost, nil)

	err = s.PostMessage(context.Background(), "hi")
	require.Error(t, err)
	appErr, ok := err.(*universal.AppError)
	require.True(t, ok)
	assert.Equal(t, universal.ErrSessionEnded, appErr.Code)
}

func TestConcurrentSessionsIndependentSequences(t *testing.T) {
	m := newTestManager()
	sa, err := m.Create("a", universal.AgentMock, CreateOptions{})
	require.NoError(t, err)
	sb, err := m.Create("b", universal.AgentMock, CreateOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = sa.PostMessage(context.Background(), "hello from a")
	}()
	go func() {
		defer wg.Done()
		_ = sb.PostMessage(context.Background(), "hello from b")
	}()
	wg.Wait()

	eventsA, _ := sa.ReadEvents(0, 200)
	eventsB, _ := sb.ReadEvents(0, 200)
	for _, ev := range eventsA {
		assert.Equal(t, "a", ev.SessionID)
	}
	for _, ev := range eventsB {
		assert.Equal(t, "b", ev.SessionID)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	m := newTestManager()
	s, err := m.Create("x", universal.AgentCodebuff, CreateOptions{})
	require.NoError(t, err)

	s.AppendConversions([]adapters.EventConversion{{
		Type: universal.EventQuestionRequested,
		Data: universal.UniversalEventData{Question: &universal.QuestionEventData{
			QuestionID: "q1", Prompt: "Pick one", Status: universal.QuestionRequestedState,
		}},
	}})

	err = s.ReplyQuestion(context.Background(), "q1", [][]string{{"A"}})
	require.NoError(t, err)

	err = s.ReplyQuestion(context.Background(), "does-not-exist", [][]string{{"A"}})
	require.Error(t, err)
	appErr, ok := err.(*universal.AppError)
	require.True(t, ok)
	assert.Equal(t, universal.ErrQuestionNotFound, appErr.Code)
}
