package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/universal"
)

func noopStart(_ context.Context, _ universal.AgentID) (*Transport, error) {
	return &Transport{Kind: TransportHTTPEndpoint, BaseURL: "http://127.0.0.1:0"}, nil
}

func TestSupervisorExitScenario(t *testing.T) {
	sup := New(noopStart, nil)
	ctx := context.Background()

	require.NoError(t, sup.EnsureStarted(ctx, universal.AgentCodex))
	server, ok := sup.Server(universal.AgentCodex)
	require.True(t, ok)

	require.NoError(t, server.RegisterSession("s", "t"))

	var endedSessions []string
	var endedCodes []*int
	sup.HandleProcessExit(universal.AgentCodex, server.Generation(), intPtr(7), func(clientSessionID string, exitCode *int) {
		endedSessions = append(endedSessions, clientSessionID)
		endedCodes = append(endedCodes, exitCode)
	})

	assert.Equal(t, StatusError, server.Status())
	assert.Contains(t, server.LastError(), "exited")
	assert.Equal(t, []string{"s"}, endedSessions)
	require.Len(t, endedCodes, 1)
	assert.Equal(t, 7, *endedCodes[0])

	select {
	case agent := <-sup.RestartNotifications():
		assert.Equal(t, universal.AgentCodex, agent)
	default:
		t.Fatal("expected restart notification")
	}
}

func TestSupervisorIgnoresStaleGeneration(t *testing.T) {
	sup := New(noopStart, nil)
	ctx := context.Background()
	require.NoError(t, sup.EnsureStarted(ctx, universal.AgentCodex))
	server, _ := sup.Server(universal.AgentCodex)

	sup.HandleProcessExit(universal.AgentCodex, server.Generation()+999, nil, nil)
	assert.Equal(t, StatusReady, server.Status())
}

func TestRegisterSessionDuplicateFails(t *testing.T) {
	sup := New(noopStart, nil)
	server, _ := sup.Server(universal.AgentMock)
	require.NoError(t, server.RegisterSession("a", "na"))
	err := server.RegisterSession("a", "nb")
	assert.ErrorIs(t, err, ErrSessionAlreadyRegistered)
}

func intPtr(v int) *int { return &v }
