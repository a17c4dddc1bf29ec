package eventrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/session"
	"github.com/kandev/agentd/internal/universal"
)

type noopSender struct{}

func (noopSender) Send(_ context.Context, _ universal.AgentID, _ []byte) error { return nil }

type fakeNativeLookup struct {
	mapping map[string]string
}

func (f fakeNativeLookup) ClientIDForNative(nativeID string) (string, bool) {
	id, ok := f.mapping[nativeID]
	return id, ok
}

func newManagerWithSession(t *testing.T, id string, agent universal.AgentID) *session.Manager {
	t.Helper()
	m := session.NewManager(adapters.NewRegistry(), noopSender{}, nil)
	_, err := m.Create(id, agent, session.CreateOptions{PermissionMode: universal.PermissionModeDefault})
	require.NoError(t, err)
	return m
}

func TestRouteDeliversToMappedSession(t *testing.T) {
	m := newManagerWithSession(t, "client-1", universal.AgentMock)
	r := New(m, nil)
	native := fakeNativeLookup{mapping: map[string]string{"native-1": "client-1"}}

	r.Route(native, universal.AgentMock, "native-1", []adapters.EventConversion{
		{Type: universal.EventAgentUnparsed, Data: universal.UniversalEventData{
			Unparsed: &universal.UnparsedData{RawBytes: "garbage"},
		}},
	})

	s, err := m.Get("client-1")
	require.NoError(t, err)
	events, _ := s.ReadEvents(0, 0)
	found := false
	for _, ev := range events {
		if ev.Type == universal.EventAgentUnparsed {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRouteDropsUnregisteredNativeSession(t *testing.T) {
	m := newManagerWithSession(t, "client-1", universal.AgentMock)
	r := New(m, nil)
	native := fakeNativeLookup{mapping: map[string]string{}}

	r.Route(native, universal.AgentMock, "unknown-native", []adapters.EventConversion{
		{Type: universal.EventAgentUnparsed, Data: universal.UniversalEventData{
			Unparsed: &universal.UnparsedData{RawBytes: "garbage"},
		}},
	})

	s, err := m.Get("client-1")
	require.NoError(t, err)
	events, _ := s.ReadEvents(0, 0)
	for _, ev := range events {
		assert.NotEqual(t, universal.EventAgentUnparsed, ev.Type)
	}
}

func TestRouteIgnoresEmptyConversionBatch(t *testing.T) {
	m := newManagerWithSession(t, "client-1", universal.AgentMock)
	r := New(m, nil)
	native := fakeNativeLookup{mapping: map[string]string{"native-1": "client-1"}}
	r.Route(native, universal.AgentMock, "native-1", nil)
}
