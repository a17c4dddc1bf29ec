package installer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/universal"
)

func TestStaticInstallerReportsEveryKnownAgentInstalled(t *testing.T) {
	inst := NewStatic("/opt/agents")
	for _, agent := range universal.KnownAgents() {
		version, installed := inst.Version(context.Background(), agent)
		assert.True(t, installed)
		assert.NotEmpty(t, version)
	}
}

func TestStaticInstallerRejectsUnknownAgent(t *testing.T) {
	inst := NewStatic("")
	_, ok := inst.Version(context.Background(), universal.AgentID("not-a-real-agent"))
	assert.False(t, ok)

	_, err := inst.Install(context.Background(), universal.AgentID("not-a-real-agent"), InstallOptions{})
	require.Error(t, err)
}

func TestStaticInstallerDefaultsBinDir(t *testing.T) {
	inst := NewStatic("")
	result, err := inst.Install(context.Background(), universal.AgentMock, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/mock", result.Path)
}

func TestStaticInstallerSpawnEchoesAgent(t *testing.T) {
	inst := NewStatic("/opt/agents")
	result, err := inst.Spawn(context.Background(), universal.AgentCodex, SpawnOptions{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Status)
	assert.Contains(t, result.Stdout, "codex")
}
