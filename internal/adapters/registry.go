package adapters

import (
	"github.com/kandev/agentd/internal/adapters/amp"
	"github.com/kandev/agentd/internal/adapters/claude"
	"github.com/kandev/agentd/internal/adapters/codebuff"
	"github.com/kandev/agentd/internal/adapters/codex"
	"github.com/kandev/agentd/internal/adapters/mock"
	"github.com/kandev/agentd/internal/adapters/opencode"
	"github.com/kandev/agentd/internal/universal"
)

// Registry resolves an Adapter by AgentID. Closed set, switch-based —
// there is no open-ended plugin mechanism, matching the source's "closed
// set of adapters behind a single capability" design note (spec §9).
type Registry struct {
	byAgent map[universal.AgentID]Adapter
}

// NewRegistry builds a Registry with every known agent wired in.
func NewRegistry() *Registry {
	return &Registry{byAgent: map[universal.AgentID]Adapter{
		universal.AgentClaude:   claude.New(),
		universal.AgentCodex:    codex.New(),
		universal.AgentOpencode: opencode.New(),
		universal.AgentAmp:      amp.New(),
		universal.AgentCodebuff: codebuff.New(),
		universal.AgentMock:     mock.New(),
	}}
}

// Get resolves the adapter for agent; the boolean is false if agent is not
// one of the known ids.
func (r *Registry) Get(agent universal.AgentID) (Adapter, bool) {
	a, ok := r.byAgent[agent]
	return a, ok
}
