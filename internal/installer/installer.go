// Package installer defines the narrow AgentInstaller collaborator contract
// (spec §6) and a static in-memory implementation sufficient to back the
// /agents and /agents/{agent}/install HTTP endpoints without pulling in
// real package-manager integration, which is explicitly out of scope
// (spec §1).
package installer

import (
	"context"
	"fmt"

	"github.com/kandev/agentd/internal/universal"
)

// SpawnOptions configures a one-off agent invocation for version/smoke
// checks.
type SpawnOptions struct {
	Prompt string
	Env    map[string]string
}

// SpawnResult is the outcome of a Spawn call.
type SpawnResult struct {
	Status int
	Stdout string
	Stderr string
}

// InstallOptions configures an Install call.
type InstallOptions struct {
	Reinstall bool
}

// InstallResult reports where the agent binary ended up.
type InstallResult struct {
	Path string
}

// Installer is the external collaborator contract every agent installer
// implementation must satisfy.
type Installer interface {
	Install(ctx context.Context, agent universal.AgentID, opts InstallOptions) (InstallResult, error)
	Version(ctx context.Context, agent universal.AgentID) (string, bool)
	Spawn(ctx context.Context, agent universal.AgentID, opts SpawnOptions) (SpawnResult, error)
}

// StaticInstaller reports every known agent as already installed at a
// fixed, conventional path — enough to exercise the HTTP surface's
// installer-backed routes in local development and tests.
type StaticInstaller struct {
	BinDir string
}

func NewStatic(binDir string) *StaticInstaller {
	if binDir == "" {
		binDir = "/usr/local/bin"
	}
	return &StaticInstaller{BinDir: binDir}
}

func (s *StaticInstaller) Install(_ context.Context, agent universal.AgentID, _ InstallOptions) (InstallResult, error) {
	if !agent.Valid() {
		return InstallResult{}, universal.UnsupportedAgent(string(agent))
	}
	return InstallResult{Path: fmt.Sprintf("%s/%s", s.BinDir, agent)}, nil
}

func (s *StaticInstaller) Version(_ context.Context, agent universal.AgentID) (string, bool) {
	if !agent.Valid() {
		return "", false
	}
	return "0.0.0-static", true
}

func (s *StaticInstaller) Spawn(_ context.Context, agent universal.AgentID, opts SpawnOptions) (SpawnResult, error) {
	if !agent.Valid() {
		return SpawnResult{}, universal.UnsupportedAgent(string(agent))
	}
	return SpawnResult{Status: 0, Stdout: fmt.Sprintf("%s: ok", agent), Stderr: ""}, nil
}
