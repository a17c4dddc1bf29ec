package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/kandev/agentd/internal/supervisor"
	"github.com/kandev/agentd/internal/universal"
)

// binaryNames maps each stdio-backed agent to the conventional binary name
// on PATH, matching the naming the teacher's mock-agent/agentctl binaries
// use for their own per-protocol children.
var binaryNames = map[universal.AgentID]string{
	universal.AgentClaude:   "claude-agent",
	universal.AgentCodex:    "codex-agent",
	universal.AgentAmp:      "amp-agent",
	universal.AgentCodebuff: "codebuff-agent",
	universal.AgentMock:     "mock-agent",
}

// opencodeBaseURL is the local OpenCode server's conventional address.
const opencodeBaseURL = "http://127.0.0.1:4096"

// spawnAgent implements supervisor.StartFunc: it either launches a stdio
// child (Claude/Codex/Amp/Codebuff/Mock) or probes OpenCode's local HTTP
// endpoint, matching the native transport summary in spec §6.
func spawnAgent(ctx context.Context, agent universal.AgentID) (*supervisor.Transport, error) {
	if agent == universal.AgentOpencode {
		return probeOpencode(ctx)
	}

	binary, ok := binaryNames[agent]
	if !ok {
		return nil, fmt.Errorf("no launch recipe for agent %q", agent)
	}

	cmd := exec.CommandContext(ctx, binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin for %s: %w", binary, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout for %s: %w", binary, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr for %s: %w", binary, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}

	return &supervisor.Transport{
		Kind:   supervisor.TransportStdioChild,
		Cmd:    cmd,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

func probeOpencode(ctx context.Context) (*supervisor.Transport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opencodeBaseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing opencode endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opencode endpoint unhealthy: status %d", resp.StatusCode)
	}
	return &supervisor.Transport{Kind: supervisor.TransportHTTPEndpoint, BaseURL: opencodeBaseURL}, nil
}

// scanLines reads newline-delimited JSON from r, invoking onLine for each
// non-empty line. Used for the stdout-parser task of every stdio-backed
// agent (spec §5: "one stdout-parser task fans out via the Event Router").
func scanLines(r io.Reader, onLine func(line []byte)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		onLine(cp)
	}
}
