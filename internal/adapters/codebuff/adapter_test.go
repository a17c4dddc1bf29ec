package codebuff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/universal"
)

func TestBasicSessionLifecycle(t *testing.T) {
	a := New()
	ctx := context.Background()

	start := a.Translate(ctx, []byte(`{"type":"start","agentId":"a","model":"m","messageHistoryLength":0}`))
	require.Len(t, start, 1)
	assert.Equal(t, universal.EventSessionStarted, start[0].Type)
	assert.Equal(t, "codebuff", start[0].Data.SessionStarted.Metadata["agent"])
	assert.Equal(t, "m", start[0].Data.SessionStarted.Metadata["model"])

	text := a.Translate(ctx, []byte(`{"type":"text","text":"hi","agentId":"a"}`))
	require.Len(t, text, 1)
	assert.Equal(t, universal.EventItemDelta, text[0].Type)
	assert.Equal(t, "hi", text[0].Data.ItemDelta.Delta)
	assert.Equal(t, "a", text[0].Data.ItemDelta.NativeItemID)

	finish := a.Translate(ctx, []byte(`{"type":"finish"}`))
	require.Len(t, finish, 1)
	assert.Equal(t, universal.EventSessionEnded, finish[0].Type)
	assert.Equal(t, universal.SessionEndCompleted, finish[0].Data.SessionEnded.Reason)
}

func TestAskUserQuestionRoundTrip(t *testing.T) {
	a := New()
	ctx := context.Background()

	call := a.Translate(ctx, []byte(`{
		"type":"tool_call",
		"toolCallId":"t1",
		"toolName":"ask_user",
		"input":{"questions":[{"question":"Q?","options":[{"label":"A"},{"label":"B"}]}]}
	}`))
	require.Len(t, call, 3)
	assert.Equal(t, universal.EventQuestionRequested, call[0].Type)
	assert.Equal(t, "Q?", call[0].Data.Question.Prompt)
	assert.Equal(t, []string{"A", "B"}, call[0].Data.Question.Options)
	assert.Equal(t, universal.EventItemStarted, call[1].Type)
	assert.True(t, call[1].Synthetic)
	assert.Equal(t, universal.EventItemCompleted, call[2].Type)

	result := a.Translate(ctx, []byte(`{
		"type":"tool_result",
		"toolCallId":"t1",
		"toolName":"ask_user",
		"output":[{"value":"A"}]
	}`))
	require.Len(t, result, 3)
	assert.Equal(t, universal.EventQuestionResolved, result[0].Type)
	assert.Equal(t, "A", result[0].Data.Question.Response)
	assert.Equal(t, universal.EventItemStarted, result[1].Type)
	assert.Equal(t, universal.EventItemCompleted, result[2].Type)
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	a := New()
	out := a.Translate(context.Background(), []byte(`{"type":"some_future_event"}`))
	assert.Empty(t, out)
}

func TestMalformedJSONYieldsUnparsed(t *testing.T) {
	a := New()
	out := a.Translate(context.Background(), []byte(`not json`))
	require.Len(t, out, 1)
	assert.Equal(t, universal.EventAgentUnparsed, out[0].Type)
}

func TestSubagentPreviewTruncation(t *testing.T) {
	a := New()
	longPrompt := ""
	for i := 0; i < 80; i++ {
		longPrompt += "x"
	}
	out := a.Translate(context.Background(), []byte(`{
		"type":"subagent_start",
		"agentId":"sub1",
		"agentType":"reviewer",
		"prompt":"`+longPrompt+`"
	}`))
	require.Len(t, out, 1)
	detail := *out[0].Data.Item.Item.Content[0].Detail
	assert.Contains(t, detail, "...")
}
