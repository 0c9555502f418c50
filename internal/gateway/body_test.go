package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sap-samples/ai-core-gateway/internal/family"
)

func TestPrepareBody_GPT5RenamesMaxTokensAndDropsTemperature(t *testing.T) {
	in := `{"model":"gpt-5-mini","max_tokens":512,"temperature":0.7,"messages":[]}`
	out := prepareBody(family.OpenAI, "gpt-5-mini", false, []byte(in))

	assert.JSONEq(t, `{"model":"gpt-5-mini","max_completion_tokens":512,"messages":[]}`, string(out))
}

func TestPrepareBody_NonGPT5LeavesFieldsAlone(t *testing.T) {
	in := `{"model":"gpt-4","max_tokens":512,"temperature":0.7}`
	out := prepareBody(family.OpenAI, "gpt-4", false, []byte(in))

	assert.JSONEq(t, in, string(out))
}

func TestPrepareBody_ClaudeDropsTemperatureWhenThinkingPresent(t *testing.T) {
	in := `{"model":"claude-sonnet-4-5","thinking":{"type":"enabled","budget_tokens":1024},"temperature":0.5,"messages":[]}`
	out := prepareBody(family.Claude, "claude-sonnet-4-5", false, []byte(in))

	assert.JSONEq(t, `{"model":"claude-sonnet-4-5","thinking":{"type":"enabled","budget_tokens":1024},"messages":[]}`, string(out))
}

func TestPrepareBody_ClaudeKeepsTemperatureWithoutThinking(t *testing.T) {
	in := `{"model":"claude-sonnet-4-5","temperature":0.5,"messages":[]}`
	out := prepareBody(family.Claude, "claude-sonnet-4-5", false, []byte(in))

	assert.JSONEq(t, in, string(out))
}
