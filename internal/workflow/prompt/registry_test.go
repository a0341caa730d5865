package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAnswerPrompt(t *testing.T) {
	r := NewRegistry()
	system, user, err := r.Render(context.Background(), PromptAnswerV1, map[string]any{
		"question":             "What was NVIDIA's revenue in 2023?",
		"context":              "Query: x\nQuery Type: simple_direct\n",
		"requires_calculation": "false",
		"query_type":           "simple_direct",
	})
	require.NoError(t, err)

	assert.Contains(t, system, "financial analyst assistant")
	assert.Contains(t, system, "6. For comparative queries")
	assert.Contains(t, user, "Question: What was NVIDIA's revenue in 2023?")
	assert.Contains(t, user, "- Query requires calculation: false")
	assert.Contains(t, user, "- Query type: simple_direct")
}

func TestChatTemplateCached(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptAnswerV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptAnswerV1)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestUnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate("nope")
	assert.Error(t, err)
}
