package eino

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProviderLabels(t *testing.T) {
	ctx := WithWorkflowProvider(context.Background(), " answer ", "openai")
	assert.Equal(t, "answer", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))
}

func TestLabelsDefaultToUnknown(t *testing.T) {
	ctx := WithWorkflowProvider(context.Background(), "", "  ")
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))
	assert.Equal(t, "unknown", WorkflowFromContext(nil)) //nolint:staticcheck
}

func TestElapsedSecondsWithoutStart(t *testing.T) {
	assert.Zero(t, elapsedSeconds(context.Background()))
}
