package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
)

type fakeAnswerer struct {
	questions []string
}

func (f *fakeAnswerer) Answer(_ context.Context, q string) string {
	f.questions = append(f.questions, q)
	if q == "bad" {
		return "Error: retrieve stage failed: down"
	}
	return "answer to " + q
}

func TestRunChatStopsOnQuit(t *testing.T) {
	a := &fakeAnswerer{}
	var out bytes.Buffer
	in := strings.NewReader("  first question \n\nbad\nQUIT\nnever asked\n")

	require.NoError(t, runChat(context.Background(), in, &out, a))
	assert.Equal(t, []string{"first question", "bad"}, a.questions)
	assert.Contains(t, out.String(), "answer to first question")
	assert.Contains(t, out.String(), "Error: retrieve stage failed: down")
	assert.NotContains(t, out.String(), "never asked")
}

func TestRunChatEndsAtEOF(t *testing.T) {
	a := &fakeAnswerer{}
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), strings.NewReader("q1"), &out, a))
	assert.Equal(t, []string{"q1"}, a.questions)
}

func TestRunChatCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &fakeAnswerer{}
	err := runChat(ctx, strings.NewReader("q1\n"), &bytes.Buffer{}, a)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.questions)
}

func TestPrintExamples(t *testing.T) {
	var out bytes.Buffer
	printExamples(&out, query.Examples())
	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Simple Direct:\n  - "))
	for _, c := range query.Examples() {
		assert.Contains(t, text, c.Name+":")
	}
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &retrieval.IndexReport{Files: 2, Chunks: 17, Failed: []string{"x.txt"}})
	assert.Equal(t, "indexed 2 files, 17 chunks\nfailed: x.txt\n", out.String())
}

func TestResetRequiresConfirmation(t *testing.T) {
	cmd := newResetCmd(&options{configDir: "does-not-exist"})
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SilenceUsage = true

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, errResetNotConfirmed)
}
