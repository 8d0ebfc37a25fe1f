package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

func offline(t *testing.T) {
	t.Helper()
	t.Setenv("SENTIMENT_MODEL", "lexicon")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("MODELS_FILE", "")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	offline(t)
	out, err := runCLI(t, "", "analyze", "I", "love", "this!")
	require.NoError(t, err)
	assert.Contains(t, out, "SENTIMENT: POSITIVE")
}

func TestAnalyzeReadsStdinAsJSON(t *testing.T) {
	offline(t)
	out, err := runCLI(t, "This is terrible.\n", "analyze", "--json")
	require.NoError(t, err)

	var resp model.AnalysisResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, model.Negative, resp.Result.Sentiment)
}

func TestAnalyzeEmptyTextFails(t *testing.T) {
	offline(t)
	_, err := runCLI(t, "", "analyze", "   ")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestBatchCommandKeepsOrder(t *testing.T) {
	offline(t)
	path := filepath.Join(t.TempDir(), "texts.txt")
	require.NoError(t, os.WriteFile(path, []byte("I love this!\n\nTerrible!\n"), 0o600))

	out, err := runCLI(t, "", "batch", "-q", "-c", "2", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "[0] positive")
	assert.Contains(t, lines[1], "[1] error")
	assert.Contains(t, lines[2], "[2] negative")
	assert.Equal(t, "2/3 succeeded", lines[3])
}

func TestBatchFromStdinAsJSON(t *testing.T) {
	offline(t)
	out, err := runCLI(t, "great\nawful\n", "batch", "--json", "-q", "-")
	require.NoError(t, err)

	var outcomes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &outcomes))
	require.Len(t, outcomes, 2)
	assert.EqualValues(t, 0, outcomes[0]["index"])
	assert.EqualValues(t, 1, outcomes[1]["index"])
}

func TestChatREPL(t *testing.T) {
	offline(t)
	out, err := runCLI(t, "hello, I am happy\n/history\n/nope\n/quit\nnever read\n", "chat", "--session", "t")
	require.NoError(t, err)

	assert.Contains(t, out, `session "t"`)
	assert.Contains(t, out, "human: hello, I am happy")
	assert.Contains(t, out, "Error: unknown command")
	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "never read")
}

func TestModelsCommand(t *testing.T) {
	offline(t)
	out, err := runCLI(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "* lexicon")
	assert.Contains(t, out, "gpt-mini")
}

func TestUnknownModelFlag(t *testing.T) {
	offline(t)
	_, err := runCLI(t, "", "--model", "nope", "analyze", "hi")
	assert.ErrorContains(t, err, "unknown model")
}
