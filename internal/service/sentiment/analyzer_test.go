package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

func reply(label string, confidence float64, summary string) *completion.Response {
	return &completion.Response{
		Content:  fmt.Sprintf(`{"sentiment":%q,"confidence":%v,"emotions":[],"key_phrases":[],"summary":%q}`, label, confidence, summary),
		Provider: "stub",
	}
}

func newTestAnalyzer(client completion.Client, limit int) *Analyzer {
	return NewAnalyzer(client, Options{Model: "stub-model", ConcurrencyLimit: limit}, nil)
}

func TestAnalyzeBatchMixedInputs(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 5)

	outcomes, err := a.AnalyzeBatch(context.Background(), []string{"I love this!", "", "Terrible!"}, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	results := model.Results(outcomes)
	require.NotNil(t, results[0])
	assert.Equal(t, model.Positive, results[0].Sentiment)
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
	assert.Equal(t, model.Negative, results[2].Sentiment)

	assert.True(t, model.IsValidation(outcomes[1].Err))
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
	}
}

func TestAnalyzeBatchKeepsInputOrder(t *testing.T) {
	const n = 6
	client := completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		var idx int
		_, _ = fmt.Sscanf(req.InputText, "item %d", &idx)
		time.Sleep(time.Duration(n-idx) * 5 * time.Millisecond)
		return reply("neutral", 0.5, req.InputText), nil
	})
	a := newTestAnalyzer(client, n)

	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("item %d", i)
	}
	outcomes, err := a.AnalyzeBatch(context.Background(), texts, n)
	require.NoError(t, err)
	for i, o := range outcomes {
		require.True(t, o.OK())
		assert.Equal(t, texts[i], o.Result.Summary)
	}
}

func TestAnalyzeBatchRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	client := completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return reply("neutral", 0.5, "ok"), nil
	})
	a := newTestAnalyzer(client, 5)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "text"
	}
	_, err := a.AnalyzeBatch(context.Background(), texts, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestAnalyzeBatchIsolatesItemFailures(t *testing.T) {
	client := completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		if req.InputText == "bad" {
			return &completion.Response{Content: "not json", Provider: "stub"}, nil
		}
		return reply("positive", 0.9, "fine"), nil
	})
	a := newTestAnalyzer(client, 2)

	outcomes, err := a.AnalyzeBatch(context.Background(), []string{"good", "bad", "good"}, 0)
	require.NoError(t, err)
	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.True(t, model.IsAnalysis(outcomes[1].Err))
	assert.Equal(t, completion.KindMalformed, completion.KindOf(outcomes[1].Err))
	assert.True(t, outcomes[2].OK())
}

func TestAnalyzeBatchAbortsOnSystemicFailure(t *testing.T) {
	var calls atomic.Int32
	client := completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		calls.Add(1)
		return nil, &completion.Error{Kind: completion.KindAuth, Provider: "stub", Err: errors.New("invalid api key")}
	})
	a := newTestAnalyzer(client, 1)

	texts := []string{"a", "b", "c", "d", "e"}
	outcomes, err := a.AnalyzeBatch(context.Background(), texts, 1)
	require.Error(t, err)
	assert.True(t, model.IsSystemic(err))
	require.Len(t, outcomes, len(texts))
	for _, o := range outcomes {
		assert.False(t, o.OK())
		assert.Error(t, o.Err)
	}
	assert.Less(t, calls.Load(), int32(len(texts)))
}

func TestAnalyzeBatchReportsProgress(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 3)

	var mu sync.Mutex
	seen := map[int]bool{}
	lastDone := 0
	_, err := a.AnalyzeBatch(context.Background(), []string{"good", " ", "bad", "fine"}, 2,
		WithProgress(func(o model.Outcome, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 4, total)
			assert.Equal(t, lastDone+1, done)
			lastDone = done
			seen[o.Index] = true
		}))
	require.NoError(t, err)
	assert.Len(t, seen, 4)
}

func TestAnalyzeReturnsTypedErrors(t *testing.T) {
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return nil, &completion.Error{Kind: completion.KindUnavailable, Err: errors.New("503")}
	}), 1)

	_, err := a.Analyze(context.Background(), "   ")
	assert.True(t, model.IsValidation(err))

	_, err = a.Analyze(context.Background(), "hello")
	assert.True(t, model.IsSystemic(err))
	assert.True(t, model.IsAnalysis(err))
}

func TestStageRejectsOutOfRangeConfidence(t *testing.T) {
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return reply("positive", 1.4, "too sure"), nil
	}), 1)

	_, err := a.Analyze(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, model.IsAnalysis(err))
	assert.False(t, model.IsSystemic(err))
	assert.Equal(t, completion.KindMalformed, completion.KindOf(err))
}

func TestStageSendsSchemaAndPolicy(t *testing.T) {
	var got completion.Request
	client := completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		got = req
		return reply("neutral", 0.6, "calm"), nil
	})
	a := NewAnalyzer(client, Options{MaxRetries: 3, Timeout: time.Second, Temperature: completion.Float32(0.1)}, nil)

	_, err := a.Analyze(context.Background(), "  the   box  ")
	require.NoError(t, err)
	assert.Equal(t, "the box", got.InputText)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, time.Second, got.Timeout)
	assert.Equal(t, schemaName, got.SchemaName)
	assert.Contains(t, got.OutputSchema["properties"], "key_phrases")
	assert.True(t, strings.Contains(got.Instructions, "sentiment"))
}

func TestAnalyzeSafe(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 1)

	ok := a.AnalyzeSafe(context.Background(), "I love this!")
	require.True(t, ok.Success)
	require.NotNil(t, ok.Result)
	assert.Empty(t, ok.Error)
	assert.Equal(t, 3, ok.Metadata["word_count"])
	assert.Equal(t, "stub-model", ok.Metadata["model"])
	assert.NotEmpty(t, ok.Metadata["request_id"])

	bad := a.AnalyzeSafe(context.Background(), "")
	assert.False(t, bad.Success)
	assert.Nil(t, bad.Result)
	assert.Equal(t, model.ClassValidation, bad.ErrorClass)
	assert.Equal(t, "Validation error: text cannot be empty", bad.Error)
}

func TestAnalyzeSafeRecoversPanics(t *testing.T) {
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		panic("boom")
	}), 1)

	resp := a.AnalyzeSafe(context.Background(), "hello")
	assert.False(t, resp.Success)
	assert.Equal(t, model.ClassUnknown, resp.ErrorClass)
	assert.Equal(t, "Unexpected error: panic: boom", resp.Error)
}

func TestAnalyzeSafeReportsSystemicFailures(t *testing.T) {
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return nil, &completion.Error{Kind: completion.KindAuth, Provider: "stub", Err: errors.New("invalid api key")}
	}), 1)

	resp := a.AnalyzeSafe(context.Background(), "hello")
	assert.False(t, resp.Success)
	assert.Equal(t, model.ClassSystemic, resp.ErrorClass)
	assert.True(t, strings.HasPrefix(resp.Error, "Service unavailable: "))
}

func TestClassifyChecksSystemicBeforeAnalysis(t *testing.T) {
	inner := &model.AnalysisError{Err: errors.New("down")}
	class, msg := Classify(&model.SystemicError{Err: inner})
	assert.Equal(t, model.ClassSystemic, class)
	assert.Equal(t, "Service unavailable: down", msg)

	class, msg = Classify(inner)
	assert.Equal(t, model.ClassAnalysis, class)
	assert.Equal(t, "Analysis failed: down", msg)
}

func TestAnalyzeAsync(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 2)

	result, err := a.AnalyzeAsync(context.Background(), "Terrible!").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Negative, result.Sentiment)

	f := a.AnalyzeAsync(context.Background(), "")
	select {
	case <-f.Done():
	default:
		t.Fatal("validation failure should resolve immediately")
	}
	_, err = f.Await(context.Background())
	assert.True(t, model.IsValidation(err))
}

func TestAwaitReturnsOnCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		<-release
		return reply("neutral", 0.5, "late"), nil
	}), 1)

	f := a.AnalyzeAsync(context.Background(), "hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	result, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", result.Summary)
}

func TestAnalyzeBatchAsync(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 2)

	outcomes, err := a.AnalyzeBatchAsync(context.Background(), []string{"I love this!", "\t"}, 0).Await(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK())
	assert.True(t, model.IsValidation(outcomes[1].Err))
}

func TestAnalyzeBatchAsyncCancelKeepsFinishedItems(t *testing.T) {
	started := make(chan struct{})
	a := newTestAnalyzer(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		if req.InputText == "slow" {
			close(started)
			<-ctx.Done()
			return nil, completion.Classify("stub", ctx.Err())
		}
		return reply("neutral", 0.5, req.InputText), nil
	}), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := a.AnalyzeBatchAsync(ctx, []string{"fast", "slow", "after"}, 1)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("slow item never started")
	}
	cancel()

	outcomes, err := f.Await(context.Background())
	require.Error(t, err)
	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].OK())
	assert.Equal(t, "fast", outcomes[0].Result.Summary)
	assert.False(t, outcomes[1].OK())
	assert.Error(t, outcomes[1].Err)
	assert.False(t, outcomes[2].OK())
	assert.Error(t, outcomes[2].Err)
}

func TestPipelineRendersReport(t *testing.T) {
	a := newTestAnalyzer(completion.NewLexiconClient(""), 1)
	p, err := NewPipeline(context.Background(), a)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), "I love this!")
	require.NoError(t, err)
	assert.Equal(t, "positive", report.Sentiment)
	assert.True(t, report.IsPositive)

	_, err = p.Run(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
