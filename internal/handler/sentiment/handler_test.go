package sentiment

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
	sentimentService "github.com/zhouzirui/sentiscope/backend/internal/service/sentiment"
)

func setupRouter(t *testing.T, client completion.Client) *chi.Mux {
	t.Helper()
	analyzer := sentimentService.NewAnalyzer(client, sentimentService.Options{Model: "lexicon", ConcurrencyLimit: 2}, logging.Nop())
	pipeline, err := sentimentService.NewPipeline(context.Background(), analyzer)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(analyzer, pipeline, models.DefaultRegistry(), logging.Nop()).RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func authFailure() completion.Client {
	return completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return nil, &completion.Error{Kind: completion.KindAuth, Provider: "stub", Err: errors.New("invalid api key")}
	})
}

func TestAnalyzeSuccess(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze", map[string]string{"text": "I love this!"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body model.AnalysisResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Result)
	assert.Equal(t, model.Positive, body.Result.Sentiment)
	assert.Equal(t, "lexicon", body.Metadata["model"])
}

func TestAnalyzeEmptyTextIsBadRequest(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze", map[string]string{"text": "  "})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body model.AnalysisResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, model.ClassValidation, body.ErrorClass)
}

func TestAnalyzeUnknownFieldRejected(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze", map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAnalyzeSystemicFailureIsUnavailable(t *testing.T) {
	r := setupRouter(t, authFailure())
	resp := post(t, r, "/analyze", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var body model.AnalysisResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, model.ClassSystemic, body.ErrorClass)
}

func TestAnalyzeMalformedReplyIsBadGateway(t *testing.T) {
	r := setupRouter(t, completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return &completion.Response{Content: "not json", Model: "stub"}, nil
	}))
	resp := post(t, r, "/analyze", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestReport(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze/report", map[string]string{"text": "This is terrible and awful."})
	require.Equal(t, http.StatusOK, resp.Code)

	var report map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	assert.Equal(t, "negative", report["sentiment"])
	assert.Equal(t, true, report["is_negative"])

	resp = post(t, r, "/analyze/report", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = post(t, setupRouter(t, authFailure()), "/analyze/report", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze/batch", map[string]any{"texts": []string{"I love this!", "", "Terrible!"}, "concurrency": 2})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Outcomes  []struct {
			Index   int           `json:"index"`
			Success bool          `json:"success"`
			Result  *model.Result `json:"result"`
			Error   string        `json:"error"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Succeeded)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Outcomes, 3)
	assert.True(t, body.Outcomes[0].Success)
	assert.False(t, body.Outcomes[1].Success)
	assert.NotEmpty(t, body.Outcomes[1].Error)
	assert.Equal(t, model.Negative, body.Outcomes[2].Result.Sentiment)
}

func TestBatchValidation(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	assert.Equal(t, http.StatusBadRequest, post(t, r, "/analyze/batch", map[string]any{"texts": []string{}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, r, "/analyze/batch", map[string]any{"texts": []string{"a"}, "concurrency": -1}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, r, "/analyze/batch", map[string]any{"texts": make([]string, MaxBatchSize+1)}).Code)
}

func TestBatchSystemicAbort(t *testing.T) {
	r := setupRouter(t, authFailure())
	resp := post(t, r, "/analyze/batch", map[string]any{"texts": []string{"a", "b", "c"}, "concurrency": 1})
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	assert.Len(t, body["outcomes"], 3)
}

func TestBatchStream(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	resp := post(t, r, "/analyze/batch/stream", map[string]any{"texts": []string{"great", "", "awful"}})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(resp.Body.String()))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{"item", "item", "item", "done"}, events)
}

func TestListModels(t *testing.T) {
	r := setupRouter(t, completion.NewLexiconClient(""))
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var views []struct {
		Key     string `json:"key"`
		Default bool   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &views))
	require.NotEmpty(t, views)
	defaults := 0
	for _, v := range views {
		if v.Default {
			defaults++
			assert.Equal(t, "lexicon", v.Key)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(&model.ValidationError{Err: errors.New("empty")}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&model.AnalysisError{Err: errors.New("bad json")}))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(&model.SystemicError{Err: errors.New("auth")}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
