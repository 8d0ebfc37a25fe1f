package sentiment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
	sentimentService "github.com/zhouzirui/sentiscope/backend/internal/service/sentiment"
	"github.com/zhouzirui/sentiscope/backend/pkg/utils"
)

// MaxBatchSize 单次批量请求的文本上限
const MaxBatchSize = 500

// Handler 情感分析的HTTP处理器
type Handler struct {
	analyzer *sentimentService.Analyzer
	pipeline *sentimentService.Pipeline
	registry *models.Registry
	log      *logging.Logger
}

// New 创建情感分析处理器，pipeline 和 registry 可为 nil
func New(analyzer *sentimentService.Analyzer, pipeline *sentimentService.Pipeline, registry *models.Registry, log *logging.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		pipeline: pipeline,
		registry: registry,
		log:      log.Sub("sentiment-http"),
	}
}

// RegisterRoutes 注册情感分析路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.analyze)
	r.Post("/analyze/report", h.report)
	r.Post("/analyze/batch", h.batch)
	r.Post("/analyze/batch/stream", h.batchStream)
	r.Get("/models", h.listModels)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts       []string `json:"texts"`
	Concurrency int      `json:"concurrency,omitempty"`
}

type batchResponse struct {
	Model     string          `json:"model"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  []model.Outcome `json:"outcomes"`
	Error     string          `json:"error,omitempty"`
}

func newBatchResponse(modelKey string, outcomes []model.Outcome) batchResponse {
	resp := batchResponse{Model: modelKey, Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

// StatusFor 分析错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case model.IsValidation(err):
		return http.StatusBadRequest
	case model.IsSystemic(err):
		return http.StatusServiceUnavailable
	case model.IsAnalysis(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := h.analyzer.AnalyzeSafe(r.Context(), req.Text)
	status := http.StatusOK
	if !resp.Success {
		switch resp.ErrorClass {
		case model.ClassValidation:
			status = http.StatusBadRequest
		case model.ClassSystemic:
			status = http.StatusServiceUnavailable
		case model.ClassAnalysis:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}
	utils.RespondJSON(w, status, resp)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "report pipeline unavailable")
		return
	}
	var req analyzeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.pipeline.Run(r.Context(), req.Text)
	if err != nil {
		h.log.Warn().Err(err).Msg("report failed")
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) (batchRequest, bool) {
	var req batchRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if len(req.Texts) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "texts cannot be empty")
		return req, false
	}
	if len(req.Texts) > MaxBatchSize {
		utils.RespondError(w, http.StatusBadRequest, "too many texts in one batch")
		return req, false
	}
	if req.Concurrency < 0 {
		utils.RespondError(w, http.StatusBadRequest, "concurrency must be positive")
		return req, false
	}
	return req, true
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	outcomes, err := h.analyzer.AnalyzeBatch(r.Context(), req.Texts, req.Concurrency)
	resp := newBatchResponse(h.analyzer.Model(), outcomes)
	if err != nil {
		h.log.Warn().Err(err).Int("total", len(req.Texts)).Msg("batch aborted")
		resp.Error = err.Error()
		utils.RespondJSON(w, http.StatusBadGateway, resp)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type itemEvent struct {
	Outcome model.Outcome `json:"outcome"`
	Done    int           `json:"done"`
	Total   int           `json:"total"`
}

func (h *Handler) batchStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	req, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	progress := func(outcome model.Outcome, done, total int) {
		if err := utils.SendSSEEvent(w, flusher, "item", itemEvent{Outcome: outcome, Done: done, Total: total}); err != nil {
			h.log.Debug().Err(err).Msg("client went away")
		}
	}

	outcomes, err := h.analyzer.AnalyzeBatch(r.Context(), req.Texts, req.Concurrency, sentimentService.WithProgress(progress))
	resp := newBatchResponse(h.analyzer.Model(), outcomes)
	if err != nil {
		resp.Error = err.Error()
	}
	if err := utils.SendSSEEvent(w, flusher, "done", resp); err != nil {
		h.log.Debug().Err(err).Msg("failed to send done event")
	}
}

type modelView struct {
	models.Spec
	Default bool `json:"default"`
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		utils.RespondJSON(w, http.StatusOK, []modelView{})
		return
	}
	specs := h.registry.Specs()
	views := make([]modelView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, modelView{Spec: spec, Default: spec.Key == h.analyzer.Model()})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
