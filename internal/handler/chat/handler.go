package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
	chatService "github.com/zhouzirui/sentiscope/backend/internal/service/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
	"github.com/zhouzirui/sentiscope/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	conv *chatService.Conversation
	log  *logging.Logger
}

// New 创建会话处理器
func New(conv *chatService.Conversation, log *logging.Logger) *Handler {
	return &Handler{conv: conv, log: log.Sub("chat-http")}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Route("/sessions/{key}", func(r chi.Router) {
		r.Get("/history", h.handleHistory)
		r.Post("/messages", h.handleSendMessage)
		r.Put("/model", h.handleSetModel)
		r.Get("/usage", h.handleUsage)
		r.Delete("/", h.handleClear)
	})
}

// statusFor 会话错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrKeyRequired),
		errors.Is(err, models.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}

	var cerr *completion.Error
	if errors.As(err, &cerr) {
		if cerr.Kind.Systemic() {
			return http.StatusServiceUnavailable
		}
		if cerr.Kind == completion.KindTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := h.conv.Store().List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": keys})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	records, err := h.conv.Store().Export(r.Context(), key)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, struct {
		Session  string        `json:"session"`
		Model    string        `json:"model"`
		Messages []chat.Record `json:"messages"`
	}{Session: key, Model: h.conv.ModelFor(key), Messages: records})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := chi.URLParam(r, "key")
	reply, err := h.conv.Send(r.Context(), key, payload.Text)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model string `json:"model"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	spec, err := h.conv.SetModel(r.Context(), chi.URLParam(r, "key"), payload.Model)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, spec)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.conv.Usage(chi.URLParam(r, "key")))
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.conv.Store().Clear(r.Context(), chi.URLParam(r, "key")); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
