package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/sentiscope/backend/internal/handler/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/handler/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/sentiscope/backend/internal/middleware"
	chatService "github.com/zhouzirui/sentiscope/backend/internal/service/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
	sentimentService "github.com/zhouzirui/sentiscope/backend/internal/service/sentiment"
	"github.com/zhouzirui/sentiscope/backend/pkg/utils"
)

// Deps 路由依赖的服务，Conversation 可为 nil
type Deps struct {
	Analyzer     *sentimentService.Analyzer
	Pipeline     *sentimentService.Pipeline
	Registry     *models.Registry
	Conversation *chatService.Conversation
	Log          *logging.Logger
}

// NewRouter 创建路由并挂载各服务
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": deps.Analyzer.Model()})
	})

	sentimentHandler := sentiment.New(deps.Analyzer, deps.Pipeline, deps.Registry, deps.Log)

	r.Route("/api", func(api chi.Router) {
		sentimentHandler.RegisterRoutes(api)

		// 会话接口依赖 Conversation，未配置时不注册
		if deps.Conversation != nil {
			chat.New(deps.Conversation, deps.Log).RegisterRoutes(api)
			chat.NewWebSocketHandler(deps.Conversation, deps.Log).RegisterWebSocketRoutes(api)
		}
	})

	return r
}
