package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/signbridge/internal/metrics"
	"github.com/hitoshi/signbridge/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合 /metrics を公開しない

	// セッション・プロフィール
	Sessions      SessionServiceInterface
	Profiles      ProfileServiceInterface
	SessionConfig SessionHandlerConfig

	// 文書送信
	Submissions   SubmissionServiceInterface
	UploadMaxSize int64

	// 契約一覧・契約書生成
	Contracts ContractServiceInterface
	Drafting  DraftingServiceInterface

	// ヘルスチェック
	HealthChecks map[string]Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → SecurityHeaders → Status(metrics) → Logging → CORS
//	  /api: [Session | OptionalSession] → RateLimit(General) → [RateLimit(AI)]
//
// /test, /health, /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()

	// Cloud Runなど信頼できるプロキシの背後で動作するため、X-Forwarded-Forを接続元として扱う
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(metrics.NewStatusMiddleware(mc))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.Sessions, deps.Profiles, deps.SessionConfig)
	documentHandler := NewDocumentHandler(deps.Submissions, deps.UploadMaxSize)
	contractHandler := NewContractHandler(deps.Contracts, deps.Drafting)
	healthHandler := NewHealthHandler(deps.HealthChecks)

	r.Get("/test", Welcome)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// --- セッション不要のルート ---
		// セッションがあればユーザー単位、なければIP単位でレート制限する
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOptionalSessionMiddleware(deps.Sessions))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/redirect_to_ai", sessionHandler.RedirectToAI)
			r.Post("/redirect_to_ai", sessionHandler.RedirectToAI)

			r.Post("/contracts/{user_id}", contractHandler.ListContracts)
			r.Post("/getContracts", contractHandler.RedirectLink)

			// 契約書生成は専用のレート制限を追加
			r.With(deps.RateLimiter.AIMiddleware()).Post("/prompGenerate", contractHandler.Generate)
		})

		// --- セッションが必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Sessions))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/navlinks", sessionHandler.NavLinks)
			r.Post("/logout", sessionHandler.Logout)

			r.Post("/send_to_wesignature", documentHandler.SendToWeSignature)
			r.Post("/send_to_wefile", documentHandler.SendToWeFile)
			r.Post("/send_to_savetemplate", documentHandler.SendToSaveTemplate)
		})
	})

	return r
}
