package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/signbridge/internal/config"
	"github.com/hitoshi/signbridge/internal/contract"
	"github.com/hitoshi/signbridge/internal/database"
	"github.com/hitoshi/signbridge/internal/drafting"
	"github.com/hitoshi/signbridge/internal/extract"
	"github.com/hitoshi/signbridge/internal/filestore"
	"github.com/hitoshi/signbridge/internal/gemini"
	"github.com/hitoshi/signbridge/internal/handler"
	"github.com/hitoshi/signbridge/internal/logger"
	"github.com/hitoshi/signbridge/internal/metrics"
	"github.com/hitoshi/signbridge/internal/middleware"
	"github.com/hitoshi/signbridge/internal/profile"
	"github.com/hitoshi/signbridge/internal/repository"
	"github.com/hitoshi/signbridge/internal/security"
	"github.com/hitoshi/signbridge/internal/session"
	"github.com/hitoshi/signbridge/internal/signer"
	"github.com/hitoshi/signbridge/internal/submission"
	"github.com/hitoshi/signbridge/internal/wesignature"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger.SetupDefault(w, level)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("ai_enabled", cfg.AIEnabled()),
		slog.String("name_extraction", cfg.NameExtractionStrategy),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// MongoDBとRedisに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	mongoClient, err := database.OpenMongo(cfg.MongoURL)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	redisClient, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	mongoPinger := database.MongoPinger{Client: mongoClient}
	redisPinger := database.RedisPinger{Client: redisClient}
	if err := pingAll(ctx, map[string]handler.Pinger{"mongo": mongoPinger, "redis": redisPinger}); err != nil {
		return err
	}

	slog.Info("database connections established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	db := mongoClient.Database(cfg.MongoDatabase)
	sessionRepo := repository.NewRedisSessionRepo(redisClient)
	userRepo := repository.NewMongoUserRepo(db)
	fileRepo := repository.NewMongoUploadedFileRepo(db)
	contractRepo := repository.NewMongoContractRepo(db)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContractSanitizer()

	// 5. 外部サービスクライアント
	var geminiClient *gemini.Client
	if cfg.AIEnabled() {
		geminiClient, err = gemini.NewClient(ctx, cfg.GCPProjectID, cfg.VertexAIRegion, cfg.GeminiModel, mc)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		defer geminiClient.Close()
	} else {
		slog.Warn("GCP_PROJECT_ID is not set, contract generation is disabled")
	}

	provider := wesignature.NewClient(ssrfGuard.NewSafeClient(cfg.ProviderTimeout), cfg.WeSignatureBaseURL, mc, slog.Default())

	var archive filestore.Archive
	if cfg.GCSArchiveBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		defer storageClient.Close()
		archive = filestore.NewGCSArchive(storageClient, cfg.GCSArchiveBucket, mc, slog.Default())
	}

	// 6. ドメインサービスの初期化
	sessionService := session.NewService(sessionRepo, cfg.SessionTTL)
	profileService := profile.NewService(userRepo, ssrfGuard, cfg.WeSignatureBaseURL, cfg.FrontendURL, slog.Default())
	contractService := contract.NewService(contractRepo, cfg.FrontendURL)
	fileService := filestore.NewService(fileRepo, archive, mc, slog.Default())

	var jsonGen signer.JSONGenerator
	var draftGen drafting.Generator
	if geminiClient != nil {
		jsonGen = geminiClient
		draftGen = geminiClient
	}
	nameExtractor, err := signer.NewNameExtractor(cfg.NameExtractionStrategy, jsonGen)
	if err != nil {
		return fmt.Errorf("failed to create name extractor: %w", err)
	}
	resolver := signer.NewResolver(nameExtractor, mc, slog.Default())

	submissionService := submission.NewService(extract.NewExtractor(), resolver, provider, fileService, slog.Default())
	draftingService := drafting.NewService(draftGen, sanitizer, slog.Default())

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAI),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(registry),

		Sessions: sessionService,
		Profiles: profileService,
		SessionConfig: handler.SessionHandlerConfig{
			FrontendURL:  cfg.FrontendURL,
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			SessionTTL:   cfg.SessionTTL,
		},

		Submissions:   submissionService,
		UploadMaxSize: cfg.UploadMaxSize,

		Contracts: contractService,
		Drafting:  draftingService,

		HealthChecks: map[string]handler.Pinger{"mongo": mongoPinger, "redis": redisPinger},
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	// 契約書生成と文書送信は外部呼び出しを含むため、WriteTimeoutは外部呼び出しのタイムアウトより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// pingAll は起動時に依存サービスへの疎通を確認する。
func pingAll(ctx context.Context, checks map[string]handler.Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for name, p := range checks {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", name, err)
		}
	}
	return nil
}

// runMigrate はMongoDBのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("mongo_url", maskURL(cfg.MongoURL)),
		slog.String("database", cfg.MongoDatabase),
	)

	if err := database.RunMigrations(cfg.MongoURL, cfg.MongoDatabase); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskURL は接続URLのパスワードをマスクする。
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
