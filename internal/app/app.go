package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/shelf/internal/auth"
	"github.com/hitoshi/shelf/internal/config"
	"github.com/hitoshi/shelf/internal/database"
	"github.com/hitoshi/shelf/internal/handler"
	"github.com/hitoshi/shelf/internal/logger"
	"github.com/hitoshi/shelf/internal/metrics"
	"github.com/hitoshi/shelf/internal/middleware"
	"github.com/hitoshi/shelf/internal/product"
	"github.com/hitoshi/shelf/internal/repository"
	"github.com/hitoshi/shelf/internal/security"
	"github.com/hitoshi/shelf/internal/storage"
	"github.com/hitoshi/shelf/internal/user"
	"github.com/hitoshi/shelf/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newTokenRepository はREDIS_ADDRが設定されていればRedis、なければPostgreSQLのトークンリポジトリを返す。
// 返されるclose関数は常に呼び出してよい。
func newTokenRepository(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.TokenRepository, func(), error) {
	if cfg.RedisAddr == "" {
		return repository.NewPostgresTokenRepo(db), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis token store enabled", slog.String("addr", cfg.RedisAddr))
	return repository.NewRedisTokenRepo(client), func() { client.Close() }, nil
}

// newStorage はSTORAGE_BACKENDに応じた画像ストレージを返す。
// ローカルストレージの場合は配信用ハンドラーも返す。
func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, http.Handler, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		return s3Store, nil, nil
	default:
		local, err := storage.NewLocalStorage(cfg.StorageDir, cfg.PublicStorageURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return local, local.Handler(), nil
	}
}

// newMetricsRegistry はアプリケーションメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	tokenRepo, closeTokens, err := newTokenRepository(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeTokens()

	// 3. ストレージとメトリクス
	store, storageHandler, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	reg, collector := newMetricsRegistry()

	// 4. ドメインサービスの初期化
	userService := user.NewService(userRepo, user.NewPasswordHasher(cfg.BcryptCost))
	authService := auth.NewService(userService, tokenRepo, collector, auth.ServiceConfig{
		TokenMaxAge: cfg.TokenMaxAge,
	})
	productService := product.NewService(productRepo, store, security.NewTextSanitizer(), collector, product.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// 5. ルーターの構築（レート制限はreq/min単位の設定から変換する）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		TokenValidator:    authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
		StorageHandler: storageHandler,

		AuthService:    authService,
		UserService:    userService,
		ProductService: productService,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
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

// runWorker はワーカーモードで起動する。
// 期限切れトークンの定期削除を行い、削除件数を/metricsで公開する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.RedisAddr != "" {
		slog.Info("redis token store expires tokens by TTL; purging leftover postgres token rows only")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetricsRegistry()
	job := cleanup.NewTokenCleanupJob(repository.NewPostgresTokenRepo(db), collector, slog.Default())

	server := newWorkerMetricsServer(cfg.WorkerMetricsPort, reg)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("worker metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.TokenCleanupInterval),
	)

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	done := make(chan struct{})
	go func() {
		job.Start(jobCtx, cfg.TokenCleanupInterval)
		close(done)
	}()

	var listenErr error
	select {
	case err := <-errCh:
		listenErr = err
	case <-ctx.Done():
	}
	cancelJob()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("worker metrics server shutdown failed: %w", err)
	}
	if listenErr != nil {
		return fmt.Errorf("worker metrics listen error: %w", listenErr)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetricsServer はworkerモードのメトリクスを公開するHTTPサーバーを返す。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           metrics.SetupMetricsRoute(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
