package main

import (
	"EvidenceVault/internal/config"
	"EvidenceVault/internal/crypto"
	"EvidenceVault/internal/handlers"
	"EvidenceVault/internal/metrics"
	"EvidenceVault/internal/middleware"
	"EvidenceVault/internal/repo"
	"EvidenceVault/internal/service"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateServer(); err != nil {
		sugar.Fatalw("invalid configuration", "error", err)
	}
	// без секрета шифрования сервер не стартует
	keys := crypto.NewKeyDeriver(cfg.EvidenceSecret, cfg.KDFIterations)
	if err := keys.Validate(); err != nil {
		sugar.Fatalw("invalid evidence key configuration", "error", err)
	}

	gormDB, err := repo.InitDB(cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	evidenceRepo, err := newEvidenceRepo(ctx, cfg, gormDB)
	if err != nil {
		sugar.Fatalw("failed to initialize blob storage", "error", err)
	}

	m := metrics.New()
	userRepo := repo.NewUserRepository(gormDB)
	userService := service.NewUserService(userRepo)
	evidenceService := service.NewEvidenceService(
		evidenceRepo,
		service.NewAccessGate(userRepo),
		keys,
		sugar,
		service.WithMetrics(m),
		service.WithMaxBytes(cfg.MaxEvidenceBytes()),
	)

	h := handlers.NewHandler(userService, evidenceService, m, sugar, cfg)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"BlobBackend", cfg.BlobBackend,
		"MaxSizeMB", cfg.EvidenceMaxSizeMB,
		"Keys", keys.String(),
	)

	srv := &http.Server{
		Addr:              cfg.BaseURL,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("Shutdown failed", "error", err)
		}
	}()

	sugar.Infow("Starting server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalw("Server failed", "error", err)
	}
	sugar.Infow("Server stopped")
}

// newEvidenceRepo выбирает, где хранить шифртексты: в строке таблицы или в S3.
func newEvidenceRepo(ctx context.Context, cfg *config.Config, db *gorm.DB) (repo.EvidenceRepository, error) {
	if cfg.BlobBackend != config.BackendS3 {
		return repo.NewEvidenceRepository(db), nil
	}
	client, err := repo.NewS3Client(ctx, repo.S3Options{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return repo.NewEvidenceRepositoryWithObjects(db, repo.NewS3ObjectStore(client, cfg.S3Bucket)), nil
}
