package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/CaioWing/clientforge/internal/api"
	"github.com/CaioWing/clientforge/internal/auth"
	"github.com/CaioWing/clientforge/internal/ci"
	"github.com/CaioWing/clientforge/internal/codec"
	"github.com/CaioWing/clientforge/internal/config"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/repository/memory"
	"github.com/CaioWing/clientforge/internal/repository/postgres"
	"github.com/CaioWing/clientforge/internal/service"
	"github.com/CaioWing/clientforge/internal/storage/local"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the job cleanup scheduler",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting clientforge",
		"version", version,
		"listen", cfg.ListenAddr(),
		"database", cfg.Database.Driver,
		"images", cfg.Storage.ImagesPath,
		"outputs", cfg.Storage.OutputsPath,
	)

	// Repositories
	var (
		jobRepo   domain.JobRepository
		auditRepo domain.AuditRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		log.Info("running database migrations")
		if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Info("database connected")

		jobRepo = postgres.NewJobRepo(pool)
		auditRepo = postgres.NewAuditRepo(pool)
	default:
		log.Warn("using in-memory job store; jobs are lost on restart")
		jobRepo = memory.NewJobRepo()
		auditRepo = memory.NewAuditRepo()
	}

	// File storage
	images, err := local.New(cfg.Storage.ImagesPath)
	if err != nil {
		return fmt.Errorf("init image storage: %w", err)
	}
	outputs, err := local.New(cfg.Storage.OutputsPath)
	if err != nil {
		return fmt.Errorf("init output storage: %w", err)
	}

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	creds, err := auth.NewCredentials(cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}

	// Services
	encoder := codec.NewEncoder(codec.Defaults{
		ServerHost:   cfg.Build.DefaultServer,
		Key:          cfg.Build.DefaultKey,
		URLLink:      cfg.Build.DefaultURLLink,
		DownloadLink: cfg.Build.DefaultDownloadLink,
		CompanyName:  cfg.Build.DefaultCompany,
	}, cfg.Build.GenURL, cfg.Auth.UploadToken)

	dispatcher := ci.NewClient(ci.Config{
		APIBase: cfg.CI.APIBase,
		Owner:   cfg.CI.Owner,
		Repo:    cfg.CI.Repo,
		Ref:     cfg.CI.Ref,
		Token:   cfg.CI.Token,
		Timeout: cfg.CI.Timeout,
	}, log)

	if cfg.Auth.UploadToken == "" {
		log.Warn("auth.upload_token is not set; build outputs cannot be uploaded")
	}

	jobSvc := service.NewJobService(jobRepo, log)
	auditSvc := service.NewAuditService(auditRepo, log)
	artifactSvc := service.NewArtifactService(jobRepo, images, outputs, service.ArtifactConfig{
		UploadToken:    cfg.Auth.UploadToken,
		PublicURL:      cfg.Server.PublicURL,
		MaxImageBytes:  cfg.Storage.MaxImageBytes,
		MaxOutputBytes: cfg.Storage.MaxOutputBytes,
	}, log)
	buildSvc := service.NewBuildService(encoder, jobSvc, artifactSvc, dispatcher, log)
	cleanupSvc := service.NewCleanupService(jobRepo, auditSvc, service.CleanupConfig{
		StaleAfter: cfg.Jobs.StaleAfter,
		Retention:  cfg.Jobs.Retention,
	}, log, images, outputs)

	go cleanupSvc.StartScheduler(ctx, cfg.Jobs.SweepInterval)

	router := api.NewRouter(api.RouterDeps{
		JobSvc:         jobSvc,
		BuildSvc:       buildSvc,
		ArtifactSvc:    artifactSvc,
		AuditSvc:       auditSvc,
		JWTManager:     jwtMgr,
		Credentials:    creds,
		CallbackToken:  cfg.Auth.CallbackToken,
		UploadToken:    cfg.Auth.UploadToken,
		ExternalToken:  cfg.Auth.ExternalToken,
		MaxOutputBytes: cfg.Storage.MaxOutputBytes,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// no read/write timeout: build outputs are large and stream slowly
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
