package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/CaioWing/clientforge/internal/api/management"
	"github.com/CaioWing/clientforge/internal/api/middleware"
	"github.com/CaioWing/clientforge/internal/api/pipeline"
	"github.com/CaioWing/clientforge/internal/api/public"
	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/auth"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/service"
)

type RouterDeps struct {
	JobSvc      *service.JobService
	BuildSvc    *service.BuildService
	ArtifactSvc *service.ArtifactService
	AuditSvc    *service.AuditService
	JWTManager  *auth.JWTManager
	Credentials *auth.Credentials

	CallbackToken  string
	UploadToken    string
	ExternalToken  string
	MaxOutputBytes int64

	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	metrics := middleware.NewMetrics(deps.JobSvc.Stats)

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(metrics.Middleware())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", metrics.Handler())

	// Build API, used by the option form front-end
	buildHandler := public.NewBuildHandler(deps.BuildSvc, deps.JobSvc, deps.ArtifactSvc, deps.Logger)

	r.Route("/api/v1/builds", func(r chi.Router) {
		r.Use(middleware.RateLimit(10, 20))

		r.Get("/status", buildHandler.Status)
		r.Get("/download", buildHandler.Download)
		r.Get("/images", buildHandler.Image)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ManagementAuth(deps.JWTManager))
			r.Use(middleware.AuditLog(deps.AuditSvc, domain.ActorTypeManagement))
			r.With(middleware.RateLimit(1, 5)).Post("/", buildHandler.Submit)
		})
	})

	// Pipeline API, called by the remote build workflows
	pipelineHandler := pipeline.NewHandler(deps.JobSvc, deps.ArtifactSvc, deps.BuildSvc, deps.AuditSvc, deps.MaxOutputBytes, deps.Logger)

	r.Route("/api/v1/ci", func(r chi.Router) {
		r.Use(middleware.RateLimit(20, 40))

		r.With(middleware.BearerSecret(deps.CallbackToken, "pipeline")).
			Post("/callback", pipelineHandler.Callback)

		// the upload token is checked by the artifact service
		r.Post("/artifacts", pipelineHandler.UploadArtifact)

		r.With(middleware.BearerSecret(deps.UploadToken, "pipeline")).
			Post("/images", pipelineHandler.UploadImage)

		r.With(
			middleware.BearerSecret(deps.ExternalToken, "external"),
			middleware.AuditLog(deps.AuditSvc, domain.ActorTypeCI),
		).Post("/trigger", pipelineHandler.Trigger)
	})

	// Management API, used by operators
	mgmtAuthHandler := management.NewAuthHandler(deps.JWTManager, deps.Credentials, deps.AuditSvc)
	mgmtJobHandler := management.NewJobHandler(deps.JobSvc)
	mgmtAuditHandler := management.NewAuditHandler(deps.AuditSvc)

	r.Route("/api/v1/management", func(r chi.Router) {
		r.Use(middleware.RateLimit(30, 60))

		r.With(middleware.RateLimit(1, 5)).Post("/auth/login", mgmtAuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ManagementAuth(deps.JWTManager))
			r.Use(middleware.AuditLog(deps.AuditSvc, domain.ActorTypeManagement))

			r.Post("/auth/refresh", mgmtAuthHandler.Refresh)

			r.Get("/jobs", mgmtJobHandler.List)
			r.Get("/jobs/statistics", mgmtJobHandler.Stats)
			r.Get("/jobs/{id}", mgmtJobHandler.Get)
			r.Put("/jobs/{id}/status", mgmtJobHandler.Override)

			r.Get("/audit", mgmtAuditHandler.List)
		})
	})

	return r
}
