package handlers

import (
	"EvidenceVault/internal/config"
	"EvidenceVault/internal/metrics"
	"EvidenceVault/internal/middleware"
	"EvidenceVault/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	userService service.UserService,
	evidenceService *service.EvidenceService,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(config.AuthSecret))

	// Handlers
	userHandler := NewUserHandler(userService, logger, config)
	evidenceHandler := NewEvidenceHandler(evidenceService, logger, config)

	// User routes
	r.Post("/api/user/register", userHandler.Register)
	r.Post("/api/user/login", userHandler.Login)
	r.Post("/api/user/test", userHandler.Status)

	// Evidence routes
	r.Route("/api/evidence", func(r chi.Router) {
		r.Post("/", evidenceHandler.Upload)
		r.Get("/", evidenceHandler.List)
		r.Get("/{id}", evidenceHandler.Download)
		r.Get("/{id}/verify", evidenceHandler.Verify)
		r.Patch("/{id}", evidenceHandler.Update)
		r.Delete("/{id}", evidenceHandler.Delete)
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	return &Handler{Router: r}
}
