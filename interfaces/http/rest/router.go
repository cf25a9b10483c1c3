package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"taskdeps/application/services"
	"taskdeps/infrastructure/config"
	"taskdeps/interfaces/http/rest/handlers"
	"taskdeps/interfaces/http/rest/middleware"
	ws "taskdeps/interfaces/websocket"
	"taskdeps/pkg/auth"
	"taskdeps/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	service   *services.DependencyService
	wsServer  *ws.Server
	validator *auth.JWTValidator
	metrics   *observability.Collector
	cfg       *config.Config
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	service *services.DependencyService,
	wsServer *ws.Server,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		service:   service,
		wsServer:  wsServer,
		validator: validator,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.tracker.example.com"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health and operational endpoints
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	// WebSocket subscriptions
	router.Get("/ws", rt.wsServer.HandleWebSocket)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))
		r.Use(middleware.CircuitBreaker(middleware.DefaultCircuitBreakerConfig("api"), rt.logger))

		dependencyHandler := handlers.NewDependencyHandler(rt.service, rt.logger)
		r.Route("/tasks/{taskID}/dependencies", func(r chi.Router) {
			r.Get("/", dependencyHandler.GetDependencies)
			r.Post("/", dependencyHandler.AddDependency)
			r.Get("/check", dependencyHandler.CheckDependency)
			r.Delete("/{edgeID}", dependencyHandler.RemoveDependency)
		})

		graphHandler := handlers.NewGraphHandler(rt.service, rt.logger)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/dependency-graph", graphHandler.GetGraph)
			r.Get("/critical-path", graphHandler.GetCriticalPath)
		})
	})

	// Internal routes for sibling services, not exposed at the edge
	router.Route("/internal/v1", func(r chi.Router) {
		dependencyHandler := handlers.NewDependencyHandler(rt.service, rt.logger)
		r.Delete("/tasks/{taskID}/edges", dependencyHandler.CascadeRemove)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
