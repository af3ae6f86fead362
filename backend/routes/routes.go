package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/dataspace-control-plane/backend/app"
	"github.com/upb/dataspace-control-plane/backend/handlers"
	"github.com/upb/dataspace-control-plane/backend/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Role", "X-User-Email"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Handlers
	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	requestHandler := handlers.NewAccessRequestHandler(deps.Negotiations, deps.Logger)
	contractHandler := handlers.NewContractHandler(deps.Contracts, deps.Logger)
	exchangeHandler := handlers.NewExchangeHandler(deps.Gateway, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.Audit, deps.Logger)
	connectorHandler := handlers.NewConnectorHandler(deps.Connector, deps.Logger)
	typeHandler := handlers.NewNegotiationTypeHandler(deps.Repos.NegotiationTypes, deps.Logger)

	// Health check endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Principal.RequirePrincipal)

		// Negotiation
		r.Route("/access-requests", func(r chi.Router) {
			r.Get("/", requestHandler.HandleList)
			r.Post("/", requestHandler.HandleCreate)
			r.Post("/{id}/counter", requestHandler.HandleProviderCounter)
			r.Post("/{id}/consumer-counter", requestHandler.HandleConsumerCounter)
			r.Post("/{id}/approve", requestHandler.HandleApprove)
			r.Post("/{id}/approve-final", requestHandler.HandleApproveFinal)
			r.Post("/{id}/accept-counter", requestHandler.HandleAcceptCounter)
			r.Post("/{id}/reject", requestHandler.HandleReject)
			r.Post("/{id}/cancel", requestHandler.HandleCancel)
		})

		// Contracts
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", contractHandler.HandleList)
			r.Get("/{id}", contractHandler.HandleGet)
			r.Post("/{id}/revoke", contractHandler.HandleRevoke)
			r.Put("/{id}/policy", contractHandler.HandleSetPolicy)
		})

		// Dataset consumption
		r.Get("/datasets/{id}/access", exchangeHandler.HandleAccess)

		// Negotiation type catalog
		r.Get("/negotiation-types", typeHandler.HandleList)

		// Access logs (providers and operators)
		r.With(deps.Principal.RequireRole(models.RoleProvider, models.RoleOperator)).
			Get("/access-logs", auditHandler.HandleList)

		// Connector status (operators)
		r.With(deps.Principal.RequireRole(models.RoleOperator)).
			Get("/connector/status", connectorHandler.HandleStatus)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
