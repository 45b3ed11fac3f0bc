package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	chathandler "github.com/citmax/central-assinante-go/internal/chat/handler"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	portal *service.PortalService,
	sessions *service.SessionManager,
	chat *chathandler.ChatHandlers,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 🔐 Autenticação
		// POST /v1/auth/login
		// =============================================
		r.Post("/auth/login", loginHandler(portal, logger))

		// =============================================
		// 2. 📊 Métricas do agente
		// GET /v1/metrics/agent
		// =============================================
		r.Get("/metrics/agent", agentMetricsHandler(metrics, logger))

		// --- Rotas protegidas por sessão ---
		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(sessions, logger))

			// =============================================
			// 3. 📋 Contratos
			// POST /v1/auth/contracts/{contractId}
			// =============================================
			r.Post("/auth/contracts/{contractId}", selectContractHandler(portal, logger))

			// =============================================
			// 4. 💰 Financeiro
			// GET /v1/invoices
			// GET /v1/invoices/fiscal
			// POST /v1/unlock
			// =============================================
			r.Get("/invoices", invoicesHandler(portal, logger))
			r.Get("/invoices/fiscal", fiscalInvoicesHandler(portal, logger))
			r.Post("/unlock", unlockHandler(portal, logger))

			// =============================================
			// 5. 🌐 Conexão e consumo
			// GET /v1/connection
			// GET /v1/traffic?mes=&ano=
			// =============================================
			r.Get("/connection", connectionHandler(portal, logger))
			r.Get("/traffic", trafficHandler(portal, logger))

			// =============================================
			// 6. 🛠 Chamados
			// POST /v1/tickets
			// =============================================
			r.Post("/tickets", ticketHandler(portal, logger))

			// =============================================
			// 7. 🏠 Painel
			// GET /v1/dashboard
			// =============================================
			r.Get("/dashboard", dashboardHandler(portal, logger))

			// =============================================
			// 8. 💬 Assistente virtual
			// POST   /v1/chat/open
			// POST   /v1/chat/{conversationId}/message
			// GET    /v1/chat/{conversationId}/history
			// DELETE /v1/chat/{conversationId}
			// =============================================
			r.Post("/chat/open", chat.Open())
			r.Post("/chat/{conversationId}/message", chat.Message())
			r.Get("/chat/{conversationId}/history", chat.History())
			r.Delete("/chat/{conversationId}", chat.Close())
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func agentMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/agent")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetAgentSnapshot())
	}
}
