package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/citmax/central-assinante-go/internal/service"
)

// ============================================================
// Portal do assinante (rotas protegidas)
// ============================================================

func invoicesHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		invoices, err := portal.Invoices(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, invoices)
	}
}

func fiscalInvoicesHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/fiscal")
		defer span.End()

		notes, err := portal.FiscalInvoices(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, notes)
	}
}

func trafficHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/traffic")
		defer span.End()

		extract, err := portal.Traffic(ctx, SessionFromContext(ctx),
			queryInt(r, "mes"), queryInt(r, "ano"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if extract == nil {
			writeError(w, http.StatusNotFound, "extrato indisponível para o período")
			return
		}

		writeJSON(w, http.StatusOK, extract)
	}
}

func connectionHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/connection")
		defer span.End()

		conn, err := portal.Connection(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if conn == nil {
			writeError(w, http.StatusNotFound, "nenhuma conexão encontrada para este contrato")
			return
		}

		writeJSON(w, http.StatusOK, conn)
	}
}

func unlockHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/unlock")
		defer span.End()

		verdict, err := portal.Unlock(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, verdict)
	}
}

func ticketHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tickets")
		defer span.End()

		var req service.TicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ticket, err := portal.OpenTicket(ctx, SessionFromContext(ctx), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, ticket)
	}
}

func dashboardHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		summary, err := portal.Dashboard(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}
