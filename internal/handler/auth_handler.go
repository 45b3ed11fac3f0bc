package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/citmax/central-assinante-go/internal/service"
)

// ============================================================
// Autenticação do assinante
// ============================================================

type loginRequest struct {
	CpfCnpj  string `json:"cpfcnpj"`
	Password string `json:"senha"`
}

func loginHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := portal.Login(ctx, req.CpfCnpj, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func selectContractHandler(portal *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/contracts/{contractId}")
		defer span.End()

		sess := SessionFromContext(ctx)
		contractID := chi.URLParam(r, "contractId")

		result, err := portal.SelectContract(ctx, sess, contractID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
