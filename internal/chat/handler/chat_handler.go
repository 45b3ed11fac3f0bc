// Package handler expõe o ciclo de vida das conversas do assistente:
// abrir, enviar mensagem, consultar histórico e encerrar. O handler é fino;
// toda a lógica de turno vive no orquestrador.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chatservice "github.com/citmax/central-assinante-go/internal/chat/service"
	maindomain "github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/port"
	"github.com/citmax/central-assinante-go/internal/service"
)

var tracer = otel.Tracer("chat/handler")

// SessionResolver extracts the authenticated portal session injected by the
// auth middleware.
type SessionResolver func(ctx context.Context) service.Session

// ChatHandlers serves the conversation endpoints. Conversations live in a
// TTL store keyed by conversation id; expiry closes them implicitly.
type ChatHandlers struct {
	portal  *service.PortalService
	store   port.Cache[*chatservice.Orchestrator]
	create  func() *chatservice.Orchestrator
	resolve SessionResolver
	logger  *zap.Logger
}

// New wires the chat endpoints.
func New(
	portal *service.PortalService,
	store port.Cache[*chatservice.Orchestrator],
	create func() *chatservice.Orchestrator,
	resolve SessionResolver,
	logger *zap.Logger,
) *ChatHandlers {
	return &ChatHandlers{
		portal:  portal,
		store:   store,
		create:  create,
		resolve: resolve,
		logger:  logger,
	}
}

type openResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Greeting       chatdomain.ChatMessage `json:"greeting"`
}

// Open starts a conversation bound to the session contract. The realtime
// context is assembled once, here.
func (h *ChatHandlers) Open() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/open")
		defer span.End()

		sess := h.resolve(ctx)
		contract, err := h.portal.Contract(ctx, sess)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}

		o := h.create()
		greeting, err := o.Open(ctx, chatdomain.SessionCredentials{
			CpfCnpj:    sess.CpfCnpj,
			Password:   sess.Password,
			ContractID: sess.ContractID,
		}, contract)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}

		h.store.Set(o.ID, o)
		span.SetAttributes(attribute.String("conversation.id", o.ID))

		writeJSON(w, http.StatusCreated, openResponse{ConversationID: o.ID, Greeting: greeting})
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

// Message processes one user turn.
func (h *ChatHandlers) Message() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/{conversationId}/message")
		defer span.End()

		o, ok := h.conversation(w, r)
		if !ok {
			return
		}

		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeError(w, http.StatusBadRequest, "corpo inválido: esperado {\"text\": \"...\"}")
			return
		}

		reply, err := o.Send(ctx, req.Text)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}

		writeJSON(w, http.StatusOK, reply)
	}
}

// History returns the conversation transcript.
func (h *ChatHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/chat/{conversationId}/history")
		defer span.End()

		o, ok := h.conversation(w, r)
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, o.History())
	}
}

// Close terminates and forgets a conversation.
func (h *ChatHandlers) Close() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/chat/{conversationId}")
		defer span.End()

		o, ok := h.conversation(w, r)
		if !ok {
			return
		}

		o.Close()
		h.store.Delete(o.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ChatHandlers) conversation(w http.ResponseWriter, r *http.Request) (*chatservice.Orchestrator, bool) {
	id := chi.URLParam(r, "conversationId")
	o, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversa não encontrada ou expirada")
		return nil, false
	}
	return o, true
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var external *maindomain.ErrExternalService
	var notFound *maindomain.ErrNotFound
	var validation *maindomain.ErrValidation
	var busy *maindomain.ErrConversationBusy
	var unauthorized *maindomain.ErrUnauthorized

	switch {
	case errors.As(err, &busy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "serviço externo indisponível")
	default:
		logger.Error("unexpected error in chat handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
