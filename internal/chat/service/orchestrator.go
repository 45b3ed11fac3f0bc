package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chatport "github.com/citmax/central-assinante-go/internal/chat/port"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
)

var tracer = otel.Tracer("chat/service")

// ============================================================
// ORQUESTRADOR DE CONVERSA
// ============================================================
// Uma instância por conversa. Estados:
//
//	Idle → Initializing → Ready ⇄ AwaitingModel ⇄ DispatchingTools
//	                       qualquer um → Closed (terminal)
//
// Cada mensagem do usuário gera NO MÁXIMO duas idas ao modelo: a mensagem
// em si e, se ele pedir ferramentas, uma segunda ida com os resultados.
// Tool calls na segunda resposta são ignoradas. Uma mensagem por vez;
// envios concorrentes recebem ErrConversationBusy.

// Orchestrator drives one support conversation end to end.
type Orchestrator struct {
	ID string

	model      chatport.ChatModel
	dispatcher *ToolDispatcher
	builder    *ContextBuilder
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu           sync.Mutex
	state        chatdomain.State
	busy         bool
	conversation chatport.ModelConversation
	creds        chatdomain.SessionCredentials
	history      []chatdomain.ChatMessage
}

// NewOrchestrator creates an orchestrator in the Idle state.
func NewOrchestrator(model chatport.ChatModel, dispatcher *ToolDispatcher, builder *ContextBuilder, metrics *observability.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		ID:         uuid.NewString(),
		model:      model,
		dispatcher: dispatcher,
		builder:    builder,
		metrics:    metrics,
		logger:     logger,
		state:      chatdomain.StateIdle,
	}
}

// Open binds the conversation to the subscriber, assembles the realtime
// context and returns the greeting. The context is built exactly once; a
// model that cannot be reached leaves the conversation in a degraded but
// usable state.
func (o *Orchestrator) Open(ctx context.Context, creds chatdomain.SessionCredentials, contract domain.Contract) (chatdomain.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "chat.Open")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != chatdomain.StateIdle {
		return chatdomain.ChatMessage{}, &domain.ErrValidation{Field: "conversation", Message: "conversa já aberta"}
	}
	o.state = chatdomain.StateInitializing
	o.creds = creds

	greeting := fallbackGreeting()
	if o.model.Available() {
		systemContext := o.builder.Build(ctx, creds, contract)
		conv, err := o.model.StartConversation(ctx, baseInstruction+"\n\n=== DADOS DO CLIENTE EM TEMPO REAL ===\n"+systemContext)
		if err != nil {
			o.logger.Error("falha ao iniciar conversa com o modelo", zap.Error(err))
		} else {
			o.conversation = conv
			greeting = openGreeting(contract.Name)
		}
	}

	o.state = chatdomain.StateReady
	o.history = append(o.history, greeting)
	span.SetAttributes(attribute.String("conversation.id", o.ID))
	return greeting, nil
}

// Send processes one user message and returns the model's final reply for
// the turn.
func (o *Orchestrator) Send(ctx context.Context, text string) (chatdomain.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "chat.Send")
	defer span.End()

	o.mu.Lock()
	switch {
	case o.state == chatdomain.StateClosed:
		o.mu.Unlock()
		return chatdomain.ChatMessage{}, &domain.ErrNotFound{Resource: "conversation", ID: o.ID}
	case o.state != chatdomain.StateReady:
		o.mu.Unlock()
		return chatdomain.ChatMessage{}, &domain.ErrConversationBusy{ConversationID: o.ID}
	case o.busy:
		o.mu.Unlock()
		return chatdomain.ChatMessage{}, &domain.ErrConversationBusy{ConversationID: o.ID}
	}
	o.busy = true
	o.history = append(o.history, newMessage(chatdomain.RoleUser, text))
	creds := o.creds
	conv := o.conversation
	o.mu.Unlock()

	reply, status := o.runTurn(ctx, conv, creds, text)
	o.metrics.IncrChatTurn(status)

	o.mu.Lock()
	o.busy = false
	if o.state != chatdomain.StateClosed {
		o.state = chatdomain.StateReady
	}
	o.history = append(o.history, reply)
	o.mu.Unlock()

	return reply, nil
}

// runTurn executa as até duas idas ao modelo. Roda fora do lock: só o flag
// busy serializa os turnos.
func (o *Orchestrator) runTurn(ctx context.Context, conv chatport.ModelConversation, creds chatdomain.SessionCredentials, text string) (chatdomain.ChatMessage, string) {
	if conv == nil {
		return newMessage(chatdomain.RoleModel, replyModelUnavailable), "degraded"
	}
	if creds.Password == "" {
		return newMessage(chatdomain.RoleModel, replyMissingPassword), "degraded"
	}

	o.setState(chatdomain.StateAwaitingModel)
	reply, err := conv.Send(ctx, text)
	if err != nil {
		o.logger.Error("modelo falhou no primeiro round", zap.Error(err))
		return newMessage(chatdomain.RoleModel, replyModelFailure), "error"
	}
	o.recordTokens(reply)

	if len(reply.ToolCalls) == 0 {
		return newMessage(chatdomain.RoleModel, textOr(reply.Text, replyEmptyText)), "success"
	}

	o.setState(chatdomain.StateDispatchingTools)
	results := o.dispatcher.Dispatch(ctx, creds, reply.ToolCalls)

	o.setState(chatdomain.StateAwaitingModel)
	final, err := conv.SendToolResults(ctx, results)
	if err != nil {
		o.logger.Error("modelo falhou no segundo round", zap.Error(err))
		return newMessage(chatdomain.RoleModel, replyModelFailure), "error"
	}
	o.recordTokens(final)

	// Segunda resposta com mais tool calls não gera terceiro round.
	return newMessage(chatdomain.RoleModel, textOr(final.Text, replyActionProcessed)), "success"
}

// Close terminates the conversation. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = chatdomain.StateClosed
}

// History returns a copy of the transcript.
func (o *Orchestrator) History() []chatdomain.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]chatdomain.ChatMessage, len(o.history))
	copy(out, o.history)
	return out
}

// State reports the current state.
func (o *Orchestrator) State() chatdomain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s chatdomain.State) {
	o.mu.Lock()
	if o.state != chatdomain.StateClosed {
		o.state = s
	}
	o.mu.Unlock()
}

func (o *Orchestrator) recordTokens(reply chatport.ModelReply) {
	if reply.PromptTokens > 0 || reply.CompletionTokens > 0 {
		o.metrics.RecordTokens(reply.PromptTokens, reply.CompletionTokens)
	}
}

func newMessage(role, text string) chatdomain.ChatMessage {
	return chatdomain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func openGreeting(customerName string) chatdomain.ChatMessage {
	first := customerName
	if fields := strings.Fields(customerName); len(fields) > 0 {
		first = fields[0]
	}
	return newMessage(chatdomain.RoleModel,
		"Olá, "+first+"! Sou o assistente virtual da CITmax.\nAnalisei sua conexão e situação financeira. Como posso ajudar você hoje?")
}

func fallbackGreeting() chatdomain.ChatMessage {
	return newMessage(chatdomain.RoleModel, "Olá! Sou a IA da CITmax. Como posso ajudar?")
}

func textOr(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
