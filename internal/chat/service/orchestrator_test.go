package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chatport "github.com/citmax/central-assinante-go/internal/chat/port"
	"github.com/citmax/central-assinante-go/internal/chat/service"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
)

func newOrchestrator(model chatport.ChatModel, gw *fakeGateway) *service.Orchestrator {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	return service.NewOrchestrator(
		model,
		service.NewToolDispatcher(gw, metrics, logger),
		service.NewContextBuilder(gw, logger),
		metrics,
		logger,
	)
}

func openConversation(t *testing.T, o *service.Orchestrator) chatdomain.ChatMessage {
	t.Helper()
	greeting, err := o.Open(context.Background(), testCreds, testContract)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return greeting
}

func TestOrchestrator_OpenGreetsWithFirstName(t *testing.T) {
	model := &fakeModel{available: true}
	o := newOrchestrator(model, &fakeGateway{})

	greeting := openConversation(t, o)

	if !strings.HasPrefix(greeting.Text, "Olá, Empresa!") {
		t.Errorf("unexpected greeting %q", greeting.Text)
	}
	if greeting.Role != chatdomain.RoleModel {
		t.Errorf("greeting role = %q", greeting.Role)
	}
	if !strings.Contains(model.lastSystem, "=== DADOS DO CLIENTE EM TEMPO REAL ===") {
		t.Error("system instruction must embed the realtime context")
	}
	if !strings.Contains(model.lastSystem, "Assistente Virtual CITmax") {
		t.Error("system instruction must embed the base persona")
	}
	if o.State() != chatdomain.StateReady {
		t.Errorf("state after open = %v", o.State())
	}
}

func TestOrchestrator_OpenDegradesWhenModelUnavailable(t *testing.T) {
	o := newOrchestrator(&fakeModel{available: false}, &fakeGateway{})

	greeting := openConversation(t, o)
	if greeting.Text != "Olá! Sou a IA da CITmax. Como posso ajudar?" {
		t.Errorf("unexpected fallback greeting %q", greeting.Text)
	}

	reply, err := o.Send(context.Background(), "minha internet caiu")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(reply.Text, "API Key ausente") {
		t.Errorf("expected fixed unavailable reply, got %q", reply.Text)
	}
}

func TestOrchestrator_PlainTextTurnIsOneRoundTrip(t *testing.T) {
	model := &fakeModel{
		available: true,
		replies:   []chatport.ModelReply{{Text: "Sua fatura vence dia 10."}},
	}
	o := newOrchestrator(model, &fakeGateway{})
	openConversation(t, o)

	reply, err := o.Send(context.Background(), "quando vence minha fatura?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != "Sua fatura vence dia 10." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if model.conv.sendCalls != 1 || model.conv.resultCalls != 0 {
		t.Errorf("expected exactly one round trip, got send=%d results=%d",
			model.conv.sendCalls, model.conv.resultCalls)
	}
}

func TestOrchestrator_ToolTurnIsExactlyTwoRoundTrips(t *testing.T) {
	gw := &fakeGateway{
		invoices: []domain.Invoice{
			{ID: "1", DueDate: "2024-03-10", Amount: 129.90, Status: "Aberto", PixCode: "pix-abc"},
			{ID: "2", DueDate: "2024-02-10", Amount: 99.90, Status: "Pago", PaidAt: "2024-02-09"},
		},
	}
	model := &fakeModel{
		available: true,
		replies: []chatport.ModelReply{{
			ToolCalls: []chatdomain.ToolCall{{ID: "c1", Name: chatdomain.ToolCheckInvoices}},
		}},
		followUps: []chatport.ModelReply{{Text: "Você tem 1 fatura em aberto de R$ 129,90."}},
	}
	o := newOrchestrator(model, gw)
	openConversation(t, o)
	// O open monta o contexto financeiro; só conta a partir daqui o que o
	// dispatcher executar.
	gw.invoiceCalls = 0

	reply, err := o.Send(context.Background(), "tenho contas atrasadas?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gw.invoiceCalls != 1 {
		t.Errorf("expected exactly 1 checkInvoices dispatch, got %d", gw.invoiceCalls)
	}
	if model.conv.sendCalls != 1 || model.conv.resultCalls != 1 {
		t.Errorf("expected exactly two round trips, got send=%d results=%d",
			model.conv.sendCalls, model.conv.resultCalls)
	}
	if reply.Text != "Você tem 1 fatura em aberto de R$ 129,90." {
		t.Errorf("unexpected reply %q", reply.Text)
	}

	// O resultado enviado ao modelo só carrega as faturas em aberto.
	sent := model.conv.sentResults[0]
	if len(sent) != 1 || sent[0].Name != chatdomain.ToolCheckInvoices || sent[0].ID != "c1" {
		t.Fatalf("unexpected tool results %+v", sent)
	}
	open, ok := sent[0].Payload["result"].([]map[string]any)
	if !ok || len(open) != 1 {
		t.Fatalf("expected 1 open invoice in payload, got %+v", sent[0].Payload)
	}
	if open[0]["pix"] != "pix-abc" {
		t.Errorf("payload must keep pix code, got %+v", open[0])
	}
}

func TestOrchestrator_AllInvoicesPaidYieldsLiteral(t *testing.T) {
	gw := &fakeGateway{
		invoices: []domain.Invoice{
			{ID: "1", DueDate: "2024-03-10", Amount: 129.90, Status: "Pago", PaidAt: "2024-03-05"},
			{ID: "2", DueDate: "2024-02-10", Amount: 99.90, Status: "Pago", PaidAt: "2024-02-09"},
		},
	}
	model := &fakeModel{
		available: true,
		replies: []chatport.ModelReply{{
			ToolCalls: []chatdomain.ToolCall{{ID: "c1", Name: chatdomain.ToolCheckInvoices}},
		}},
		followUps: []chatport.ModelReply{{Text: "Tudo em dia!"}},
	}
	o := newOrchestrator(model, gw)
	openConversation(t, o)

	if _, err := o.Send(context.Background(), "tenho contas atrasadas?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	payload := model.conv.sentResults[0][0].Payload
	if payload["result"] != "Nenhuma fatura em aberto encontrada." {
		t.Errorf("all-paid payload must be the fixed sentence, got %+v", payload)
	}
}

func TestOrchestrator_SecondReplyToolCallsAreNotDispatched(t *testing.T) {
	gw := &fakeGateway{}
	model := &fakeModel{
		available: true,
		replies: []chatport.ModelReply{{
			ToolCalls: []chatdomain.ToolCall{{ID: "c1", Name: chatdomain.ToolCheckConnection}},
		}},
		followUps: []chatport.ModelReply{{
			// Modelo tenta encadear mais uma ferramenta: ignorado.
			ToolCalls: []chatdomain.ToolCall{{ID: "c2", Name: chatdomain.ToolUnlockTrust}},
		}},
	}
	o := newOrchestrator(model, gw)
	openConversation(t, o)

	reply, err := o.Send(context.Background(), "minha internet está lenta")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gw.unlockCalls != 0 {
		t.Error("tool calls in the follow-up reply must not be dispatched")
	}
	if reply.Text != "Ação processada." {
		t.Errorf("expected fixed processed reply, got %q", reply.Text)
	}
}

func TestOrchestrator_ToolErrorBecomesErrorPayload(t *testing.T) {
	gw := &fakeGateway{unlockErr: errors.New("sgp recusou")}
	model := &fakeModel{
		available: true,
		replies: []chatport.ModelReply{{
			ToolCalls: []chatdomain.ToolCall{{ID: "c1", Name: chatdomain.ToolUnlockTrust}},
		}},
		followUps: []chatport.ModelReply{{Text: "Não consegui desbloquear."}},
	}
	o := newOrchestrator(model, gw)
	openConversation(t, o)

	if _, err := o.Send(context.Background(), "libera minha internet"); err != nil {
		t.Fatalf("send: %v", err)
	}

	payload := model.conv.sentResults[0][0].Payload
	if _, ok := payload["error"]; !ok {
		t.Errorf("tool failure must become an error payload, got %+v", payload)
	}
	if gw.unlockCalls != 1 {
		t.Errorf("unlock must be issued exactly once, got %d", gw.unlockCalls)
	}
}

func TestOrchestrator_SequentialDispatchInModelOrder(t *testing.T) {
	gw := &fakeGateway{
		sessions: []domain.ConnectionSession{{PPPoELogin: "x", Online: true}},
	}
	model := &fakeModel{
		available: true,
		replies: []chatport.ModelReply{{
			ToolCalls: []chatdomain.ToolCall{
				{ID: "c1", Name: chatdomain.ToolCheckConnection},
				{ID: "c2", Name: chatdomain.ToolCheckTraffic, Args: map[string]any{"mes": float64(2), "ano": float64(2024)}},
			},
		}},
		followUps: []chatport.ModelReply{{Text: "Diagnóstico completo."}},
	}
	o := newOrchestrator(model, gw)
	openConversation(t, o)

	if _, err := o.Send(context.Background(), "analisa tudo"); err != nil {
		t.Fatalf("send: %v", err)
	}

	sent := model.conv.sentResults[0]
	if len(sent) != 2 || sent[0].ID != "c1" || sent[1].ID != "c2" {
		t.Fatalf("results must follow model order, got %+v", sent)
	}
	if gw.lastTrafficMonth != 2 || gw.lastTrafficYear != 2024 {
		t.Errorf("traffic args not honored: %d/%d", gw.lastTrafficMonth, gw.lastTrafficYear)
	}
}

func TestOrchestrator_ModelFailureYieldsFixedReply(t *testing.T) {
	model := &fakeModel{available: true, sendErr: errors.New("quota")}
	o := newOrchestrator(model, &fakeGateway{})
	openConversation(t, o)

	reply, err := o.Send(context.Background(), "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != "Desculpe, estou tendo dificuldades técnicas no momento." {
		t.Errorf("unexpected failure reply %q", reply.Text)
	}
	if o.State() != chatdomain.StateReady {
		t.Errorf("conversation must recover to ready, state = %v", o.State())
	}
}

func TestOrchestrator_MissingPasswordShortCircuits(t *testing.T) {
	gw := &fakeGateway{}
	model := &fakeModel{available: true}
	o := newOrchestrator(model, gw)

	creds := testCreds
	creds.Password = ""
	if _, err := o.Open(context.Background(), creds, testContract); err != nil {
		t.Fatalf("open: %v", err)
	}

	reply, err := o.Send(context.Background(), "abre um chamado")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(reply.Text, "Senha do usuário não disponível") {
		t.Errorf("expected auth short-circuit, got %q", reply.Text)
	}
	if model.conv.sendCalls != 0 {
		t.Errorf("model must not be called without password, got %d", model.conv.sendCalls)
	}
}

func TestOrchestrator_SendAfterCloseFails(t *testing.T) {
	o := newOrchestrator(&fakeModel{available: true}, &fakeGateway{})
	openConversation(t, o)
	o.Close()

	if _, err := o.Send(context.Background(), "oi"); err == nil {
		t.Fatal("expected error after close")
	}
	if o.State() != chatdomain.StateClosed {
		t.Errorf("close must be terminal, state = %v", o.State())
	}
}

func TestOrchestrator_HistoryKeepsTranscript(t *testing.T) {
	model := &fakeModel{
		available: true,
		replies:   []chatport.ModelReply{{Text: "resposta"}},
	}
	o := newOrchestrator(model, &fakeGateway{})
	openConversation(t, o)

	if _, err := o.Send(context.Background(), "pergunta"); err != nil {
		t.Fatalf("send: %v", err)
	}

	h := o.History()
	if len(h) != 3 {
		t.Fatalf("expected greeting+user+model, got %d messages", len(h))
	}
	if h[1].Role != chatdomain.RoleUser || h[1].Text != "pergunta" {
		t.Errorf("unexpected user message %+v", h[1])
	}
	if h[2].Role != chatdomain.RoleModel || h[2].Text != "resposta" {
		t.Errorf("unexpected model message %+v", h[2])
	}
}
