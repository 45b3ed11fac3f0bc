package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/port"
)

// ============================================================
// CONTEXT BUILDER
// ============================================================
// Monta, uma única vez por conversa, o bloco de contexto em pt-BR que vai
// na system instruction: data/hora do suporte, identidade e saúde do
// contrato, situação financeira e diagnóstico técnico. Cada seção degrada
// sozinha; o builder nunca falha.

// ContextBuilder assembles the realtime subscriber context for a
// conversation.
type ContextBuilder struct {
	gateway port.SubscriberGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewContextBuilder creates a builder over the SGP gateway.
func NewContextBuilder(gateway port.SubscriberGateway, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{gateway: gateway, logger: logger, now: time.Now}
}

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

// Build returns the context block for the given credentials and selected
// contract.
func (b *ContextBuilder) Build(ctx context.Context, creds chatdomain.SessionCredentials, contract domain.Contract) string {
	now := b.now().In(saoPaulo)

	var sb strings.Builder
	sb.WriteString("=== DADOS DO SISTEMA ===\n")
	fmt.Fprintf(&sb, "Data e Hora Atual do Suporte: %s\n\n", now.Format("02/01/2006 15:04:05"))

	sb.WriteString("=== DADOS DO CLIENTE ===\n")
	fmt.Fprintf(&sb, "Nome: %s\n", contract.Name)
	fmt.Fprintf(&sb, "Contrato ID: %s\n", contract.ID)
	fmt.Fprintf(&sb, "Plano Contratado: %s\n", contract.Plan)
	sb.WriteString(contractHealth(contract.Status) + "\n")
	fmt.Fprintf(&sb, "Endereço de Instalação: %s, %s - %s, %s/%s\n\n",
		contract.Street, contract.Number, contract.District, contract.City, contract.State)

	sb.WriteString("=== FINANCEIRO ===\n")
	sb.WriteString(b.financialSection(ctx, creds, now) + "\n\n")

	sb.WriteString(b.technicalSection(ctx, creds, contract) + "\n\n")

	sb.WriteString(`INSTRUÇÕES ESPECÍFICAS:
- Se status for REDUZIDO ou SUSPENSO, explique que o problema é financeiro, não técnico. Indique o pagamento ou Desbloqueio de Confiança.
- Se o cliente estiver OFFLINE, sugira verificar cabos e reiniciar a ONU.
- Se o cliente quiser abrir chamado, pergunte o telefone e tente usar a ferramenta disponível.
- Use a data e hora atual para contextualizar (ex: "Bom dia", "Boa tarde").
`)

	return sb.String()
}

// contractHealth classifica o status bruto do SGP. REDUZIDO é lentidão
// proposital por débito; SUSPENSO/BLOQUEADO é corte total.
func contractHealth(status string) string {
	lower := strings.ToLower(status)
	switch {
	case strings.Contains(lower, "reduzido"):
		return "ALERTA: O contrato está em velocidade REDUZIDA por atraso no pagamento. A internet funciona mas está propositalmente lenta. O cliente precisa pagar a fatura ou usar o Desbloqueio de Confiança."
	case strings.Contains(lower, "suspenso"), strings.Contains(lower, "bloqueado"):
		return "ALERTA CRÍTICO: O contrato está SUSPENSO por inadimplência. A internet NÃO vai funcionar até que o pagamento seja realizado e compensado (ou via desbloqueio de confiança)."
	default:
		return "Status do Contrato: " + status
	}
}

func (b *ContextBuilder) financialSection(ctx context.Context, creds chatdomain.SessionCredentials, now time.Time) string {
	if creds.Password == "" {
		return "Situação Financeira: Não verificado (Senha não fornecida)."
	}

	invoices, err := b.gateway.ListInvoices(ctx, creds.CpfCnpj, creds.Password, creds.ContractID)
	if err != nil {
		b.logger.Warn("contexto financeiro indisponível", zap.Error(err))
		return "Situação Financeira: Erro ao consultar faturas."
	}

	var open []domain.Invoice
	for _, inv := range invoices {
		if !inv.IsPaid() {
			open = append(open, inv)
		}
	}
	if len(open) == 0 {
		return "Situação Financeira: O cliente está rigorosamente em dia. Nenhuma fatura pendente de pagamento."
	}

	// A lista chega em ordem decrescente de vencimento; a mais antiga em
	// aberto é a última.
	oldest := open[len(open)-1]
	late := false
	if due := parseContextDate(oldest.DueDate); !due.IsZero() {
		late = due.Before(now)
	}
	overall := "EM DIA (A vencer)"
	if late {
		overall = "INADIMPLENTE/EM ATRASO"
	}

	return fmt.Sprintf(
		"Situação Financeira: O cliente possui %d fatura(s) em aberto.\nA mais antiga venceu em %s no valor de %s.\nStatus Geral: %s.",
		len(open), domain.FormatDate(oldest.DueDate), domain.FormatCurrency(oldest.Amount), overall)
}

func (b *ContextBuilder) technicalSection(ctx context.Context, creds chatdomain.SessionCredentials, contract domain.Contract) string {
	if creds.Password == "" {
		return "Status da Conexão: Não verificado."
	}

	sessions, err := b.gateway.ListConnectionSessions(ctx, creds.CpfCnpj, creds.Password, creds.ContractID)
	if err != nil {
		b.logger.Warn("contexto técnico indisponível", zap.Error(err))
		return "Status da Conexão: Erro ao buscar diagnóstico técnico."
	}

	conn := MatchConnection(sessions, contract)
	if conn == nil {
		return "Status da Conexão: Nenhuma conexão ativa encontrada recentemente."
	}

	state := "OFFLINE (Sem conexão no momento)"
	if conn.Online {
		state = "ONLINE (Conectado)"
	}
	ip := conn.IP
	if ip == "" {
		ip = "Sem IP"
	}
	mac := conn.MAC
	if mac == "" {
		mac = "N/A"
	}

	return fmt.Sprintf(`=== DIAGNÓSTICO TÉCNICO ===
Status Atual: %s
IP Atual: %s
MAC Address: %s
Login PPPoE: %s
Início da Sessão: %s
Consumo na Sessão: Down %s / Up %s`,
		state, ip, mac, conn.PPPoELogin,
		formatDateTime(conn.SessionStart),
		domain.BytesToGB(conn.OutputOctets), domain.BytesToGB(conn.InputOctets))
}

// formatDateTime renders an SGP timestamp as dd/mm/yyyy hh:mm:ss, passing
// unrecognized values through untouched.
func formatDateTime(s string) string {
	if s == "" {
		return "N/A"
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006 15:04:05")
		}
	}
	return s
}

func parseContextDate(s string) time.Time {
	if idx := strings.IndexAny(s, "T "); idx >= 0 {
		s = s[:idx]
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
