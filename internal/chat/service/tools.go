package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/port"
)

// ============================================================
// TOOL DISPATCHER
// ============================================================
// Executa as chamadas de ferramenta solicitadas pelo modelo, uma a uma, na
// ordem em que vieram. As credenciais da sessão SEMPRE prevalecem sobre
// qualquer identidade que o modelo tenha colocado nos argumentos. Falhas de
// ferramenta viram payload {"error": ...} para o modelo reagir em texto;
// nunca abortam o turno.

// ToolDispatcher executes model-requested tool calls against the SGP
// gateway.
type ToolDispatcher struct {
	gateway port.SubscriberGateway
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewToolDispatcher creates a dispatcher over the gateway.
func NewToolDispatcher(gateway port.SubscriberGateway, metrics *observability.Metrics, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{gateway: gateway, metrics: metrics, logger: logger, now: time.Now}
}

// Dispatch runs every call sequentially and pairs each with its result.
func (d *ToolDispatcher) Dispatch(ctx context.Context, creds chatdomain.SessionCredentials, calls []chatdomain.ToolCall) []chatdomain.ToolResult {
	results := make([]chatdomain.ToolResult, 0, len(calls))
	for _, call := range calls {
		d.logger.Info("executando ferramenta do modelo",
			zap.String("tool", call.Name), zap.String("contrato", creds.ContractID))

		payload := d.run(ctx, creds, call)

		outcome := "ok"
		if _, failed := payload["error"]; failed {
			outcome = "error"
		}
		d.metrics.IncrToolDispatch(call.Name, outcome)

		results = append(results, chatdomain.ToolResult{
			ID:      call.ID,
			Name:    call.Name,
			Payload: payload,
		})
	}
	return results
}

func (d *ToolDispatcher) run(ctx context.Context, creds chatdomain.SessionCredentials, call chatdomain.ToolCall) map[string]any {
	if creds.Password == "" {
		return errPayload("Senha não disponível para executar ações.")
	}

	switch call.Name {
	case chatdomain.ToolCheckInvoices:
		return d.checkInvoices(ctx, creds)
	case chatdomain.ToolCheckConnection:
		return d.checkConnection(ctx, creds)
	case chatdomain.ToolCheckTraffic:
		return d.checkTraffic(ctx, creds, call.Args)
	case chatdomain.ToolUnlockTrust:
		return d.unlockTrust(ctx, creds)
	case chatdomain.ToolOpenTicket:
		return d.openTicket(ctx, creds, call.Args)
	default:
		return errPayload("Ferramenta não implementada.")
	}
}

func (d *ToolDispatcher) checkInvoices(ctx context.Context, creds chatdomain.SessionCredentials) map[string]any {
	if creds.ContractID == "" {
		return errPayload("ID do contrato não identificado no contexto.")
	}

	invoices, err := d.gateway.ListInvoices(ctx, creds.CpfCnpj, creds.Password, creds.ContractID)
	if err != nil {
		return errPayload(err.Error())
	}

	// Só faturas em aberto e só os campos que o modelo precisa, para não
	// inflar o turno.
	open := make([]map[string]any, 0, len(invoices))
	for _, inv := range invoices {
		if inv.IsPaid() {
			continue
		}
		open = append(open, map[string]any{
			"vencimento":      inv.DueDate,
			"valor":           inv.Amount,
			"status":          inv.Status,
			"pix":             inv.PixCode,
			"linha_digitavel": inv.DigitableLine,
		})
	}
	if len(open) == 0 {
		return okPayload("Nenhuma fatura em aberto encontrada.")
	}
	return okPayload(open)
}

func (d *ToolDispatcher) checkConnection(ctx context.Context, creds chatdomain.SessionCredentials) map[string]any {
	sessions, err := d.gateway.ListConnectionSessions(ctx, creds.CpfCnpj, creds.Password, creds.ContractID)
	if err != nil {
		return errPayload(err.Error())
	}

	var conn *domain.ConnectionSession
	for i := range sessions {
		if sessions[i].Online {
			conn = &sessions[i]
			break
		}
	}
	if conn == nil && len(sessions) > 0 {
		conn = &sessions[0]
	}
	if conn == nil {
		return okPayload("Nenhuma conexão encontrada para este contrato.")
	}

	return okPayload(map[string]any{
		"online":         conn.Online,
		"ip":             conn.IP,
		"login":          conn.PPPoELogin,
		"inicio_sessao":  formatDateTime(conn.SessionStart),
		"consumo_sessao": "Down " + domain.BytesToGB(conn.OutputOctets),
	})
}

func (d *ToolDispatcher) checkTraffic(ctx context.Context, creds chatdomain.SessionCredentials, args map[string]any) map[string]any {
	now := d.now().In(saoPaulo)
	month := argInt(args, "mes", int(now.Month()))
	year := argInt(args, "ano", now.Year())

	extract, err := d.gateway.FetchTraffic(ctx, creds.CpfCnpj, creds.Password, creds.ContractID, month, year)
	if err != nil {
		return errPayload(err.Error())
	}
	if extract == nil {
		return okPayload("Extrato de uso indisponível para o período.")
	}
	return okPayload(map[string]any(extract))
}

func (d *ToolDispatcher) unlockTrust(ctx context.Context, creds chatdomain.SessionCredentials) map[string]any {
	verdict, err := d.gateway.RequestTrustUnlock(ctx, creds.CpfCnpj, creds.Password, creds.ContractID)
	if err != nil {
		return errPayload(err.Error())
	}
	return okPayload(map[string]any(verdict))
}

func (d *ToolDispatcher) openTicket(ctx context.Context, creds chatdomain.SessionCredentials, args map[string]any) map[string]any {
	ticket, err := d.gateway.OpenTicket(ctx,
		creds.CpfCnpj, creds.Password, creds.ContractID,
		argString(args, "conteudo"),
		argString(args, "contato"),
		argString(args, "contato_numero"),
		argString(args, "ocorrenciatipo"),
	)
	if err != nil {
		return errPayload(err.Error())
	}
	return okPayload(map[string]any(ticket))
}

func okPayload(result any) map[string]any {
	return map[string]any{"result": result}
}

func errPayload(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// argInt lê um argumento numérico do modelo (JSON entrega float64), caindo
// no default quando ausente ou zero.
func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v != 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			return n
		}
	}
	return fallback
}
