// Package service implementa os casos de uso do portal do assinante sobre o
// gateway SGP: login com seleção de contrato, faturas, notas fiscais,
// extrato de uso, diagnóstico de conexão, desbloqueio de confiança e
// abertura de chamado.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chatservice "github.com/citmax/central-assinante-go/internal/chat/service"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/port"
)

var tracer = otel.Tracer("service/portal")

// PortalService orchestrates the portal use cases.
type PortalService struct {
	gateway       port.SubscriberGateway
	sessions      *SessionManager
	contractCache port.Cache[[]domain.Contract]
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewPortalService wires the portal use cases.
func NewPortalService(
	gateway port.SubscriberGateway,
	sessions *SessionManager,
	contractCache port.Cache[[]domain.Contract],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PortalService {
	return &PortalService{
		gateway:       gateway,
		sessions:      sessions,
		contractCache: contractCache,
		metrics:       metrics,
		logger:        logger,
	}
}

// LoginResult is the outcome of a successful login: every contract of the
// subscriber plus a token already bound to the selected one.
type LoginResult struct {
	Token     string            `json:"token"`
	Contract  domain.Contract   `json:"contrato"`
	Contracts []domain.Contract `json:"contratos"`
}

// Login authenticates against SGP and issues a session for the first
// contract. Other contracts are listed so the client can switch via
// SelectContract.
func (s *PortalService) Login(ctx context.Context, cpfCnpj, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "portal.Login")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("login", time.Since(start)) }()

	if cpfCnpj == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "cpfcnpj", Message: "cpfcnpj e senha são obrigatórios"}
	}

	contracts, err := s.gateway.Authenticate(ctx, cpfCnpj, password)
	if err != nil {
		s.metrics.IncrSGPError("contratos")
		return nil, err
	}
	s.contractCache.Set("contracts:"+cpfCnpj, contracts)

	selected := contracts[0]
	token, err := s.sessions.Issue(Session{
		CpfCnpj:    cpfCnpj,
		Password:   password,
		ContractID: selected.ID,
		Name:       selected.Name,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("login efetuado",
		zap.String("contrato", selected.ID),
		zap.Int("contratos", len(contracts)))

	return &LoginResult{Token: token, Contract: selected, Contracts: contracts}, nil
}

// SelectContract issues a new token bound to another contract of the same
// subscriber.
func (s *PortalService) SelectContract(ctx context.Context, sess Session, contractID string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "portal.SelectContract")
	defer span.End()

	contracts, err := s.contracts(ctx, sess)
	if err != nil {
		return nil, err
	}

	for _, c := range contracts {
		if c.ID == contractID {
			token, err := s.sessions.Issue(Session{
				CpfCnpj:    sess.CpfCnpj,
				Password:   sess.Password,
				ContractID: c.ID,
				Name:       c.Name,
			})
			if err != nil {
				return nil, err
			}
			return &LoginResult{Token: token, Contract: c, Contracts: contracts}, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "contrato", ID: contractID}
}

// Invoices lists the session contract's faturas.
func (s *PortalService) Invoices(ctx context.Context, sess Session) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "portal.Invoices")
	defer span.End()

	return s.gateway.ListInvoices(ctx, sess.CpfCnpj, sess.Password, sess.ContractID)
}

// FiscalInvoices lists the session contract's notas fiscais.
func (s *PortalService) FiscalInvoices(ctx context.Context, sess Session) ([]domain.FiscalInvoice, error) {
	ctx, span := tracer.Start(ctx, "portal.FiscalInvoices")
	defer span.End()

	notes, err := s.gateway.ListFiscalInvoices(ctx, sess.ContractID)
	if err != nil {
		s.metrics.IncrSGPError("notafiscal")
		return nil, err
	}
	return notes, nil
}

// Traffic returns the usage extract for a month/year, defaulting to the
// current one. A nil extract means SGP had nothing for the period.
func (s *PortalService) Traffic(ctx context.Context, sess Session, month, year int) (domain.TrafficExtract, error) {
	ctx, span := tracer.Start(ctx, "portal.Traffic")
	defer span.End()

	now := time.Now()
	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}

	return s.gateway.FetchTraffic(ctx, sess.CpfCnpj, sess.Password, sess.ContractID, month, year)
}

// Connection returns the radius session matched to the session contract,
// or nil when the subscriber has no service visible on the radius.
func (s *PortalService) Connection(ctx context.Context, sess Session) (*domain.ConnectionSession, error) {
	ctx, span := tracer.Start(ctx, "portal.Connection")
	defer span.End()

	sessions, err := s.gateway.ListConnectionSessions(ctx, sess.CpfCnpj, sess.Password, sess.ContractID)
	if err != nil {
		s.metrics.IncrSGPError("radius")
		return nil, err
	}

	contract, err := s.sessionContract(ctx, sess)
	if err != nil {
		return nil, err
	}

	return chatservice.MatchConnection(sessions, contract), nil
}

// Unlock requests a promessa de pagamento for the session contract.
func (s *PortalService) Unlock(ctx context.Context, sess Session) (domain.UnlockResult, error) {
	ctx, span := tracer.Start(ctx, "portal.Unlock")
	defer span.End()

	verdict, err := s.gateway.RequestTrustUnlock(ctx, sess.CpfCnpj, sess.Password, sess.ContractID)
	if err != nil {
		s.metrics.IncrSGPError("promessapagamento")
		return nil, err
	}
	s.logger.Info("desbloqueio de confiança solicitado", zap.String("contrato", sess.ContractID))
	return verdict, nil
}

// TicketRequest is the payload for opening a support ticket.
type TicketRequest struct {
	Description  string `json:"conteudo"`
	ContactName  string `json:"contato"`
	ContactPhone string `json:"contato_numero"`
	CategoryID   string `json:"ocorrenciatipo"`
}

// OpenTicket opens a chamado for the session contract.
func (s *PortalService) OpenTicket(ctx context.Context, sess Session, req TicketRequest) (domain.TicketResult, error) {
	ctx, span := tracer.Start(ctx, "portal.OpenTicket")
	defer span.End()

	if req.Description == "" {
		return nil, &domain.ErrValidation{Field: "conteudo", Message: "descrição do chamado é obrigatória"}
	}
	if req.CategoryID == "" {
		return nil, &domain.ErrValidation{Field: "ocorrenciatipo", Message: "tipo de ocorrência é obrigatório"}
	}

	ticket, err := s.gateway.OpenTicket(ctx,
		sess.CpfCnpj, sess.Password, sess.ContractID,
		req.Description, req.ContactName, req.ContactPhone, req.CategoryID)
	if err != nil {
		s.metrics.IncrSGPError("chamado")
		return nil, err
	}
	s.logger.Info("chamado aberto",
		zap.String("contrato", sess.ContractID),
		zap.String("ocorrenciatipo", req.CategoryID))
	return ticket, nil
}

// DashboardSummary aggregates the landing-page data in one response.
type DashboardSummary struct {
	Contract       domain.Contract           `json:"contrato"`
	Invoices       []domain.Invoice          `json:"faturas"`
	FiscalInvoices []domain.FiscalInvoice    `json:"notas_fiscais"`
	Connection     *domain.ConnectionSession `json:"conexao"`
}

// Dashboard fans out the three independent lookups concurrently. The
// invoice and radius branches inherit their own degradation rules from the
// gateway; only the contract resolution is fatal.
func (s *PortalService) Dashboard(ctx context.Context, sess Session) (*DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "portal.Dashboard")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("dashboard", time.Since(start)) }()

	contract, err := s.sessionContract(ctx, sess)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{Contract: contract}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invoices, err := s.gateway.ListInvoices(gctx, sess.CpfCnpj, sess.Password, sess.ContractID)
		if err != nil {
			return err
		}
		summary.Invoices = invoices
		return nil
	})
	g.Go(func() error {
		// Notas fiscais são secundárias no painel: falha vira lista vazia.
		notes, err := s.gateway.ListFiscalInvoices(gctx, sess.ContractID)
		if err != nil {
			s.logger.Warn("notas fiscais indisponíveis no painel", zap.Error(err))
			return nil
		}
		summary.FiscalInvoices = notes
		return nil
	})
	g.Go(func() error {
		sessions, err := s.gateway.ListConnectionSessions(gctx, sess.CpfCnpj, sess.Password, sess.ContractID)
		if err != nil {
			s.logger.Warn("diagnóstico de conexão indisponível no painel", zap.Error(err))
			return nil
		}
		summary.Connection = chatservice.MatchConnection(sessions, contract)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// Contract resolves the contract the session is bound to. Used by the chat
// layer to seed the conversation context.
func (s *PortalService) Contract(ctx context.Context, sess Session) (domain.Contract, error) {
	return s.sessionContract(ctx, sess)
}

// contracts resolves the subscriber's contract list, hitting the cache
// first and SGP on miss.
func (s *PortalService) contracts(ctx context.Context, sess Session) ([]domain.Contract, error) {
	key := "contracts:" + sess.CpfCnpj
	if cached, ok := s.contractCache.Get(key); ok {
		s.metrics.IncrCacheHit("contracts")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("contracts")

	contracts, err := s.gateway.Authenticate(ctx, sess.CpfCnpj, sess.Password)
	if err != nil {
		return nil, err
	}
	s.contractCache.Set(key, contracts)
	return contracts, nil
}

// sessionContract resolves the contract the session is bound to.
func (s *PortalService) sessionContract(ctx context.Context, sess Session) (domain.Contract, error) {
	contracts, err := s.contracts(ctx, sess)
	if err != nil {
		return domain.Contract{}, err
	}
	for _, c := range contracts {
		if c.ID == sess.ContractID {
			return c, nil
		}
	}
	return domain.Contract{}, &domain.ErrNotFound{Resource: "contrato", ID: sess.ContractID}
}
