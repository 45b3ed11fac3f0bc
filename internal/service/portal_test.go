package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/cache"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/service"
)

type mockGateway struct {
	contracts    []domain.Contract
	authErr      error
	authCalls    int
	invoices     []domain.Invoice
	fiscal       []domain.FiscalInvoice
	fiscalErr    error
	sessions     []domain.ConnectionSession
	sessionsErr  error
	traffic      domain.TrafficExtract
	trafficMonth int
	trafficYear  int
	unlockResult domain.UnlockResult
	ticketResult domain.TicketResult
	ticketErr    error
	lastTicket   []string
}

func (m *mockGateway) Authenticate(ctx context.Context, cpfCnpj, password string) ([]domain.Contract, error) {
	m.authCalls++
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.contracts, nil
}

func (m *mockGateway) ListInvoices(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.Invoice, error) {
	return m.invoices, nil
}

func (m *mockGateway) ListFiscalInvoices(ctx context.Context, contractID string) ([]domain.FiscalInvoice, error) {
	if m.fiscalErr != nil {
		return nil, m.fiscalErr
	}
	return m.fiscal, nil
}

func (m *mockGateway) FetchTraffic(ctx context.Context, cpfCnpj, password, contractID string, month, year int) (domain.TrafficExtract, error) {
	m.trafficMonth = month
	m.trafficYear = year
	return m.traffic, nil
}

func (m *mockGateway) ListConnectionSessions(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.ConnectionSession, error) {
	if m.sessionsErr != nil {
		return nil, m.sessionsErr
	}
	return m.sessions, nil
}

func (m *mockGateway) RequestTrustUnlock(ctx context.Context, cpfCnpj, password, contractID string) (domain.UnlockResult, error) {
	return m.unlockResult, nil
}

func (m *mockGateway) OpenTicket(ctx context.Context, cpfCnpj, password, contractID, description, contactName, contactPhone, categoryID string) (domain.TicketResult, error) {
	m.lastTicket = []string{description, contactName, contactPhone, categoryID}
	if m.ticketErr != nil {
		return nil, m.ticketErr
	}
	return m.ticketResult, nil
}

var portalContracts = []domain.Contract{
	{ID: "1051", Name: "Empresa Exemplo LTDA", Plan: "Fibra 500MB", Street: "Rua das Flores"},
	{ID: "1052", Name: "Empresa Exemplo LTDA", Plan: "Turbo 300", Street: "Avenida Central"},
}

func newPortal(gw *mockGateway) (*service.PortalService, *service.SessionManager) {
	sessions := service.NewSessionManager("segredo-de-teste", "selo", time.Hour)
	portal := service.NewPortalService(
		gw,
		sessions,
		cache.New[[]domain.Contract](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return portal, sessions
}

func portalSession() service.Session {
	return service.Session{
		CpfCnpj:    "12345678900",
		Password:   "s3nha",
		ContractID: "1051",
		Name:       "Empresa Exemplo LTDA",
	}
}

func TestLogin_IssuesTokenForFirstContract(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts}
	portal, sessions := newPortal(gw)

	result, err := portal.Login(context.Background(), "12345678900", "s3nha")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Contract.ID != "1051" || len(result.Contracts) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	sess, err := sessions.Verify(result.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if sess.ContractID != "1051" || sess.Password != "s3nha" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestLogin_RequiresCredentials(t *testing.T) {
	portal, _ := newPortal(&mockGateway{contracts: portalContracts})

	if _, err := portal.Login(context.Background(), "", "x"); err == nil {
		t.Fatal("expected validation error for missing cpfcnpj")
	}

	var validation *domain.ErrValidation
	_, err := portal.Login(context.Background(), "123", "")
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLogin_PropagatesAuthFailure(t *testing.T) {
	gw := &mockGateway{authErr: &domain.ErrUnauthorized{Message: "credenciais inválidas"}}
	portal, _ := newPortal(gw)

	var unauthorized *domain.ErrUnauthorized
	_, err := portal.Login(context.Background(), "123", "errada")
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSelectContract_SwitchesBinding(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts}
	portal, sessions := newPortal(gw)

	result, err := portal.SelectContract(context.Background(), portalSession(), "1052")
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	sess, err := sessions.Verify(result.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.ContractID != "1052" {
		t.Errorf("expected rebound session, got %+v", sess)
	}
}

func TestSelectContract_UnknownContract(t *testing.T) {
	portal, _ := newPortal(&mockGateway{contracts: portalContracts})

	var notFound *domain.ErrNotFound
	_, err := portal.SelectContract(context.Background(), portalSession(), "9999")
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSelectContract_UsesContractCache(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts}
	portal, _ := newPortal(gw)

	if _, err := portal.Login(context.Background(), "12345678900", "s3nha"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := portal.SelectContract(context.Background(), portalSession(), "1052"); err != nil {
		t.Fatalf("select: %v", err)
	}

	// Login fez a única chamada; a seleção veio do cache.
	if gw.authCalls != 1 {
		t.Errorf("expected 1 Authenticate call, got %d", gw.authCalls)
	}
}

func TestConnection_MatchesSessionContract(t *testing.T) {
	gw := &mockGateway{
		contracts: portalContracts,
		sessions: []domain.ConnectionSession{
			{PPPoELogin: "a", PlanHint: "Turbo 300", Online: true},
			{PPPoELogin: "b", PlanHint: "Fibra 500MB"},
		},
	}
	portal, _ := newPortal(gw)

	conn, err := portal.Connection(context.Background(), portalSession())
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	if conn == nil || conn.PPPoELogin != "b" {
		t.Fatalf("expected plan-matched session, got %+v", conn)
	}
}

func TestConnection_NoSessions(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts}
	portal, _ := newPortal(gw)

	conn, err := portal.Connection(context.Background(), portalSession())
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	if conn != nil {
		t.Fatalf("expected nil for empty radius list, got %+v", conn)
	}
}

func TestTraffic_DefaultsToCurrentPeriod(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts, traffic: domain.TrafficExtract{"consumo": 1}}
	portal, _ := newPortal(gw)

	if _, err := portal.Traffic(context.Background(), portalSession(), 0, 0); err != nil {
		t.Fatalf("traffic: %v", err)
	}

	now := time.Now()
	if gw.trafficMonth != int(now.Month()) || gw.trafficYear != now.Year() {
		t.Errorf("expected current period, got %d/%d", gw.trafficMonth, gw.trafficYear)
	}
}

func TestOpenTicket_Validation(t *testing.T) {
	portal, _ := newPortal(&mockGateway{contracts: portalContracts})

	var validation *domain.ErrValidation
	_, err := portal.OpenTicket(context.Background(), portalSession(), service.TicketRequest{CategoryID: "200"})
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for empty description, got %v", err)
	}

	_, err = portal.OpenTicket(context.Background(), portalSession(), service.TicketRequest{Description: "Sem internet"})
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for empty category, got %v", err)
	}
}

func TestOpenTicket_ForwardsFields(t *testing.T) {
	gw := &mockGateway{contracts: portalContracts, ticketResult: domain.TicketResult{"protocolo": "1"}}
	portal, _ := newPortal(gw)

	_, err := portal.OpenTicket(context.Background(), portalSession(), service.TicketRequest{
		Description:  "Sem internet desde ontem",
		ContactName:  "Maria",
		ContactPhone: "84999990000",
		CategoryID:   "200",
	})
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}

	want := []string{"Sem internet desde ontem", "Maria", "84999990000", "200"}
	for i, v := range want {
		if gw.lastTicket[i] != v {
			t.Errorf("ticket field %d = %q, want %q", i, gw.lastTicket[i], v)
		}
	}
}

func TestDashboard_AggregatesAndDegrades(t *testing.T) {
	gw := &mockGateway{
		contracts: portalContracts,
		invoices:  []domain.Invoice{{ID: "1", DueDate: "2024-03-10"}},
		fiscalErr: errors.New("notafiscal fora do ar"),
		sessions:  []domain.ConnectionSession{{PPPoELogin: "b", PlanHint: "Fibra 500MB", Online: true}},
	}
	portal, _ := newPortal(gw)

	summary, err := portal.Dashboard(context.Background(), portalSession())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.Contract.ID != "1051" {
		t.Errorf("unexpected contract %+v", summary.Contract)
	}
	if len(summary.Invoices) != 1 {
		t.Errorf("expected invoices, got %+v", summary.Invoices)
	}
	if summary.FiscalInvoices != nil {
		t.Errorf("fiscal failure must degrade to empty, got %+v", summary.FiscalInvoices)
	}
	if summary.Connection == nil || summary.Connection.PPPoELogin != "b" {
		t.Errorf("expected matched connection, got %+v", summary.Connection)
	}
}
