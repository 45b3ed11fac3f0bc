package service_test

import (
	"context"
	"errors"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chatport "github.com/citmax/central-assinante-go/internal/chat/port"
	"github.com/citmax/central-assinante-go/internal/domain"
)

// fakeGateway is a hand-rolled SubscriberGateway for chat tests.
type fakeGateway struct {
	invoices    []domain.Invoice
	invoicesErr error

	sessions    []domain.ConnectionSession
	sessionsErr error

	traffic domain.TrafficExtract

	unlockResult domain.UnlockResult
	unlockErr    error

	ticketResult domain.TicketResult
	ticketErr    error

	invoiceCalls int
	sessionCalls int
	trafficCalls int
	unlockCalls  int
	ticketCalls  int

	lastTicketCategory string
	lastTrafficMonth   int
	lastTrafficYear    int
}

func (f *fakeGateway) Authenticate(ctx context.Context, cpfCnpj, password string) ([]domain.Contract, error) {
	return nil, errors.New("not used in chat tests")
}

func (f *fakeGateway) ListInvoices(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.Invoice, error) {
	f.invoiceCalls++
	if f.invoicesErr != nil {
		return nil, f.invoicesErr
	}
	return f.invoices, nil
}

func (f *fakeGateway) ListFiscalInvoices(ctx context.Context, contractID string) ([]domain.FiscalInvoice, error) {
	return nil, nil
}

func (f *fakeGateway) FetchTraffic(ctx context.Context, cpfCnpj, password, contractID string, month, year int) (domain.TrafficExtract, error) {
	f.trafficCalls++
	f.lastTrafficMonth = month
	f.lastTrafficYear = year
	return f.traffic, nil
}

func (f *fakeGateway) ListConnectionSessions(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.ConnectionSession, error) {
	f.sessionCalls++
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	return f.sessions, nil
}

func (f *fakeGateway) RequestTrustUnlock(ctx context.Context, cpfCnpj, password, contractID string) (domain.UnlockResult, error) {
	f.unlockCalls++
	if f.unlockErr != nil {
		return nil, f.unlockErr
	}
	return f.unlockResult, nil
}

func (f *fakeGateway) OpenTicket(ctx context.Context, cpfCnpj, password, contractID, description, contactName, contactPhone, categoryID string) (domain.TicketResult, error) {
	f.ticketCalls++
	f.lastTicketCategory = categoryID
	if f.ticketErr != nil {
		return nil, f.ticketErr
	}
	return f.ticketResult, nil
}

// fakeModel scripts the model side of a conversation: each Send pops the
// next reply, each SendToolResults the next follow-up.
type fakeModel struct {
	available  bool
	startErr   error
	sendErr    error
	replies    []chatport.ModelReply
	followUps  []chatport.ModelReply
	lastSystem string

	conv *fakeConversation
}

func (m *fakeModel) Available() bool { return m.available }

func (m *fakeModel) StartConversation(ctx context.Context, systemContext string) (chatport.ModelConversation, error) {
	m.lastSystem = systemContext
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.conv = &fakeConversation{model: m}
	return m.conv, nil
}

type fakeConversation struct {
	model       *fakeModel
	sendCalls   int
	resultCalls int
	sentTexts   []string
	sentResults [][]chatdomain.ToolResult
}

func (c *fakeConversation) Send(ctx context.Context, text string) (chatport.ModelReply, error) {
	c.sendCalls++
	c.sentTexts = append(c.sentTexts, text)
	if c.model.sendErr != nil {
		return chatport.ModelReply{}, c.model.sendErr
	}
	if len(c.model.replies) == 0 {
		return chatport.ModelReply{Text: "ok"}, nil
	}
	reply := c.model.replies[0]
	c.model.replies = c.model.replies[1:]
	return reply, nil
}

func (c *fakeConversation) SendToolResults(ctx context.Context, results []chatdomain.ToolResult) (chatport.ModelReply, error) {
	c.resultCalls++
	c.sentResults = append(c.sentResults, results)
	if len(c.model.followUps) == 0 {
		return chatport.ModelReply{Text: "feito"}, nil
	}
	reply := c.model.followUps[0]
	c.model.followUps = c.model.followUps[1:]
	return reply, nil
}
