// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/citmax/central-assinante-go/internal/domain"
)

// SubscriberGateway is the SGP provisioning backend as seen by the portal:
// the five read operations plus the two side-effecting ones.
//
// Todas as chamadas são I/O de rede. Somente as leituras puras podem ser
// repetidas automaticamente; RequestTrustUnlock e OpenTicket têm efeito
// colateral e NUNCA devem passar por retry.
type SubscriberGateway interface {
	// Authenticate resolves the subscriber's contracts. Fails with
	// *domain.ErrUnauthorized when zero contracts resolve.
	Authenticate(ctx context.Context, cpfCnpj, password string) ([]domain.Contract, error)

	// ListInvoices returns the contract's faturas, newest due date first.
	// An absent/zero contractID or a failed call yields an empty list, not
	// an error — missing invoices must never block the rest of the portal.
	ListInvoices(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.Invoice, error)

	// ListFiscalInvoices returns notas fiscais using the static app/token
	// service credentials, not the subscriber's password.
	ListFiscalInvoices(ctx context.Context, contractID string) ([]domain.FiscalInvoice, error)

	// FetchTraffic returns the usage extract for the given month/year, or
	// nil on any failure or non-200 application status.
	FetchTraffic(ctx context.Context, cpfCnpj, password, contractID string, month, year int) (domain.TrafficExtract, error)

	// ListConnectionSessions returns every PPPoE session known for the
	// subscriber. password/contractID are accepted for symmetry with the
	// matcher, but the radius call keys only on the digits of the cpfcnpj.
	// Raises on transport failure — callers must catch.
	ListConnectionSessions(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.ConnectionSession, error)

	// RequestTrustUnlock asks for a promessa de pagamento. Side-effecting;
	// the SGP verdict is returned untouched.
	RequestTrustUnlock(ctx context.Context, cpfCnpj, password, contractID string) (domain.UnlockResult, error)

	// OpenTicket opens a chamado with an observation note embedding the
	// contact name and phone. Side-effecting.
	OpenTicket(ctx context.Context, cpfCnpj, password, contractID, description, contactName, contactPhone, categoryID string) (domain.TicketResult, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
