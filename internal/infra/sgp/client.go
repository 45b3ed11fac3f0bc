package sgp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/sgp")

// ============================================================
// CLIENTE SGP
// ============================================================
// A API central aceita multipart/form-data autenticado com cpfcnpj+senha do
// assinante; o WS Radius e a URA aceitam JSON autenticado com o par
// app/token do provedor. Um único circuit breaker cobre as três superfícies:
// quando o SGP cai, cai inteiro.

// Config carries the endpoints and service credentials for the SGP backend.
type Config struct {
	BaseURL    string
	RadiusURL  string
	URABaseURL string
	AppName    string
	AppToken   string

	HTTPTimeout time.Duration
	Resilience  resilience.Config
}

// Client implements port.SubscriberGateway against a live SGP installation.
type Client struct {
	httpClient *http.Client
	cfg        Config
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates an SGP client with circuit breaker and bulkhead applied
// to every outbound call.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		cb:         resilience.NewCircuitBreaker("sgp"),
		bulkhead:   resilience.NewBulkhead(cfg.Resilience.MaxConcurrency),
		logger:     logger,
	}
}

// ============================================================
// Transporte
// ============================================================

// postForm issues a multipart/form-data POST (API central) and decodes the
// JSON response into an untyped tree.
func (c *Client) postForm(ctx context.Context, url string, fields map[string]string) (any, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

// postJSON issues a JSON POST (WS Radius, URA).
func (c *Client) postJSON(ctx context.Context, url string, payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (any, error) {
	if err := c.bulkhead.Acquire(req.Context()); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sgp returned %s", resp.Status)
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return tree, nil
}

// callRead wraps a pure read in circuit breaker + retry.
func (c *Client) callRead(ctx context.Context, endpoint string, fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(func() (any, error) {
		var tree any
		retryErr := resilience.RetryWithBackoff(ctx, c.cfg.Resilience, func() error {
			var callErr error
			tree, callErr = fn()
			return callErr
		})
		return tree, retryErr
	})
	if err != nil {
		return nil, c.wrapErr(endpoint, err)
	}
	return result, nil
}

// callWrite wraps a side-effecting call in the circuit breaker only. Never
// retried: a promessa or a chamado must be issued at most once.
func (c *Client) callWrite(ctx context.Context, endpoint string, fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		return nil, c.wrapErr(endpoint, err)
	}
	return result, nil
}

func (c *Client) wrapErr(endpoint string, err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		c.logger.Warn("circuito sgp aberto", zap.String("endpoint", endpoint))
		return &domain.ErrCircuitOpen{Service: "sgp"}
	}
	return &domain.ErrExternalService{Service: "sgp/" + endpoint, Err: err}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ============================================================
// Operações
// ============================================================

// Authenticate resolves the subscriber's contracts via /contratos.
func (c *Client) Authenticate(ctx context.Context, cpfCnpj, password string) ([]domain.Contract, error) {
	ctx, span := tracer.Start(ctx, "sgp.Authenticate")
	defer span.End()

	tree, err := c.callRead(ctx, "contratos", func() (any, error) {
		return c.postForm(ctx, c.cfg.BaseURL+"/contratos", map[string]string{
			"cpfcnpj": cpfCnpj,
			"senha":   password,
		})
	})
	if err != nil {
		return nil, err
	}

	contracts, err := normalizeContracts(tree, cpfCnpj)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "CPF/CNPJ ou senha inválidos"}
	}

	span.SetAttributes(attribute.Int("contracts.count", len(contracts)))
	return contracts, nil
}

// ListInvoices returns the contract's faturas, newest first. Failures
// degrade to an empty list.
func (c *Client) ListInvoices(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "sgp.ListInvoices")
	defer span.End()

	if contractID == "" || contractID == "0" {
		return []domain.Invoice{}, nil
	}

	tree, err := c.callRead(ctx, "titulos", func() (any, error) {
		return c.postForm(ctx, c.cfg.BaseURL+"/titulos/", map[string]string{
			"cpfcnpj":  cpfCnpj,
			"senha":    password,
			"contrato": contractID,
		})
	})
	if err != nil {
		c.logger.Warn("busca de faturas falhou, seguindo sem elas",
			zap.String("contrato", contractID), zap.Error(err))
		return []domain.Invoice{}, nil
	}

	return normalizeInvoices(tree), nil
}

// ListFiscalInvoices returns notas fiscais via the static app/token
// credentials.
func (c *Client) ListFiscalInvoices(ctx context.Context, contractID string) ([]domain.FiscalInvoice, error) {
	ctx, span := tracer.Start(ctx, "sgp.ListFiscalInvoices")
	defer span.End()

	tree, err := c.callRead(ctx, "notafiscal", func() (any, error) {
		return c.postForm(ctx, c.cfg.BaseURL+"/notafiscal/list/", map[string]string{
			"app":      c.cfg.AppName,
			"token":    c.cfg.AppToken,
			"contrato": contractID,
		})
	})
	if err != nil {
		return nil, err
	}

	return normalizeFiscalInvoices(tree), nil
}

// FetchTraffic returns the usage extract for month/year, or nil on any
// failure. The month travels zero-padded ("03", not "3").
func (c *Client) FetchTraffic(ctx context.Context, cpfCnpj, password, contractID string, month, year int) (domain.TrafficExtract, error) {
	ctx, span := tracer.Start(ctx, "sgp.FetchTraffic")
	defer span.End()

	tree, err := c.callRead(ctx, "extratouso", func() (any, error) {
		return c.postForm(ctx, c.cfg.BaseURL+"/extratouso/", map[string]string{
			"cpfcnpj":  cpfCnpj,
			"senha":    password,
			"contrato": contractID,
			"mes":      fmt.Sprintf("%02d", month),
			"ano":      fmt.Sprintf("%d", year),
		})
	})
	if err != nil {
		c.logger.Warn("extrato de uso indisponível", zap.String("contrato", contractID), zap.Error(err))
		return nil, nil
	}

	return normalizeTraffic(tree), nil
}

// ListConnectionSessions queries the WS Radius radacct list for every
// service of the subscriber.
func (c *Client) ListConnectionSessions(ctx context.Context, cpfCnpj, password, contractID string) ([]domain.ConnectionSession, error) {
	ctx, span := tracer.Start(ctx, "sgp.ListConnectionSessions")
	defer span.End()

	tree, err := c.callRead(ctx, "radius", func() (any, error) {
		return c.postJSON(ctx, c.cfg.RadiusURL, map[string]any{
			"app":         c.cfg.AppName,
			"token":       c.cfg.AppToken,
			"cpfcnpj":     digitsOnly(cpfCnpj),
			"tipoconexao": "ppp",
		})
	})
	if err != nil {
		return nil, err
	}

	return normalizeConnectionSessions(tree), nil
}

// RequestTrustUnlock asks for a promessa de pagamento. Issued exactly once;
// the application verdict comes back untouched.
func (c *Client) RequestTrustUnlock(ctx context.Context, cpfCnpj, password, contractID string) (domain.UnlockResult, error) {
	ctx, span := tracer.Start(ctx, "sgp.RequestTrustUnlock")
	defer span.End()

	tree, err := c.callWrite(ctx, "promessapagamento", func() (any, error) {
		return c.postForm(ctx, c.cfg.BaseURL+"/promessapagamento/", map[string]string{
			"cpfcnpj":  cpfCnpj,
			"senha":    password,
			"contrato": contractID,
		})
	})
	if err != nil {
		return nil, err
	}

	result := asMap(tree)
	if result == nil {
		result = map[string]any{}
	}
	return domain.UnlockResult(result), nil
}

// OpenTicket opens a chamado na URA. Issued exactly once.
func (c *Client) OpenTicket(ctx context.Context, cpfCnpj, password, contractID, description, contactName, contactPhone, categoryID string) (domain.TicketResult, error) {
	ctx, span := tracer.Start(ctx, "sgp.OpenTicket")
	defer span.End()

	tree, err := c.callWrite(ctx, "chamado", func() (any, error) {
		return c.postJSON(ctx, c.cfg.URABaseURL+"/chamado/", map[string]any{
			"app":               c.cfg.AppName,
			"token":             c.cfg.AppToken,
			"contrato":          contractID,
			"ocorrenciatipo":    categoryID,
			"conteudo":          description,
			"observacao":        fmt.Sprintf("Contato: %s | Tel: %s", contactName, contactPhone),
			"notificar_cliente": 1,
		})
	})
	if err != nil {
		return nil, err
	}

	result := asMap(tree)
	if result == nil {
		result = map[string]any{}
	}
	return domain.TicketResult(result), nil
}
