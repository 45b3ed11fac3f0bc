package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chathandler "github.com/citmax/central-assinante-go/internal/chat/handler"
	chatport "github.com/citmax/central-assinante-go/internal/chat/port"
	chatservice "github.com/citmax/central-assinante-go/internal/chat/service"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/handler"
	"github.com/citmax/central-assinante-go/internal/infra/cache"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/infra/resilience"
	"github.com/citmax/central-assinante-go/internal/infra/sgp"
	"github.com/citmax/central-assinante-go/internal/service"
)

// fakeSGP emulates the three SGP surfaces the portal talks to.
func fakeSGP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/contratos", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "expected multipart", http.StatusBadRequest)
			return
		}
		if r.FormValue("senha") != "s3nha" {
			json.NewEncoder(w).Encode(map[string]any{"contratos": []any{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contratos": []map[string]any{{
				"contrato":            "1051",
				"razaosocial":         "Empresa Exemplo LTDA",
				"planointernet":       "Fibra 500MB",
				"planointernet_valor": "129.90",
				"status":              "Ativo",
				"endereco_instalacao": map[string]any{"logradouro": "Rua das Flores", "numero": "120"},
			}},
		})
	})

	mux.HandleFunc("/titulos/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"titulos": []map[string]any{
				{"id": "f1", "vencimento": "2024-03-10", "valor": 129.90, "status": "Aberto", "codigopix": "pix-abc"},
				{"id": "f2", "vencimento": "2024-02-10", "valor": 129.90, "status": "Pago", "data_pagamento": "2024-02-09"},
			},
		})
	})

	mux.HandleFunc("/notafiscal/list/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data": []map[string]any{
				{"numero": "100", "serie": "1", "data_emissao": "2024-02-15", "valortotal": 129.90},
			},
		})
	})

	mux.HandleFunc("/radius", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["cpfcnpj"] != "12345678900" {
			http.Error(w, "expected digits-only cpfcnpj", http.StatusBadRequest)
			return
		}
		if body["tipoconexao"] != "ppp" {
			http.Error(w, "expected tipoconexao ppp", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{{
				"pppoe_login":         "empresa@citmax",
				"online":              true,
				"ip":                  "100.64.0.9",
				"plano":               "Fibra 500MB",
				"endereco_logradouro": "Rua das Flores",
				"radacct": []map[string]any{{
					"acctsessionid":    "live",
					"acctstarttime":    "2024-03-02 08:00:00",
					"acctinputoctets":  536870912,
					"acctoutputoctets": 1073741824,
				}},
			}},
		})
	})

	return httptest.NewServer(mux)
}

// scriptedModel drives the two-round tool loop without a real Gemini
// backend.
type scriptedModel struct {
	system string
}

func (m *scriptedModel) Available() bool { return true }

func (m *scriptedModel) StartConversation(ctx context.Context, systemContext string) (chatport.ModelConversation, error) {
	m.system = systemContext
	return &scriptedConversation{}, nil
}

type scriptedConversation struct {
	turns int
}

func (c *scriptedConversation) Send(ctx context.Context, text string) (chatport.ModelReply, error) {
	c.turns++
	return chatport.ModelReply{
		ToolCalls: []chatdomain.ToolCall{{ID: "call-1", Name: chatdomain.ToolCheckInvoices}},
	}, nil
}

func (c *scriptedConversation) SendToolResults(ctx context.Context, results []chatdomain.ToolResult) (chatport.ModelReply, error) {
	if _, failed := results[0].Payload["error"]; failed {
		return chatport.ModelReply{Text: "Não consegui consultar suas faturas."}, nil
	}
	return chatport.ModelReply{Text: "Você tem 1 fatura em aberto, vencida em 10/03/2024."}, nil
}

func newStack(t *testing.T, sgpURL string, model chatport.ChatModel) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	gateway := sgp.NewClient(sgp.Config{
		BaseURL:     sgpURL,
		RadiusURL:   sgpURL + "/radius",
		URABaseURL:  sgpURL + "/api/ura",
		AppName:     "central",
		AppToken:    "token-teste",
		HTTPTimeout: 2 * time.Second,
		Resilience: resilience.Config{
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxConcurrency: 4,
		},
	}, logger)

	sessions := service.NewSessionManager("segredo-integ", "selo-integ", time.Hour)
	portal := service.NewPortalService(gateway, sessions, cache.New[[]domain.Contract](time.Minute), metrics, logger)

	dispatcher := chatservice.NewToolDispatcher(gateway, metrics, logger)
	builder := chatservice.NewContextBuilder(gateway, logger)
	store := cache.New[*chatservice.Orchestrator](time.Minute)
	chat := chathandler.New(portal, store, func() *chatservice.Orchestrator {
		return chatservice.NewOrchestrator(model, dispatcher, builder, metrics, logger)
	}, handler.SessionFromContext, logger)

	return handler.NewRouter(portal, sessions, chat, metrics, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestIntegration_FullFlow exercises login, dashboard and a complete chat
// turn with tool dispatch against a fake SGP.
func TestIntegration_FullFlow(t *testing.T) {
	sgpServer := fakeSGP(t)
	defer sgpServer.Close()

	model := &scriptedModel{}
	router := newStack(t, sgpServer.URL, model)

	// --- Login ---
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"cpfcnpj": "123.456.789-00", "senha": "s3nha"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token    string `json:"token"`
		Contract struct {
			ID   string `json:"id_contrato"`
			Plan string `json:"plano"`
		} `json:"contrato"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if loginResp.Contract.ID != "1051" || loginResp.Contract.Plan != "Fibra 500MB" {
		t.Fatalf("unexpected contract %+v", loginResp.Contract)
	}

	// --- Dashboard fan-out ---
	rec = doJSON(t, router, http.MethodGet, "/v1/dashboard", loginResp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, body %s", rec.Code, rec.Body.String())
	}
	var summary struct {
		Invoices []struct {
			ID string `json:"id"`
		} `json:"faturas"`
		Fiscal []struct {
			Number string `json:"numero"`
		} `json:"notas_fiscais"`
		Connection *struct {
			Online bool   `json:"online"`
			IP     string `json:"ip"`
		} `json:"conexao"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if len(summary.Invoices) != 2 || summary.Invoices[0].ID != "f1" {
		t.Errorf("unexpected invoices %+v", summary.Invoices)
	}
	if len(summary.Fiscal) != 1 {
		t.Errorf("unexpected fiscal invoices %+v", summary.Fiscal)
	}
	if summary.Connection == nil || !summary.Connection.Online || summary.Connection.IP != "100.64.0.9" {
		t.Errorf("unexpected connection %+v", summary.Connection)
	}

	// --- Chat open ---
	rec = doJSON(t, router, http.MethodPost, "/v1/chat/open", loginResp.Token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("chat open status = %d, body %s", rec.Code, rec.Body.String())
	}
	var opened struct {
		ConversationID string `json:"conversation_id"`
		Greeting       struct {
			Text string `json:"text"`
		} `json:"greeting"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	if opened.Greeting.Text == "" || opened.ConversationID == "" {
		t.Fatalf("unexpected open response %+v", opened)
	}

	// O contexto em tempo real foi montado no open.
	if !bytes.Contains([]byte(model.system), []byte("Empresa Exemplo LTDA")) {
		t.Error("system instruction missing customer data")
	}
	if !bytes.Contains([]byte(model.system), []byte("=== DIAGNÓSTICO TÉCNICO ===")) {
		t.Error("system instruction missing technical section")
	}

	// --- Chat turn with tool dispatch ---
	rec = doJSON(t, router, http.MethodPost, "/v1/chat/"+opened.ConversationID+"/message",
		loginResp.Token, map[string]string{"text": "tenho contas atrasadas?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("message status = %d, body %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		Text string `json:"text"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Text != "Você tem 1 fatura em aberto, vencida em 10/03/2024." {
		t.Errorf("unexpected reply %q", reply.Text)
	}

	// --- Close ---
	rec = doJSON(t, router, http.MethodDelete, "/v1/chat/"+opened.ConversationID, loginResp.Token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/chat/"+opened.ConversationID+"/message",
		loginResp.Token, map[string]string{"text": "oi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rec.Code)
	}
}

// TestIntegration_InvalidCredentials covers the zero-contract login path.
func TestIntegration_InvalidCredentials(t *testing.T) {
	sgpServer := fakeSGP(t)
	defer sgpServer.Close()

	router := newStack(t, sgpServer.URL, &scriptedModel{})

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"cpfcnpj": "12345678900", "senha": "errada"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}
