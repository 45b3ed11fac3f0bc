// Package gemini adapta o SDK google.golang.org/genai à porta de modelo do
// chat. É o único pacote que conhece o wire format do Gemini; o orquestrador
// enxerga apenas texto, tool calls e tool results.
package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	chatdomain "github.com/citmax/central-assinante-go/internal/chat/domain"
	chatport "github.com/citmax/central-assinante-go/internal/chat/port"
)

// Model wraps a genai client for one configured model name. A nil inner
// client (no API key at startup) is a valid degraded state: Available()
// reports false and the chat layer answers with a fixed reply.
type Model struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewModel creates the Gemini adapter. An empty API key yields a degraded,
// never-nil Model.
func NewModel(ctx context.Context, apiKey, model string, logger *zap.Logger) *Model {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY ausente, chat operando em modo degradado")
		return &Model{model: model, logger: logger}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Error("falha ao criar cliente gemini, chat degradado", zap.Error(err))
		return &Model{model: model, logger: logger}
	}

	return &Model{client: client, model: model, logger: logger}
}

// Available reports whether the model backend was configured.
func (m *Model) Available() bool {
	return m.client != nil
}

// StartConversation opens a chat session seeded with the subscriber context
// as system instruction, declaring the five portal tools.
func (m *Model) StartConversation(ctx context.Context, systemContext string) (chatport.ModelConversation, error) {
	if m.client == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemContext, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
		Tools:             []*genai.Tool{{FunctionDeclarations: toolDeclarations()}},
	}

	chat, err := m.client.Chats.Create(ctx, m.model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}

	return &conversation{chat: chat, logger: m.logger}, nil
}

// toolDeclarations describe as cinco ferramentas do portal. Só checkTraffic
// recebe parâmetros; as demais operam inteiramente sobre as credenciais da
// sessão, que o orquestrador injeta.
func toolDeclarations() []*genai.FunctionDeclaration {
	empty := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}

	return []*genai.FunctionDeclaration{
		{
			Name:        chatdomain.ToolOpenTicket,
			Description: "Abre um chamado técnico ou solicitação para o provedor quando o problema não pode ser resolvido pelo assistente.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"conteudo":       {Type: genai.TypeString, Description: "Descrição detalhada do problema ou solicitação."},
					"contato":        {Type: genai.TypeString, Description: "Nome da pessoa para contato."},
					"contato_numero": {Type: genai.TypeString, Description: "Número de telefone para contato (obrigatório)."},
					"ocorrenciatipo": {Type: genai.TypeString, Description: "ID do tipo de ocorrência conforme lista (ex: \"200\" para reparo, \"22\" para financeiro)."},
				},
				Required: []string{"conteudo", "contato", "contato_numero", "ocorrenciatipo"},
			},
		},
		{
			Name:        chatdomain.ToolUnlockTrust,
			Description: "Realiza o desbloqueio de confiança (liberação temporária) da internet por 3 dias para clientes bloqueados ou reduzidos.",
			Parameters:  empty,
		},
		{
			Name:        chatdomain.ToolCheckInvoices,
			Description: "Consulta faturas em aberto, valores, vencimentos e códigos Pix.",
			Parameters:  empty,
		},
		{
			Name:        chatdomain.ToolCheckConnection,
			Description: "Verifica status técnico atual da conexão (Online/Offline), IP, MAC e histórico de quedas recente.",
			Parameters:  empty,
		},
		{
			Name:        chatdomain.ToolCheckTraffic,
			Description: "Consulta o consumo de internet (download/upload) de um mês específico.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"mes": {Type: genai.TypeNumber, Description: "Mês numérico (1-12). Se não informado, usa o atual."},
					"ano": {Type: genai.TypeNumber, Description: "Ano com 4 dígitos. Se não informado, usa o atual."},
				},
			},
		},
	}
}

// conversation is one live chat session.
type conversation struct {
	chat   *genai.Chat
	logger *zap.Logger
}

func (c *conversation) Send(ctx context.Context, text string) (chatport.ModelReply, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return chatport.ModelReply{}, fmt.Errorf("send message: %w", err)
	}
	return c.toReply(resp), nil
}

func (c *conversation) SendToolResults(ctx context.Context, results []chatdomain.ToolResult) (chatport.ModelReply, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       r.ID,
				Name:     r.Name,
				Response: r.Payload,
			},
		})
	}

	resp, err := c.chat.SendMessage(ctx, parts...)
	if err != nil {
		return chatport.ModelReply{}, fmt.Errorf("send tool results: %w", err)
	}
	return c.toReply(resp), nil
}

func (c *conversation) toReply(resp *genai.GenerateContentResponse) chatport.ModelReply {
	reply := chatport.ModelReply{Text: resp.Text()}

	for _, fc := range resp.FunctionCalls() {
		reply.ToolCalls = append(reply.ToolCalls, chatdomain.ToolCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}

	if usage := resp.UsageMetadata; usage != nil {
		reply.PromptTokens = int(usage.PromptTokenCount)
		reply.CompletionTokens = int(usage.CandidatesTokenCount)
	}

	return reply
}
