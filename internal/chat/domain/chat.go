// Package domain define os tipos do agente de atendimento: mensagens,
// chamadas de ferramenta e as credenciais de sessão que o orquestrador
// injeta em toda execução.
package domain

import "time"

// Role identifies who produced a chat message.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one turn of the conversation as seen by the portal.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Tool names the model is allowed to call.
const (
	ToolOpenTicket      = "openSupportTicket"
	ToolUnlockTrust     = "unlockTrust"
	ToolCheckInvoices   = "checkInvoices"
	ToolCheckConnection = "checkConnection"
	ToolCheckTraffic    = "checkTraffic"
)

// ToolCall is one function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult pairs a call with its outcome. Errors travel inside the
// payload as {"error": "..."} so the model can react in text instead of
// the turn aborting.
type ToolResult struct {
	ID      string
	Name    string
	Payload map[string]any
}

// SessionCredentials are the subscriber credentials bound to the
// conversation at open time. They always override whatever the model puts
// in tool arguments.
type SessionCredentials struct {
	CpfCnpj    string
	Password   string
	ContractID string
}

// State of a conversation's orchestrator.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateReady
	StateAwaitingModel
	StateDispatchingTools
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
