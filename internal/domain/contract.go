package domain

// ============================================================
// Contrato — registro canônico produzido pelo normalizador SGP
// ============================================================

// Contract is the canonical contract record. It is produced once by the
// SGP normalizer and treated as immutable afterwards: the surrounding
// session selects exactly one contract at a time.
type Contract struct {
	ID         string `json:"id_contrato"`
	CustomerID string `json:"id_cliente,omitempty"`

	// Name é a razão social / nome do titular.
	Name     string `json:"razao_social"`
	Document string `json:"cnpj_cpf"`

	// Status carries the raw SGP health string verbatim (Ativo, Reduzido,
	// Suspenso...). Classification for the chat agent happens later, in the
	// context builder — never here.
	Status       string `json:"status"`
	RegisteredAt string `json:"data_cadastro,omitempty"`

	// Endereço de instalação.
	Street   string `json:"endereco"`
	Number   string `json:"numero"`
	District string `json:"bairro,omitempty"`
	City     string `json:"cidade,omitempty"`
	State    string `json:"estado,omitempty"`
	ZipCode  string `json:"cep,omitempty"`

	// Plan is the display plan name: the named service categories joined
	// with " + " (internet, TV, telefonia, multimídia — in that order), or
	// the generic plan field when no category is present.
	Plan string `json:"plano"`

	// MonthlyValue is the combined monthly value of all service categories.
	MonthlyValue float64 `json:"valor"`
}

// UserSession groups everything the portal knows about an authenticated
// subscriber: the contracts resolved at login plus the credentials needed
// to replay SGP calls.
type UserSession struct {
	Contracts []Contract `json:"contratos"`
	CpfCnpj   string     `json:"cpfcnpj"`
	Password  string     `json:"-"`
}
