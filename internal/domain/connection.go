package domain

// ============================================================
// Sessões de conexão (WS Radius / radacct)
// ============================================================

// ConnectionSession is a canonical PPPoE session record. The radius endpoint
// returns sessions keyed by the customer's cpfcnpj — not by contract — so a
// session only becomes meaningful for display after the connection matcher
// attaches it to the selected contract.
type ConnectionSession struct {
	// Campos da sessão radacct escolhida.
	Username       string `json:"username"`
	SessionStart   string `json:"acctstarttime"`
	SessionStop    string `json:"acctstoptime,omitempty"`
	InputOctets    int64  `json:"acctinputoctets"`
	OutputOctets   int64  `json:"acctoutputoctets"`
	TerminateCause string `json:"acctterminatecause,omitempty"`
	NASIP          string `json:"nasipaddress,omitempty"`
	FramedIP       string `json:"framedipaddress,omitempty"`
	SessionID      string `json:"acctsessionid,omitempty"`

	// Campos do registro de serviço dono da sessão. Online/IP são os campos
	// de exibição e têm prioridade sobre os equivalentes da sessão.
	PPPoELogin string `json:"pppoe_login"`
	Online     bool   `json:"online"`
	IP         string `json:"ip"`
	MAC        string `json:"mac,omitempty"`

	// Matching hints copied from the service record. Used ONLY by the
	// connection matcher to associate this session with a contract; never
	// displayed to the subscriber.
	PlanHint   string `json:"plano,omitempty"`
	StreetHint string `json:"endereco_logradouro,omitempty"`
}
