package domain

// ============================================================
// Extrato de uso, desbloqueio de confiança e chamados
// ============================================================

// TrafficExtract carries the backend-shaped usage payload for one
// (contract, month, year). SGP's extratouso shape varies per installation,
// so it is passed through largely unmodified — the callers only need the
// request to have been issued with a correctly zero-padded month.
type TrafficExtract map[string]any

// UnlockResult is the SGP verdict for a promessa de pagamento (trust
// unlock), returned untouched.
type UnlockResult map[string]any

// TicketResult is the SGP response for an opened chamado, returned
// untouched.
type TicketResult map[string]any
