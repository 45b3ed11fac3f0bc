package domain

// AgentMetrics is the snapshot returned by GET /v1/metrics/agent: cumulative
// chat-agent usage derived from the Prometheus counters.
type AgentMetrics struct {
	TotalTurns       int64   `json:"total_turns"`
	ErrorRate        float64 `json:"error_rate"`
	AvgTokensPerTurn float64 `json:"avg_tokens_per_turn"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Period           string  `json:"period"`
}
