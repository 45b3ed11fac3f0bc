package domain

import "strings"

// ============================================================
// Faturas e Notas Fiscais
// ============================================================

// Invoice is a canonical fatura (título) record. The normalizer returns
// invoices ordered by due date descending (stable for equal dates).
type Invoice struct {
	ID              string  `json:"id"`
	DueDate         string  `json:"vencimento"`
	DueDateAdjusted string  `json:"vencimento_atualizado,omitempty"`
	Amount          float64 `json:"valor"`
	AdjustedAmount  float64 `json:"valor_corrigido"`
	PaidAmount      float64 `json:"valor_pago"`

	// PaidAt fica vazio enquanto a fatura não for liquidada.
	PaidAt string `json:"data_pagamento,omitempty"`
	Status string `json:"situacao"`

	// Códigos de pagamento.
	DigitableLine string `json:"linha_digitavel,omitempty"`
	PixCode       string `json:"codigo_pix,omitempty"`

	DocumentURL string `json:"link_boleto,omitempty"`
	ReceiptURL  string `json:"link_recibo,omitempty"`
	Description string `json:"descricao"`
}

// IsPaid reports whether the invoice is settled. SGP is inconsistent here:
// some responses mark "pago"/"liquidado" in the status, others only fill the
// payment date.
func (i Invoice) IsPaid() bool {
	s := strings.ToLower(i.Status)
	return strings.Contains(s, "pago") || strings.Contains(s, "liquidado") || i.PaidAt != ""
}

// FiscalInvoice is a canonical nota fiscal record, ordered by issuance date
// descending after normalization.
type FiscalInvoice struct {
	Number      string  `json:"numero"`
	Series      string  `json:"serie,omitempty"`
	IssuedAt    string  `json:"data_emissao"`
	TotalValue  float64 `json:"valor_total"`
	PDFURL      string  `json:"link_pdf,omitempty"`
	CompanyName string  `json:"empresa_razao_social,omitempty"`
	Status      string  `json:"status,omitempty"`
	Description string  `json:"descricao,omitempty"`
}
