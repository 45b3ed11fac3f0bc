// Package sgp talks to the SGP provisioning backend ("central do assinante"
// API, WS Radius and URA) and normalizes its loosely-typed payloads into the
// canonical domain records.
//
// ============================================================
// NORMALIZAÇÃO — ordered fallback chains
// ============================================================
//
// O SGP varia o formato de resposta entre versões e instalações: nomes de
// campo diferentes, aninhamento diferente, campos ausentes. Cada decoder
// abaixo tenta uma cadeia ORDENADA de campos — o primeiro não-vazio vence —
// e cai em defaults quando nada casa. Normalização é lossy-safe: nunca
// falha por formato, só por erro de transporte ou por erro aplicacional
// explícito no corpo (campo "erro"/"error").
//
// A forma não-tipada (map[string]any) nunca atravessa a fronteira deste
// pacote: tudo que sai daqui é um registro canônico de internal/domain.
package sgp

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/citmax/central-assinante-go/internal/domain"
)

// ============================================================
// Helpers de leitura sobre a árvore JSON não-tipada
// ============================================================

// getStr returns the first non-empty field among keys, stringified and
// trimmed. Numbers come out without a trailing exponent ("1051" not
// "1051.000000").
func getStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s := stringify(v)
		if s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// getFloat returns the first parseable numeric field among keys, 0 otherwise.
// Parse failures default to 0 — never an error.
func getFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// getInt64 is getFloat truncated to an integer byte counter.
func getInt64(m map[string]any, keys ...string) int64 {
	return int64(getFloat(m, keys...))
}

func getBool(m map[string]any, key string) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// sliceAt walks nested keys ("data" → "contratos") and returns the slice
// found there, or nil.
func sliceAt(root map[string]any, keys ...string) []any {
	cur := root
	for i, k := range keys {
		if i == len(keys)-1 {
			return asSlice(cur[k])
		}
		cur = asMap(cur[k])
		if cur == nil {
			return nil
		}
	}
	return nil
}

// parseDate accepts the date layouts SGP is known to emit. The zero time
// doubles as "unparseable", which sorts last in the descending orders below.
func parseDate(s string) time.Time {
	if idx := strings.IndexAny(s, "T "); idx >= 0 {
		// Keep the offset-less date part; time-of-day never matters for
		// invoice ordering.
		s = s[:idx]
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ============================================================
// Contratos
// ============================================================

// normalizeContracts decodes the /contratos response. Shapes tried, in
// order: data.contratos[] → contratos[] → root array → single object →
// explicit error field.
func normalizeContracts(raw any, fallbackDoc string) ([]domain.Contract, error) {
	var items []any

	if root := asMap(raw); root != nil {
		switch {
		case sliceAt(root, "data", "contratos") != nil:
			items = sliceAt(root, "data", "contratos")
		case asSlice(root["contratos"]) != nil:
			items = asSlice(root["contratos"])
		case getStr(root, "id_contrato", "contrato") != "":
			items = []any{root}
		case getStr(root, "erro", "error") != "":
			return nil, &domain.ErrDomain{Service: "contratos", Message: getStr(root, "erro", "error")}
		}
	} else if arr := asSlice(raw); arr != nil {
		items = arr
	}

	contracts := make([]domain.Contract, 0, len(items))
	for _, it := range items {
		item := asMap(it)
		if item == nil {
			continue
		}
		contracts = append(contracts, normalizeContract(item, fallbackDoc))
	}
	return contracts, nil
}

// planCategories define a ordem fixa de concatenação do nome do plano e da
// soma do valor mensal: internet, TV, telefonia, multimídia.
var planCategories = []struct{ name, value string }{
	{"planointernet", "planointernet_valor"},
	{"planotv", "planotv_valor"},
	{"planotelefonia", "planotelefonia_valor"},
	{"planomultimidia", "planomultimidia_valor"},
}

func normalizeContract(item map[string]any, fallbackDoc string) domain.Contract {
	id := getStr(item, "contrato", "id_contrato", "id", "cod_contrato")
	if id == "" {
		id = "0"
	}

	name := getStr(item, "razaosocial", "razao_social", "nome", "cliente", "nome_cliente")
	if name == "" {
		name = "Cliente CITmax"
	}

	// Endereço de instalação pode vir aninhado ou achatado na raiz.
	addr := asMap(item["endereco_instalacao"])
	if addr == nil && getStr(item, "logradouro") != "" {
		addr = item
	}
	if addr == nil {
		addr = map[string]any{}
	}

	street := getStr(addr, "logradouro")
	if street == "" {
		street = getStr(item, "endereco", "rua", "endereco_res")
	}
	if street == "" {
		street = "Endereço não informado"
	}
	number := getStr(addr, "numero")
	if number == "" {
		number = getStr(item, "numero", "numero_res")
	}
	if number == "" {
		number = "S/N"
	}

	var planParts []string
	var totalValue float64
	for _, cat := range planCategories {
		if p := getStr(item, cat.name); p != "" {
			planParts = append(planParts, p)
			totalValue += getFloat(item, cat.value)
		}
	}
	if len(planParts) == 0 {
		if generic := getStr(item, "plano", "descricao_plano", "nome_plano", "pacote"); generic != "" {
			planParts = append(planParts, generic)
		}
		if totalValue == 0 {
			totalValue = getFloat(item, "valor", "valor_mensal", "valor_contrato", "preco")
		}
	}
	plan := strings.Join(planParts, " + ")
	if plan == "" {
		plan = "Plano Personalizado"
	}

	status := getStr(item, "status", "status_internet", "situacao")
	if status == "" {
		status = "Ativo"
	}

	document := getStr(item, "cpfcnpj", "cnpj_cpf", "cpf", "cnpj")
	if document == "" {
		document = fallbackDoc
	}

	return domain.Contract{
		ID:           id,
		CustomerID:   getStr(item, "id_cliente", "cliente_id"),
		Name:         name,
		Document:     document,
		Status:       status,
		RegisteredAt: getStr(item, "data_cadastro", "data_ativacao"),
		Street:       street,
		Number:       number,
		District:     firstOf(getStr(addr, "bairro"), getStr(item, "bairro", "bairro_res")),
		City:         firstOf(getStr(addr, "cidade"), getStr(item, "cidade", "cidade_res")),
		State:        firstOf(getStr(addr, "uf"), getStr(item, "estado", "uf_res")),
		ZipCode:      firstOf(getStr(addr, "cep"), getStr(item, "cep", "cep_res")),
		Plan:         plan,
		MonthlyValue: totalValue,
	}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ============================================================
// Faturas
// ============================================================

// normalizeInvoices decodes /titulos. Shapes tried, in order:
// data.faturas[] → root array → titulos[] → faturas[].
func normalizeInvoices(raw any) []domain.Invoice {
	var items []any

	if root := asMap(raw); root != nil {
		switch {
		case sliceAt(root, "data", "faturas") != nil:
			items = sliceAt(root, "data", "faturas")
		case asSlice(root["titulos"]) != nil:
			items = asSlice(root["titulos"])
		case asSlice(root["faturas"]) != nil:
			items = asSlice(root["faturas"])
		}
	} else if arr := asSlice(raw); arr != nil {
		items = arr
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, it := range items {
		item := asMap(it)
		if item == nil {
			continue
		}

		status := getStr(item, "status", "situacao")
		paidAt := getStr(item, "data_pagamento", "pagamento")
		if status == "" {
			if paidAt != "" {
				status = "Pago"
			} else {
				status = "Aberto"
			}
		}

		amount := getFloat(item, "valor", "valor_titulo", "valor_total")
		adjusted := getFloat(item, "valorcorrigido", "valor_corrigido")
		if adjusted == 0 {
			adjusted = amount
		}

		desc := getStr(item, "descricao", "historico")
		if desc == "" {
			desc = "Fatura Mensal"
		}

		invoices = append(invoices, domain.Invoice{
			ID:              getStr(item, "id", "id_titulo", "numero_documento"),
			DueDate:         getStr(item, "vencimento", "data_vencimento"),
			DueDateAdjusted: getStr(item, "vencimento_atualizado"),
			Amount:          amount,
			AdjustedAmount:  adjusted,
			PaidAmount:      getFloat(item, "valor_pago", "pago"),
			PaidAt:          paidAt,
			Status:          status,
			DigitableLine:   getStr(item, "linhadigitavel", "linha_digitavel", "codigo_barra"),
			PixCode:         getStr(item, "codigopix", "qr_code_pix"),
			DocumentURL:     getStr(item, "link_completo", "link", "url_imprimir", "url"),
			ReceiptURL:      getStr(item, "recibo", "link_recibo"),
			Description:     desc,
		})
	}

	// Mais recente primeiro; empates preservam a ordem de entrada.
	sort.SliceStable(invoices, func(i, j int) bool {
		return parseDate(invoices[i].DueDate).After(parseDate(invoices[j].DueDate))
	})
	return invoices
}

// ============================================================
// Notas fiscais
// ============================================================

// normalizeFiscalInvoices decodes /notafiscal/list. Shapes tried:
// {status:200, data:[]} → root array.
func normalizeFiscalInvoices(raw any) []domain.FiscalInvoice {
	var items []any

	if root := asMap(raw); root != nil {
		if getFloat(root, "status") == 200 {
			items = asSlice(root["data"])
		}
	} else if arr := asSlice(raw); arr != nil {
		items = arr
	}

	notes := make([]domain.FiscalInvoice, 0, len(items))
	for _, it := range items {
		item := asMap(it)
		if item == nil {
			continue
		}
		notes = append(notes, domain.FiscalInvoice{
			Number:      getStr(item, "numero"),
			Series:      getStr(item, "serie"),
			IssuedAt:    getStr(item, "data_emissao"),
			TotalValue:  getFloat(item, "valortotal", "valor_total"),
			PDFURL:      getStr(item, "link"),
			CompanyName: getStr(item, "empresa_razao_social"),
			Status:      getStr(item, "status"),
			Description: getStr(item, "infcomp"),
		})
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return parseDate(notes[i].IssuedAt).After(parseDate(notes[j].IssuedAt))
	})
	return notes
}

// ============================================================
// Extrato de uso
// ============================================================

// normalizeTraffic returns the data payload of a {status:200, data:{...}}
// response, or nil for every other shape.
func normalizeTraffic(raw any) domain.TrafficExtract {
	root := asMap(raw)
	if root == nil {
		return nil
	}
	if getFloat(root, "status") != 200 {
		return nil
	}
	data := asMap(root["data"])
	if data == nil {
		return nil
	}
	return domain.TrafficExtract(data)
}

// ============================================================
// Sessões de conexão (WS Radius)
// ============================================================

// normalizeConnectionSessions decodes the radacct list. Shapes tried, in
// order: result[] → data.result[] → data[] → root array. Each entry is a
// service record optionally nesting a radacct[] session list; the chosen
// session (active one, else first, else empty) is merged with the service
// fields — service-level online/ip win as display fields.
func normalizeConnectionSessions(raw any) []domain.ConnectionSession {
	var items []any

	if root := asMap(raw); root != nil {
		switch {
		case asSlice(root["result"]) != nil:
			items = asSlice(root["result"])
		case sliceAt(root, "data", "result") != nil:
			items = sliceAt(root, "data", "result")
		case asSlice(root["data"]) != nil:
			items = asSlice(root["data"])
		}
	} else if arr := asSlice(raw); arr != nil {
		items = arr
	}

	sessions := make([]domain.ConnectionSession, 0, len(items))
	for _, it := range items {
		service := asMap(it)
		if service == nil {
			continue
		}
		sessions = append(sessions, mergeServiceSession(service))
	}
	return sessions
}

func mergeServiceSession(service map[string]any) domain.ConnectionSession {
	raw := asSlice(service["radacct"])

	// Sessão "melhor": a que ainda não terminou; senão a primeira; senão
	// um objeto vazio.
	best := map[string]any{}
	for _, s := range raw {
		sess := asMap(s)
		if sess != nil && getStr(sess, "acctstoptime") == "" {
			best = sess
			break
		}
	}
	if len(best) == 0 && len(raw) > 0 {
		if first := asMap(raw[0]); first != nil {
			best = first
		}
	}

	username := getStr(best, "username")
	if username == "" {
		username = getStr(service, "pppoe_login")
	}

	ip := getStr(service, "ip")
	if ip == "" {
		ip = getStr(best, "framedipaddress")
	}
	framed := getStr(best, "framedipaddress")
	if framed == "" {
		framed = getStr(service, "ip")
	}

	return domain.ConnectionSession{
		Username:       username,
		SessionStart:   getStr(best, "acctstarttime"),
		SessionStop:    getStr(best, "acctstoptime"),
		InputOctets:    getInt64(best, "acctinputoctets"),
		OutputOctets:   getInt64(best, "acctoutputoctets"),
		TerminateCause: getStr(best, "acctterminatecause"),
		NASIP:          getStr(best, "nasipaddress"),
		FramedIP:       framed,
		SessionID:      getStr(best, "acctsessionid"),
		PPPoELogin:     getStr(service, "pppoe_login"),
		Online:         getBool(service, "online"),
		IP:             ip,
		MAC:            getStr(best, "callingstationid"),
		PlanHint:       getStr(service, "plano"),
		StreetHint:     getStr(service, "endereco_logradouro"),
	}
}
