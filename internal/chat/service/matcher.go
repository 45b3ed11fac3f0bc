package service

import (
	"strings"

	"github.com/citmax/central-assinante-go/internal/domain"
)

// MatchConnection escolhe, entre todos os serviços do assinante retornados
// pelo radius, a conexão que pertence ao contrato em questão. O radius não
// filtra por contrato, então a escolha é heurística, na ordem:
//
//  1. nome do plano idêntico (case-insensitive, aparado);
//  2. primeira palavra do logradouro do contrato (se tiver mais de 3 letras)
//     contida no logradouro do serviço;
//  3. o serviço que estiver online;
//  4. o primeiro da lista.
//
// Lista vazia resulta em nil. A função é total: nunca falha, no máximo não
// encontra.
func MatchConnection(sessions []domain.ConnectionSession, contract domain.Contract) *domain.ConnectionSession {
	if len(sessions) == 0 {
		return nil
	}

	if plan := strings.ToLower(strings.TrimSpace(contract.Plan)); plan != "" {
		for i := range sessions {
			if h := strings.ToLower(strings.TrimSpace(sessions[i].PlanHint)); h != "" && h == plan {
				return &sessions[i]
			}
		}
	}

	if fields := strings.Fields(contract.Street); len(fields) > 0 {
		keyword := strings.ToLower(fields[0])
		if len(keyword) > 3 {
			for i := range sessions {
				if sessions[i].StreetHint != "" &&
					strings.Contains(strings.ToLower(sessions[i].StreetHint), keyword) {
					return &sessions[i]
				}
			}
		}
	}

	for i := range sessions {
		if sessions[i].Online {
			return &sessions[i]
		}
	}

	return &sessions[0]
}
