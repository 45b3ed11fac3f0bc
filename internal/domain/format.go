package domain

import (
	"fmt"
	"strings"
)

// ============================================================
// Formatação pt-BR compartilhada pelo portal e pelo chat
// ============================================================

// BytesToGB renders a byte counter as gigabytes with pt-BR decimals:
// 1073741824 → "1,00 GB".
func BytesToGB(bytes int64) string {
	if bytes <= 0 {
		return "0,00 GB"
	}
	gb := float64(bytes) / (1024 * 1024 * 1024)
	return strings.Replace(fmt.Sprintf("%.2f", gb), ".", ",", 1) + " GB"
}

// FormatCurrency renders a value as BRL: 1234.5 → "R$ 1.234,50".
func FormatCurrency(value float64) string {
	neg := value < 0
	if neg {
		value = -value
	}

	whole := fmt.Sprintf("%.2f", value)
	intPart, decPart, _ := strings.Cut(whole, ".")

	// Agrupa milhares com ponto, da direita para a esquerda.
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := "R$ " + b.String() + "," + decPart
	if neg {
		return "-" + out
	}
	return out
}

// FormatDate converts SGP date strings to dd/mm/yyyy.
// Accepts "2024-03-05", "2024-03-05T10:00:00", "2024-03-05 10:00:00" and
// passes through values already containing "/". Empty → "--/--/----".
func FormatDate(dateString string) string {
	if dateString == "" {
		return "--/--/----"
	}
	if idx := strings.IndexAny(dateString, "T "); idx >= 0 {
		dateString = dateString[:idx]
	}
	if strings.Contains(dateString, "/") {
		return dateString
	}
	parts := strings.Split(dateString, "-")
	if len(parts) == 3 {
		return parts[2] + "/" + parts[1] + "/" + parts[0]
	}
	return dateString
}

// FormatDuration renders a session duration in seconds as "1h 5m" / "42m".
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
