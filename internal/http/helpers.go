package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"financeboard/internal/core"
	"financeboard/internal/log"

	"github.com/shopspring/decimal"
)

// formatMoney renders d with two decimals, dot thousands and comma decimals
// (e.g. "R$ 1.234,56").
func formatMoney(symbol string, d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if symbol != "" {
		out = symbol + " " + out
	}
	if neg {
		return "-" + out
	}
	return out
}

// formatPercent renders p with one decimal and a percent sign.
func formatPercent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}

// statusForOutcome maps a failed outcome onto an HTTP status.
func statusForOutcome(o core.Outcome) int {
	switch o.Reason {
	case core.ReasonOK:
		return http.StatusOK
	case core.ReasonValidation, core.ReasonMalformed, core.ReasonNegative,
		core.ReasonUnparsableDate, core.ReasonEmptyInput:
		return http.StatusUnprocessableEntity
	case core.ReasonMissingColumn, core.ReasonTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with status. Encoding errors are only logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode JSON response", log.FieldError, err.Error())
	}
}

type errorBody struct {
	Error   string        `json:"error"`
	Outcome *core.Outcome `json:"outcome,omitempty"`
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}

func writeOutcome(w http.ResponseWriter, r *http.Request, o core.Outcome) {
	if o.OK {
		writeJSON(w, r, http.StatusOK, o)
		return
	}
	writeJSON(w, r, statusForOutcome(o), errorBody{Error: o.String(), Outcome: &o})
}
