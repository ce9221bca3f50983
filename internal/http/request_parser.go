package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds every request body the handlers read.
const maxBodyBytes = 1 << 20

// pctFieldPrefix names the per-category inputs of the settings form,
// e.g. "pct.Groceries".
const pctFieldPrefix = "pct."

// ParseMonthParam reads ?month=YYYY-MM. An absent value means the month of
// now; a malformed one is an error.
func ParseMonthParam(query url.Values, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.MonthOf(now), nil
	}
	return core.ParseMonth(v)
}

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]json.RawMessage
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body, at most maxBodyBytes of it.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, as a form
// otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	switch {
	case trimmed == "":
		p.formData = url.Values{}
	case trimmed[0] == '{':
		p.jsonData = make(map[string]json.RawMessage)
		p.err = json.Unmarshal([]byte(trimmed), &p.jsonData)
	default:
		p.formData, p.err = url.ParseQuery(trimmed)
	}
	return p.err
}

// Get returns a field as trimmed text from either encoding.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		raw, ok := p.jsonData[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return sanitizeInput(s)
		}
		return sanitizeInput(string(raw))
	}
	return sanitizeInput(p.formData.Get(key))
}

// Decode unmarshals a JSON body into v.
func (p *RequestBodyParser) Decode(v any) error {
	if err := p.Parse(); err != nil {
		return err
	}
	if p.jsonData == nil {
		return fmt.Errorf("expected a JSON object")
	}
	return json.Unmarshal(p.body, v)
}

// Form returns the form values, nil for JSON bodies.
func (p *RequestBodyParser) Form() url.Values {
	return p.formData
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// settingsInput is the body of PUT /api/settings and the decoded settings form.
type settingsInput struct {
	MonthlyExpectedRevenue decimal.Decimal            `json:"monthly_expected_revenue"`
	CategoryPercentages    map[string]decimal.Decimal `json:"expense_class_percentages"`
}

// parseSettingsForm reads "revenue" and one "pct.<Category>" field per
// category. Blank percentages count as zero.
func parseSettingsForm(form url.Values) (settingsInput, error) {
	in := settingsInput{CategoryPercentages: map[string]decimal.Decimal{}}

	rev := strings.TrimSpace(form.Get("revenue"))
	if rev == "" {
		return in, fmt.Errorf("expected revenue is required")
	}
	v, err := parseNumber(rev)
	if err != nil {
		return in, fmt.Errorf("expected revenue: %w", err)
	}
	in.MonthlyExpectedRevenue = v

	for key, vals := range form {
		if !strings.HasPrefix(key, pctFieldPrefix) || len(vals) == 0 {
			continue
		}
		cat := strings.TrimSpace(strings.TrimPrefix(key, pctFieldPrefix))
		raw := strings.TrimSpace(vals[0])
		if raw == "" {
			in.CategoryPercentages[cat] = decimal.Zero
			continue
		}
		p, err := parseNumber(raw)
		if err != nil {
			return in, fmt.Errorf("percentage for %s: %w", cat, err)
		}
		in.CategoryPercentages[cat] = p
	}
	return in, nil
}

// parseNumber accepts "1234.5" and "1234,5". Unlike the extract normalizer it
// rejects garbage instead of zeroing it.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	return d, nil
}

// sanitizeInput drops control characters other than tab and newlines and trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
