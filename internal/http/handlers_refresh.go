package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"financeboard/internal/amqp"
	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/services"

	"github.com/shopspring/decimal"
)

// refreshTimeout stays under the server write timeout.
const refreshTimeout = 25 * time.Second

// refreshResult is what a trigger did: queued on the broker, or ran here.
type refreshResult struct {
	Queued    bool                    `json:"queued"`
	RequestID string                  `json:"request_id,omitempty"`
	Report    *services.RefreshReport `json:"report,omitempty"`
}

// triggerRefresh publishes a request when a broker is configured and falls
// back to an in-process refresh when it is not, or when publishing fails.
func (s *Server) triggerRefresh(ctx context.Context, month core.Month, reason string) (refreshResult, error) {
	logger := log.FromContext(ctx)
	if s.publisher != nil {
		req := amqp.NewRefreshRequest(month, reason)
		err := s.publisher.PublishRefresh(ctx, req)
		if err == nil {
			return refreshResult{Queued: true, RequestID: req.ID.String()}, nil
		}
		logger.WarnContext(ctx, "Publishing refresh failed, refreshing in-process",
			log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
	if s.refresher == nil {
		return refreshResult{}, fmt.Errorf("refresh is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	rep := s.refresher.ForceRefresh(ctx, month)
	return refreshResult{Report: &rep}, nil
}

// handleUIRefresh is the dashboard's refresh button.
func (s *Server) handleUIRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError("Month must look like YYYY-MM").Write(w)
		return
	}

	res, err := s.triggerRefresh(r.Context(), month, amqp.ReasonManual)
	if err != nil {
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Write(w)
		return
	}
	// The partial is re-rendered in both cases since htmx swaps any 2xx body.
	resp := NewHTMXResponse()
	switch {
	case res.Queued:
		resp.Status(http.StatusAccepted).TriggerNotification(NotificationInfo, "Refresh queued", 3000)
	case !res.Report.Outcome.OK:
		OutcomeError(res.Report.Outcome).Write(w)
		return
	default:
		msg := fmt.Sprintf("Data updated: %d transactions over %d days", res.Report.Transactions, res.Report.Days)
		if n := len(res.Report.Issues); n > 0 {
			msg += fmt.Sprintf(" (%d rows skipped or adjusted)", n)
		}
		resp.TriggerSuccessNotification(msg)
	}

	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()
	s.renderPartial(w, r, resp, "summary", s.buildSummaryView(ctx, month))
}

type refreshInput struct {
	Month string `json:"month"`
}

// handleAPIRefresh triggers a refresh. The body {"month":"YYYY-MM"} is
// optional and defaults to the current month.
func (s *Server) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in refreshInput
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if p.IsJSON() {
		if err := p.Decode(&in); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	} else {
		in.Month = p.Get("month")
	}
	if in.Month == "" {
		in.Month = r.URL.Query().Get("month")
	}

	month := core.MonthOf(s.now())
	if strings.TrimSpace(in.Month) != "" {
		m, err := core.ParseMonth(in.Month)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		month = m
	}

	res, err := s.triggerRefresh(r.Context(), month, amqp.ReasonAPI)
	switch {
	case err != nil:
		writeJSONError(w, r, http.StatusServiceUnavailable, err.Error())
	case res.Queued:
		writeJSON(w, r, http.StatusAccepted, res)
	case !res.Report.Outcome.OK:
		writeJSON(w, r, statusForOutcome(res.Report.Outcome), res)
	default:
		writeJSON(w, r, http.StatusOK, res)
	}
}

type (
	dailyInput struct {
		Date         string      `json:"date"`
		Transactions []dailyItem `json:"transactions"`
	}

	dailyItem struct {
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
)

// handleAPIDaily records a snapshot for one day, today when date is omitted.
// The snapshot replaces whatever was stored for that date.
func (s *Server) handleAPIDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in dailyInput
	if err := NewRequestBodyParser(r).Decode(&in); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	var date time.Time
	if strings.TrimSpace(in.Date) != "" {
		d, err := core.ParseDate(in.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		date = d
	}
	day := date
	if day.IsZero() {
		day = core.DateOf(s.now())
	}

	txs := make([]core.Transaction, 0, len(in.Transactions))
	for i, it := range in.Transactions {
		if strings.TrimSpace(it.Category) == "" {
			writeJSONError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("transaction %d has no category", i))
			return
		}
		if !core.InRange(it.Amount) {
			writeJSONError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("transaction %d amount is out of range", i))
			return
		}
		if it.Amount.IsNegative() {
			writeJSONError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("transaction %d has a negative amount", i))
			return
		}
		txs = append(txs, core.Transaction{
			Date:        day,
			Category:    strings.TrimSpace(it.Category),
			Amount:      it.Amount,
			Description: sanitizeInput(it.Description),
		})
	}

	out := s.budget.SaveDaily(r.Context(), txs, date)
	if !out.OK {
		writeOutcome(w, r, out)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"ok":           true,
		"date":         core.FormatDate(day),
		"transactions": len(txs),
	})
}
