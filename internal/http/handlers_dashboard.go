package http

import (
	"context"
	"net/http"
	"time"
)

// summaryTimeout bounds the storage reads behind one summary.
const summaryTimeout = 7 * time.Second

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError("Month must look like YYYY-MM").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()

	s.render(w, r, http.StatusOK, "index.html", pageView{
		Summary:  s.buildSummaryView(ctx, month),
		Settings: s.buildSettingsView(ctx),
	})
}

// handleSummaryPartial returns the summary block polled by the page.
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError("Month must look like YYYY-MM").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()
	s.renderPartial(w, r, NewHTMXResponse(), "summary", s.buildSummaryView(ctx, month))
}

// handleAPISummary returns the monthly summary as JSON. ?transactions=1
// includes the month's transactions.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()
	withTx := r.URL.Query().Get("transactions") == "1"
	writeJSON(w, r, http.StatusOK, toSummaryJSON(s.budget.GetMonthlySummary(ctx, month), withTx))
}
