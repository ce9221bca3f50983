package http

import (
	"net/http"

	"financeboard/internal/core"
)

// handleSettingsPartial renders the settings form on GET and saves it on POST.
func (s *Server) handleSettingsPartial(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderPartial(w, r, NewHTMXResponse(), "settings", s.buildSettingsView(r.Context()))
	case http.MethodPost:
		s.saveSettingsForm(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) saveSettingsForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil || p.IsJSON() {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	in, err := parseSettingsForm(p.Form())
	if err != nil {
		view := s.buildSettingsView(r.Context())
		view.Error = err.Error()
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity).TriggerErrorNotification(err.Error()), "settings", view)
		return
	}

	out := s.budget.UpdateSettings(r.Context(), in.MonthlyExpectedRevenue, in.CategoryPercentages)
	view := s.buildSettingsView(r.Context())
	if !out.OK {
		view.Error = out.Detail
		s.renderPartial(w, r, NewHTMXResponse().Status(statusForOutcome(out)).TriggerErrorNotification(out.Detail), "settings", view)
		return
	}
	view.Saved = true
	s.renderPartial(w, r,
		NewHTMXResponse().
			TriggerSettingsSaved().
			TriggerSummaryRefresh(core.MonthOf(s.now())).
			TriggerSuccessNotification("Budget saved"),
		"settings", view)
}

// handleSettingsReset restores the default budget.
func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	out := s.budget.Settings.Reset(r.Context())
	if !out.OK {
		OutcomeError(out).Write(w)
		return
	}
	view := s.buildSettingsView(r.Context())
	view.Saved = true
	s.renderPartial(w, r,
		NewHTMXResponse().
			TriggerSettingsSaved().
			TriggerSummaryRefresh(core.MonthOf(s.now())).
			TriggerSuccessNotification("Defaults restored"),
		"settings", view)
}

// handleAPISettings serves GET and PUT /api/settings.
func (s *Server) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, r, http.StatusOK, s.settingsBody(r.Context()))
	case http.MethodPut:
		var in settingsInput
		if err := NewRequestBodyParser(r).Decode(&in); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if in.CategoryPercentages == nil {
			writeJSONError(w, r, http.StatusUnprocessableEntity, "expense_class_percentages is required")
			return
		}
		out := s.budget.UpdateSettings(r.Context(), in.MonthlyExpectedRevenue, in.CategoryPercentages)
		if !out.OK {
			writeOutcome(w, r, out)
			return
		}
		writeJSON(w, r, http.StatusOK, s.settingsBody(r.Context()))
	default:
		w.Header().Set("Allow", "GET, PUT")
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}
