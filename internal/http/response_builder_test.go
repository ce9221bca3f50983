package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"financeboard/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger should be empty without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerSummaryRefresh(core.Month{Year: 2025, Month: time.March}).
		TriggerSettingsSaved().
		TriggerSuccessNotification("Saved").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	for _, part := range []string{
		`"summary:refresh"`,
		`"month":"2025-03"`,
		`"settings:saved"`,
		`"show-notification"`,
		`"type":"success"`,
		`"duration":3000`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_ErrorNotification(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().TriggerErrorNotification("boom").Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"type":"error"`) || !strings.Contains(trigger, `"duration":5000`) {
		t.Errorf("unexpected trigger %s", trigger)
	}
}

func TestErrorResponsesEscapeHTML(t *testing.T) {
	tests := []struct {
		name   string
		build  *HTMXResponseBuilder
		status int
	}{
		{"bad request", BadRequestError("<b>bad</b>"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("<b>bad</b>"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("<b>bad</b>"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build.Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := w.Body.String()
			if strings.Contains(body, "<b>") || !strings.Contains(body, "&lt;b&gt;bad&lt;/b&gt;") {
				t.Errorf("message not escaped: %s", body)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestOutcomeError(t *testing.T) {
	w := httptest.NewRecorder()
	OutcomeError(core.Fail(core.ReasonValidation, "percentages add up to 200%%")).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), "percentages add up to 200%") {
		t.Errorf("notification missing detail: %s", w.Header().Get("HX-Trigger"))
	}

	w = httptest.NewRecorder()
	OutcomeError(core.Fail(core.ReasonStorage, "disk full")).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}
