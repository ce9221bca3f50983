package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financeboard/internal/core"

	"github.com/google/uuid"
)

// Refresh reasons carried in RefreshRequest.Reason.
const (
	ReasonManual   = "manual"
	ReasonSchedule = "schedule"
	ReasonAPI      = "api"
	ReasonCLI      = "cli"
)

// RefreshRequest asks the worker to re-read the spreadsheet for one month.
// An empty Month means the worker's current month.
type RefreshRequest struct {
	ID          uuid.UUID `json:"id"`
	Month       string    `json:"month,omitempty"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshRequest creates a request with a fresh ID.
func NewRefreshRequest(month core.Month, reason string) *RefreshRequest {
	req := &RefreshRequest{
		ID:          uuid.New(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
	if !month.IsZero() {
		req.Month = month.String()
	}
	return req
}

// TargetMonth parses Month; the zero Month is returned when it is empty.
func (m *RefreshRequest) TargetMonth() (core.Month, error) {
	if m.Month == "" {
		return core.Month{}, nil
	}
	return core.ParseMonth(m.Month)
}

// ToJSON converts the message to JSON bytes
func (m *RefreshRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshRequestFromJSON decodes a message and checks its month.
func RefreshRequestFromJSON(data []byte) (*RefreshRequest, error) {
	var msg RefreshRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.TargetMonth(); err != nil {
		return nil, fmt.Errorf("refresh request %s: %w", msg.ID, err)
	}
	return &msg, nil
}
