package core

import "fmt"

// ReasonCode classifies why an operation degraded or was rejected.
type ReasonCode string

const (
	ReasonOK              ReasonCode = "ok"
	ReasonEmptyInput      ReasonCode = "empty_input"
	ReasonMalformed       ReasonCode = "malformed"
	ReasonNegative        ReasonCode = "negative"
	ReasonUnparsableDate  ReasonCode = "unparsable_date"
	ReasonMissingColumn   ReasonCode = "missing_column"
	ReasonUnknownCategory ReasonCode = "unknown_category"
	ReasonValidation      ReasonCode = "validation"
	ReasonStorage         ReasonCode = "storage"
	ReasonTransport       ReasonCode = "transport"
)

// Outcome is the result of a core operation that never returns an error.
// Failures are absorbed but stay observable through Reason and Detail.
type Outcome struct {
	OK     bool       `json:"ok"`
	Reason ReasonCode `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// OK reports success.
func OK() Outcome {
	return Outcome{OK: true, Reason: ReasonOK}
}

// Fail reports a failure with a formatted detail message.
func Fail(reason ReasonCode, format string, args ...any) Outcome {
	return Outcome{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (o Outcome) String() string {
	if o.OK {
		return string(ReasonOK)
	}
	if o.Detail == "" {
		return string(o.Reason)
	}
	return string(o.Reason) + ": " + o.Detail
}
