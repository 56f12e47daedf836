package alarms

import (
	"fmt"
	"strconv"
)

// Operator is a threshold comparison operator as delivered by the remote API.
type Operator string

const (
	OperatorEqual   Operator = "=="
	OperatorLess    Operator = "<"
	OperatorGreater Operator = ">"
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEqual, OperatorLess, OperatorGreater:
		return true
	default:
		return false
	}
}

// Threshold is a rolling-average threshold rule bound to one reading field.
// IntervalMinutes is the rolling window length in minutes, derived from the
// owning alarm's reporting interval in seconds.
type Threshold struct {
	Field           string
	Operator        Operator
	Value           float64
	IntervalMinutes int
}

// NewThreshold builds a rule from remote alarm settings. The reporting
// interval arrives in seconds and is integer-divided down to minutes.
func NewThreshold(field string, operator Operator, value float64, reportingIntervalSeconds int) Threshold {
	return Threshold{
		Field:           field,
		Operator:        operator,
		Value:           value,
		IntervalMinutes: reportingIntervalSeconds / 60,
	}
}

// Matches reports whether value breaches the threshold. A NaN value never
// matches. An unsupported operator returns ErrUnsupportedOperator.
func (t Threshold) Matches(value float64) (bool, error) {
	switch t.Operator {
	case OperatorEqual:
		return value == t.Value, nil
	case OperatorLess:
		return value < t.Value, nil
	case OperatorGreater:
		return value > t.Value, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, string(t.Operator))
	}
}

// String renders the canonical rule description used in reports.
func (t Threshold) String() string {
	return fmt.Sprintf("%d min average %s %s %s",
		t.IntervalMinutes, t.Field, string(t.Operator),
		strconv.FormatFloat(t.Value, 'g', -1, 64))
}
