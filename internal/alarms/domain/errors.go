package alarms

import "errors"

var (
	// ErrUnsupportedOperator reports a threshold operator outside the
	// supported set. It indicates inconsistent upstream configuration and
	// must never be defaulted away.
	ErrUnsupportedOperator = errors.New("alarms: unsupported threshold operator")

	// ErrMalformedDaySet reports a schedule day set that could not be parsed.
	ErrMalformedDaySet = errors.New("alarms: malformed schedule day set")

	// ErrMalformedTime reports a schedule time outside HH:MM form.
	ErrMalformedTime = errors.New("alarms: malformed schedule time")
)
