package alarms

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day indices follow the remote API convention: 0=Sunday .. 6=Saturday.
// This is the same numbering as time.Weekday, so no translation is needed
// when matching.

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Schedule is a recurring weekly time window in a fixed timezone. The
// time-of-day range is inclusive at minute resolution.
type Schedule struct {
	days        [7]bool
	startMinute int
	endMinute   int
	loc         *time.Location
}

// NewSchedule builds a schedule from remote alarm period settings. Times are
// HH:MM strings; days are API day indices. Out-of-range days are rejected.
func NewSchedule(days []int, startTime, endTime string, loc *time.Location) (Schedule, error) {
	s := Schedule{loc: loc}
	if s.loc == nil {
		s.loc = time.UTC
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return Schedule{}, fmt.Errorf("%w: day %d out of range", ErrMalformedDaySet, d)
		}
		s.days[d] = true
	}
	var err error
	if s.startMinute, err = parseMinuteOfDay(startTime); err != nil {
		return Schedule{}, err
	}
	if s.endMinute, err = parseMinuteOfDay(endTime); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// ParseDaySet parses the API's comma-joined day list (for example "1,2,3").
func ParseDaySet(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedDaySet)
	}
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedDaySet, part)
		}
		days = append(days, day)
	}
	return days, nil
}

func parseMinuteOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Matches reports whether the instant falls inside the schedule window.
func (s Schedule) Matches(t time.Time) bool {
	m := Matcher{days: s.days, start: s.startMinute, end: s.endMinute, loc: s.loc}
	return m.Match(t)
}

// NewMatcher precompiles the schedule for batch evaluation. MatchAll is
// semantically identical to calling Matches elementwise.
func (s Schedule) NewMatcher() *Matcher {
	return &Matcher{
		days:  s.days,
		start: s.startMinute,
		end:   s.endMinute,
		loc:   s.loc,
	}
}

// Equal reports whether two schedules describe the same window.
func (s Schedule) Equal(other Schedule) bool {
	if s.days != other.days || s.startMinute != other.startMinute || s.endMinute != other.endMinute {
		return false
	}
	return s.loc.String() == other.loc.String()
}

// String renders the compact schedule description used in reports. Runs of
// three or more consecutive day indices collapse to a range; shorter runs
// render individually, comma-joined.
func (s Schedule) String() string {
	var b strings.Builder
	run := -1 // first index of the current consecutive run
	flush := func(from, to int) {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		switch {
		case to-from >= 2:
			b.WriteString(dayNames[from] + "-" + dayNames[to])
		case to-from == 1:
			b.WriteString(dayNames[from] + "," + dayNames[to])
		default:
			b.WriteString(dayNames[from])
		}
	}
	for d := 0; d < 7; d++ {
		if s.days[d] {
			if run < 0 {
				run = d
			}
			continue
		}
		if run >= 0 {
			flush(run, d-1)
			run = -1
		}
	}
	if run >= 0 {
		flush(run, 6)
	}
	return fmt.Sprintf("%s: %s to %s", b.String(), formatMinuteOfDay(s.startMinute), formatMinuteOfDay(s.endMinute))
}

func formatMinuteOfDay(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Matcher evaluates instants against one schedule without re-deriving
// conversion state per call.
type Matcher struct {
	days  [7]bool
	start int
	end   int
	loc   *time.Location
}

// Match reports whether the instant, localized and floored to the minute,
// falls on a scheduled day inside the inclusive time-of-day range.
func (m *Matcher) Match(t time.Time) bool {
	if m.end < m.start {
		return false
	}
	local := t.In(m.loc)
	if !m.days[int(local.Weekday())] {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= m.start && minute <= m.end
}

// MatchAll evaluates a batch of instants.
func (m *Matcher) MatchAll(ts []time.Time) []bool {
	out := make([]bool, len(ts))
	for i, t := range ts {
		out[i] = m.Match(t)
	}
	return out
}
