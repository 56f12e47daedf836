package meterapi

import (
	"net/url"
	"strconv"
)

type dateRangeKind int

const (
	rangeToday dateRangeKind = iota
	rangeExplicit
	rangeRelative
)

// DateRangeSpec is a tagged date-range variant for event queries: today,
// an explicit Unix-timestamp pair, or a relative keyword the API resolves
// server-side (for example "yesterday" or "last7days").
type DateRangeSpec struct {
	kind    dateRangeKind
	start   int64
	end     int64
	keyword string
}

// Today selects the server's current day.
func Today() DateRangeSpec {
	return DateRangeSpec{kind: rangeToday}
}

// Explicit selects a [start, end] Unix-timestamp pair.
func Explicit(start, end int64) DateRangeSpec {
	return DateRangeSpec{kind: rangeExplicit, start: start, end: end}
}

// Relative selects a server-side relative range keyword.
func Relative(keyword string) DateRangeSpec {
	return DateRangeSpec{kind: rangeRelative, keyword: keyword}
}

// apply adds the variant's query parameters. Today requests an unbounded
// page; bounded ranges page at 100 events.
func (s DateRangeSpec) apply(query url.Values) {
	switch s.kind {
	case rangeExplicit:
		query.Add("daterange[]", strconv.FormatInt(s.start, 10))
		query.Add("daterange[]", strconv.FormatInt(s.end, 10))
		query.Set("limit", "100")
	case rangeRelative:
		query.Add("daterange[]", s.keyword)
		query.Set("limit", "100")
	default:
		query.Add("daterange[]", "today")
		query.Set("limit", "0")
	}
}
