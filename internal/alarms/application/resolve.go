package application

import (
	"time"

	"go.uber.org/zap"

	alarms "energywatch/internal/alarms/domain"
	"energywatch/internal/meterapi"
)

// Validity bounds for alarms with no explicit start or end date.
var (
	validFromDefault = time.Unix(0, 0).UTC()
	validToDefault   = time.Date(2038, time.January, 19, 0, 0, 0, 0, time.UTC)
)

// dateLayouts covers the formats the remote API has been seen emitting for
// alarm validity dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Definition is a fully resolved, evaluable alarm: the remote alarm header
// joined with its rule, its period, and its monitored channel.
type Definition struct {
	AlarmID     meterapi.ID
	AlarmName   string
	ChannelID   string
	ChannelName string
	Threshold   alarms.Threshold
	Schedule    alarms.Schedule
	ValidFrom   time.Time
	ValidTo     time.Time
}

// ValidAt reports whether the alarm's validity window covers the instant.
func (d Definition) ValidAt(t time.Time) bool {
	return !t.Before(d.ValidFrom) && !t.After(d.ValidTo)
}

// Resolver joins alarm fan-out results into evaluable definitions for one
// organization.
type Resolver struct {
	loc    *time.Location
	logger *zap.Logger
}

// NewResolver constructs a resolver. loc is the organization's timezone; it
// anchors schedules and validity-date parsing. A nil logger is replaced by a
// no-op one.
func NewResolver(loc *time.Location, logger *zap.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{loc: loc, logger: logger}
}

// Resolve keeps every enabled alarm that sits on a monitored channel and has
// both a rule and a period, and compiles it into a Definition. Alarms with
// malformed settings are dropped with a warning rather than aborting the
// batch. Two alarms watching the same channel and field with differing
// schedules share one activation column downstream; that overlap is logged.
func (r *Resolver) Resolve(data meterapi.AlarmData, channels []meterapi.Channel) []Definition {
	channelsByID := make(map[meterapi.ID]meterapi.Channel, len(channels))
	for _, channel := range channels {
		channelsByID[channel.ID] = channel
	}

	defs := make([]Definition, 0, len(data.Alarms))
	for _, alarm := range data.Alarms {
		if !alarm.Enabled() {
			continue
		}
		channel, ok := channelsByID[alarm.ChannelID]
		if !ok {
			// Alarm on a channel outside the monitored set.
			continue
		}
		rule, ok := data.Rules[alarm.ID]
		if !ok {
			continue
		}
		period, ok := data.Periods[alarm.ID]
		if !ok {
			continue
		}

		operator := alarms.Operator(rule.Direction)
		if !operator.Valid() {
			r.logger.Warn("dropping alarm with unsupported operator",
				zap.String("alarm", string(alarm.ID)),
				zap.String("operator", rule.Direction))
			continue
		}

		days, err := alarms.ParseDaySet(period.Days)
		if err != nil {
			r.logger.Warn("dropping alarm with malformed day set",
				zap.String("alarm", string(alarm.ID)),
				zap.String("days", period.Days),
				zap.Error(err))
			continue
		}
		schedule, err := alarms.NewSchedule(days, period.StartTime, period.EndTime, r.loc)
		if err != nil {
			r.logger.Warn("dropping alarm with malformed schedule",
				zap.String("alarm", string(alarm.ID)),
				zap.Error(err))
			continue
		}

		defs = append(defs, Definition{
			AlarmID:     alarm.ID,
			AlarmName:   alarm.Name,
			ChannelID:   string(channel.ID),
			ChannelName: channel.Name,
			Threshold:   alarms.NewThreshold(rule.Field, operator, float64(rule.Value), int(alarm.ReportingInterval)),
			Schedule:    schedule,
			ValidFrom:   r.parseValidity(alarm.StartDate, validFromDefault),
			ValidTo:     r.parseValidity(alarm.EndDate, validToDefault),
		})
	}

	r.warnSharedActivation(defs)
	return defs
}

// parseValidity parses an optional validity date, falling back to the given
// bound when the field is empty or unparseable.
func (r *Resolver) parseValidity(raw string, fallback time.Time) time.Time {
	if raw == "" || raw == "null" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, r.loc); err == nil {
			return t
		}
	}
	r.logger.Warn("unparseable alarm validity date, using default",
		zap.String("date", raw))
	return fallback
}

func (r *Resolver) warnSharedActivation(defs []Definition) {
	type key struct {
		channelID string
		field     string
	}
	seen := make(map[key]Definition, len(defs))
	for _, def := range defs {
		k := key{channelID: def.ChannelID, field: def.Threshold.Field}
		prev, ok := seen[k]
		if !ok {
			seen[k] = def
			continue
		}
		if !prev.Schedule.Equal(def.Schedule) {
			r.logger.Warn("alarms share a channel and field with differing schedules",
				zap.String("channel", def.ChannelID),
				zap.String("field", def.Threshold.Field),
				zap.String("alarm_a", string(prev.AlarmID)),
				zap.String("alarm_b", string(def.AlarmID)))
		}
	}
}
