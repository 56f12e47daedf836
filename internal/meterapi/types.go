package meterapi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is an entity identifier. The API emits identifiers as either JSON
// strings or numbers; both decode to the string form.
type ID string

func (v *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ID(s)
		return nil
	}
	*v = ID(string(data))
	return nil
}

// FlexInt decodes a JSON number or numeric string.
type FlexInt int

func (v *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = 0
			return nil
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*v = FlexInt(parsed)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FlexInt(n)
	return nil
}

// FlexFloat decodes a JSON number or numeric string.
type FlexFloat float64

func (v *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*v = FlexFloat(parsed)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = FlexFloat(f)
	return nil
}

// Organization is one monitored organization.
type Organization struct {
	ID       ID     `json:"organizationId"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone"`
}

// Channel is one piece of monitored equipment.
type Channel struct {
	ID             ID     `json:"dataChannelId"`
	Name           string `json:"channelName"`
	OrganizationID ID     `json:"organization"`
}

// Alarm is a remote alarm definition header. Recipient metadata delivered by
// the API is not modeled; the evaluation engine has no use for it.
type Alarm struct {
	ID                ID      `json:"alarmId"`
	Name              string  `json:"alarmName"`
	ChannelID         ID      `json:"channelId"`
	OrganizationID    ID      `json:"organizationId"`
	Status            FlexInt `json:"status"`
	ReportingInterval FlexInt `json:"reportingInterval"`
	StartDate         string  `json:"startDate"`
	EndDate           string  `json:"endDate"`
	TimeZone          string  `json:"timeZone"`
}

// Enabled reports whether the alarm participates in evaluation.
func (a Alarm) Enabled() bool { return a.Status == 1 }

// Rule is a remote threshold rule for one alarm.
type Rule struct {
	ID        ID        `json:"alarmRuleId"`
	AlarmID   ID        `json:"alarmId"`
	Field     string    `json:"field"`
	Direction string    `json:"thresholdDirection"`
	Value     FlexFloat `json:"thresholdValue"`
}

// Period is a remote recurring schedule window for one alarm.
type Period struct {
	ID        ID     `json:"alarmPeriodId"`
	AlarmID   ID     `json:"alarmId"`
	Days      string `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Event is one organization event.
type Event struct {
	ID             ID      `json:"eventId"`
	OrganizationID ID      `json:"organizationId"`
	ChannelID      ID      `json:"channelId"`
	Type           string  `json:"eventType"`
	TS             FlexInt `json:"ts"`
}

// Record is one time-series sample: a Unix timestamp plus the requested
// field values. Fields absent from the sample are absent from Values.
type Record struct {
	TS     int64
	Values map[string]float64
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Values = make(map[string]float64, len(raw))
	for key, value := range raw {
		num, ok := toFloat(value)
		if !ok {
			continue
		}
		if key == "ts" {
			r.TS = int64(num)
			continue
		}
		r.Values[key] = num
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ReadingSet is one channel's summarized readings for one date range.
type ReadingSet struct {
	ChannelID   ID       `json:"channel"`
	ChannelName string   `json:"name"`
	Records     []Record `json:"records"`
}

// Response envelopes.

type organizationsResponse struct {
	Organizations []Organization `json:"organizations"`
}

type channelsResponse struct {
	Channels []Channel `json:"channels"`
}

type alarmsResponse struct {
	Alarms []Alarm `json:"alarms"`
}

type alarmRulesResponse struct {
	AlarmRules []Rule `json:"alarmrules"`
}

type alarmPeriodsResponse struct {
	AlarmPeriods []Period `json:"alarmperiods"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
	Meta   struct {
		PageCount int `json:"pageCount"`
	} `json:"meta"`
}

type readingsMetaResponse struct {
	Filters struct {
		Fields []string `json:"fields"`
	} `json:"filters"`
}
