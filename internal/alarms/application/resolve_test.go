package application

import (
	"testing"
	"time"

	"energywatch/internal/meterapi"
)

func testAlarmData() meterapi.AlarmData {
	return meterapi.AlarmData{
		Alarms: []meterapi.Alarm{
			{ID: "a-1", Name: "Overnight power", ChannelID: "ch-1", Status: 1, ReportingInterval: 300},
			{ID: "a-disabled", Name: "Disabled", ChannelID: "ch-1", Status: 0, ReportingInterval: 300},
			{ID: "a-unknown-channel", Name: "Elsewhere", ChannelID: "ch-9", Status: 1, ReportingInterval: 300},
			{ID: "a-bad-days", Name: "Broken days", ChannelID: "ch-1", Status: 1, ReportingInterval: 300},
			{ID: "a-bad-op", Name: "Broken operator", ChannelID: "ch-1", Status: 1, ReportingInterval: 300},
			{ID: "a-no-rule", Name: "Missing rule", ChannelID: "ch-1", Status: 1, ReportingInterval: 300},
		},
		Rules: map[meterapi.ID]meterapi.Rule{
			"a-1":               {AlarmID: "a-1", Field: "P", Direction: ">", Value: 50},
			"a-disabled":        {AlarmID: "a-disabled", Field: "P", Direction: ">", Value: 50},
			"a-unknown-channel": {AlarmID: "a-unknown-channel", Field: "P", Direction: ">", Value: 50},
			"a-bad-days":        {AlarmID: "a-bad-days", Field: "P", Direction: ">", Value: 50},
			"a-bad-op":          {AlarmID: "a-bad-op", Field: "P", Direction: ">=", Value: 50},
		},
		Periods: map[meterapi.ID]meterapi.Period{
			"a-1":               {AlarmID: "a-1", Days: "1,2,3,4,5", StartTime: "08:00", EndTime: "18:00"},
			"a-disabled":        {AlarmID: "a-disabled", Days: "1", StartTime: "08:00", EndTime: "18:00"},
			"a-unknown-channel": {AlarmID: "a-unknown-channel", Days: "1", StartTime: "08:00", EndTime: "18:00"},
			"a-bad-days":        {AlarmID: "a-bad-days", Days: "weekdays", StartTime: "08:00", EndTime: "18:00"},
			"a-bad-op":          {AlarmID: "a-bad-op", Days: "1", StartTime: "08:00", EndTime: "18:00"},
			"a-no-rule":         {AlarmID: "a-no-rule", Days: "1", StartTime: "08:00", EndTime: "18:00"},
		},
	}
}

func TestResolveKeepsOnlyEvaluableAlarms(t *testing.T) {
	channels := []meterapi.Channel{{ID: "ch-1", Name: "Freezer 1"}}
	resolver := NewResolver(time.UTC, nil)

	defs := resolver.Resolve(testAlarmData(), channels)
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want only the well-formed alarm: %+v", len(defs), defs)
	}
	def := defs[0]
	if def.AlarmID != "a-1" || def.ChannelName != "Freezer 1" {
		t.Errorf("definition = %+v", def)
	}
	if def.Threshold.IntervalMinutes != 5 {
		t.Errorf("IntervalMinutes = %d, want 5", def.Threshold.IntervalMinutes)
	}
	if def.Schedule.String() != "Mon-Fri: 08:00 to 18:00" {
		t.Errorf("schedule = %q", def.Schedule.String())
	}
}

func TestResolveValidityDefaults(t *testing.T) {
	data := meterapi.AlarmData{
		Alarms: []meterapi.Alarm{
			{ID: "a-1", ChannelID: "ch-1", Status: 1, ReportingInterval: 60},
		},
		Rules: map[meterapi.ID]meterapi.Rule{
			"a-1": {AlarmID: "a-1", Field: "P", Direction: ">", Value: 50},
		},
		Periods: map[meterapi.ID]meterapi.Period{
			"a-1": {AlarmID: "a-1", Days: "1", StartTime: "08:00", EndTime: "18:00"},
		},
	}
	channels := []meterapi.Channel{{ID: "ch-1"}}

	defs := NewResolver(time.UTC, nil).Resolve(data, channels)
	if len(defs) != 1 {
		t.Fatalf("got %d definitions", len(defs))
	}
	def := defs[0]
	if !def.ValidFrom.Equal(time.Unix(0, 0)) {
		t.Errorf("ValidFrom = %v, want epoch", def.ValidFrom)
	}
	if !def.ValidTo.Equal(time.Date(2038, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ValidTo = %v, want 2038-01-19", def.ValidTo)
	}
}

func TestResolveExplicitValidityDates(t *testing.T) {
	data := meterapi.AlarmData{
		Alarms: []meterapi.Alarm{
			{ID: "a-1", ChannelID: "ch-1", Status: 1, ReportingInterval: 60,
				StartDate: "2024-01-01", EndDate: "2024-06-30 23:59:59"},
		},
		Rules: map[meterapi.ID]meterapi.Rule{
			"a-1": {AlarmID: "a-1", Field: "P", Direction: ">", Value: 50},
		},
		Periods: map[meterapi.ID]meterapi.Period{
			"a-1": {AlarmID: "a-1", Days: "1", StartTime: "08:00", EndTime: "18:00"},
		},
	}
	channels := []meterapi.Channel{{ID: "ch-1"}}
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatal(err)
	}

	defs := NewResolver(loc, nil).Resolve(data, channels)
	if len(defs) != 1 {
		t.Fatalf("got %d definitions", len(defs))
	}
	def := defs[0]
	if !def.ValidFrom.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("ValidFrom = %v", def.ValidFrom)
	}
	if !def.ValidTo.Equal(time.Date(2024, 6, 30, 23, 59, 59, 0, loc)) {
		t.Errorf("ValidTo = %v", def.ValidTo)
	}
	if !def.ValidAt(time.Date(2024, 3, 1, 12, 0, 0, 0, loc)) {
		t.Error("instant inside the window reported invalid")
	}
	if def.ValidAt(time.Date(2024, 7, 1, 0, 0, 0, 0, loc)) {
		t.Error("instant after the window reported valid")
	}
}
