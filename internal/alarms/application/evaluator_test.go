package application

import (
	"math"
	"testing"
	"time"

	alarms "energywatch/internal/alarms/domain"
	"energywatch/internal/meterapi"
)

func TestRollingMeanBackfill(t *testing.T) {
	nan := math.NaN()
	got := rollingMeanBackfill([]float64{nan, nan, 10, 20, 30}, 3)
	// Windows ending at the first four positions are incomplete or contain
	// undefined samples; all back-fill from the first defined mean.
	want := []float64{20, 20, 20, 20, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("means[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRollingMeanBackfillAllUndefined(t *testing.T) {
	nan := math.NaN()
	got := rollingMeanBackfill([]float64{nan, nan}, 2)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("means[%d] = %v, want NaN", i, v)
		}
	}
}

func TestRollingMeanWindowOne(t *testing.T) {
	got := rollingMeanBackfill([]float64{1, 2, 3}, 1)
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("means = %v, want %v", got, want)
		}
	}
}

func testReadingSet(start time.Time, step time.Duration, p, e []float64) *meterapi.ReadingSet {
	set := &meterapi.ReadingSet{ChannelID: "ch-1", ChannelName: "Freezer 1"}
	for i := range p {
		values := map[string]float64{}
		if !math.IsNaN(p[i]) {
			values["P"] = p[i]
		}
		if i < len(e) && !math.IsNaN(e[i]) {
			values["E"] = e[i]
		}
		set.Records = append(set.Records, meterapi.Record{
			TS:     start.Add(time.Duration(i) * step).Unix(),
			Values: values,
		})
	}
	return set
}

func mustSchedule(t *testing.T, days []int, start, end string, loc *time.Location) alarms.Schedule {
	t.Helper()
	s, err := alarms.NewSchedule(days, start, end, loc)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func TestTableSortsAscending(t *testing.T) {
	set := &meterapi.ReadingSet{
		ChannelID: "ch-1",
		Records: []meterapi.Record{
			{TS: 300, Values: map[string]float64{"P": 3}},
			{TS: 100, Values: map[string]float64{"P": 1}},
			{TS: 200, Values: map[string]float64{"P": 2}},
		},
	}
	table := NewTable(set)
	for i := 1; i < table.Len(); i++ {
		if !table.Times[i].After(table.Times[i-1]) {
			t.Fatalf("times not ascending: %v", table.Times)
		}
	}
	if table.Value("P", 0) != 1 || table.Value("P", 2) != 3 {
		t.Fatal("values did not follow their timestamps through the sort")
	}
	if !math.IsNaN(table.Value("E", 0)) {
		t.Fatal("absent field must read as NaN")
	}
}

func TestEvaluateAlarmEndToEnd(t *testing.T) {
	// Monday, one-minute samples from 08:00 UTC. P spikes to 300 for six
	// samples at 09:00; with a 5-sample rolling window the mean breaches
	// >50 for exactly the ten samples 09:00-09:09. E carries 150 on each
	// of those samples.
	start := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)
	n := 180
	p := make([]float64, n)
	e := make([]float64, n)
	for i := range p {
		minute := start.Add(time.Duration(i) * time.Minute)
		offset := minute.Sub(time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC))
		if offset >= 0 && offset < 6*time.Minute {
			p[i] = 300
		}
		if offset >= 0 && offset < 10*time.Minute {
			e[i] = 150
		}
	}

	def := Definition{
		AlarmID:   "a-1",
		AlarmName: "Overnight power",
		Threshold: alarms.NewThreshold("P", alarms.OperatorGreater, 50, 300),
		Schedule:  mustSchedule(t, []int{1, 2, 3, 4, 5}, "08:00", "18:00", time.UTC),
		ValidFrom: time.Unix(0, 0),
		ValidTo:   time.Date(2038, 1, 19, 0, 0, 0, 0, time.UTC),
	}

	table := NewTable(testReadingSet(start, time.Minute, p, e))
	shared := NewActivation(table.Len())
	summary, ok, err := NewEvaluator(60).EvaluateAlarm(table, def, shared)
	if err != nil {
		t.Fatalf("EvaluateAlarm: %v", err)
	}
	if !ok {
		t.Fatal("alarm should be active")
	}
	if summary.ActiveMinutes != 10 {
		t.Errorf("ActiveMinutes = %d, want 10", summary.ActiveMinutes)
	}
	if summary.EnergyWh != 1500 {
		t.Errorf("EnergyWh = %v, want 1500", summary.EnergyWh)
	}
	if summary.RuleText != "5 min average P > 50" {
		t.Errorf("RuleText = %q", summary.RuleText)
	}
	if summary.ScheduleText != "Mon-Fri: 08:00 to 18:00" {
		t.Errorf("ScheduleText = %q", summary.ScheduleText)
	}
	if shared.Count() != 10 {
		t.Errorf("shared active count = %d, want 10", shared.Count())
	}
}

func TestEvaluateAlarmOutOfScheduleBreachInactive(t *testing.T) {
	// Breach on a Sunday; the Monday-Friday schedule must suppress it.
	start := time.Date(2024, time.January, 14, 9, 0, 0, 0, time.UTC)
	p := []float64{300, 300, 300, 300, 300, 300}
	e := []float64{100, 100, 100, 100, 100, 100}

	def := Definition{
		AlarmID:   "a-1",
		Threshold: alarms.NewThreshold("P", alarms.OperatorGreater, 50, 60),
		Schedule:  mustSchedule(t, []int{1, 2, 3, 4, 5}, "08:00", "18:00", time.UTC),
		ValidFrom: time.Unix(0, 0),
		ValidTo:   time.Date(2038, 1, 19, 0, 0, 0, 0, time.UTC),
	}

	table := NewTable(testReadingSet(start, time.Minute, p, e))
	_, ok, err := NewEvaluator(60).EvaluateAlarm(table, def, nil)
	if err != nil {
		t.Fatalf("EvaluateAlarm: %v", err)
	}
	if ok {
		t.Fatal("out-of-schedule breach must not count as active")
	}
}

func TestEvaluateAlarmValidityWindow(t *testing.T) {
	start := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	p := []float64{300, 300, 300}
	e := []float64{100, 100, 100}

	def := Definition{
		AlarmID:   "a-1",
		Threshold: alarms.NewThreshold("P", alarms.OperatorGreater, 50, 60),
		Schedule:  mustSchedule(t, []int{1}, "00:00", "23:59", time.UTC),
		ValidFrom: time.Unix(0, 0),
		ValidTo:   start.Add(-time.Hour), // expired before the series begins
	}

	table := NewTable(testReadingSet(start, time.Minute, p, e))
	_, ok, err := NewEvaluator(60).EvaluateAlarm(table, def, nil)
	if err != nil {
		t.Fatalf("EvaluateAlarm: %v", err)
	}
	if ok {
		t.Fatal("expired alarm must not activate")
	}
}

func TestSharedActivationMonotonic(t *testing.T) {
	start := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	p := []float64{300, 300, 300}
	e := []float64{100, 100, 100}
	table := NewTable(testReadingSet(start, time.Minute, p, e))

	wide := Definition{
		AlarmID:   "wide",
		Threshold: alarms.NewThreshold("P", alarms.OperatorGreater, 50, 60),
		Schedule:  mustSchedule(t, []int{1}, "00:00", "23:59", time.UTC),
		ValidFrom: time.Unix(0, 0),
		ValidTo:   time.Date(2038, 1, 19, 0, 0, 0, 0, time.UTC),
	}
	narrow := wide
	narrow.AlarmID = "narrow"
	narrow.Schedule = mustSchedule(t, []int{1}, "23:00", "23:59", time.UTC)

	evaluator := NewEvaluator(60)
	run := func(order []Definition) int {
		shared := NewActivation(table.Len())
		for _, def := range order {
			if _, _, err := evaluator.EvaluateAlarm(table, def, shared); err != nil {
				t.Fatalf("EvaluateAlarm: %v", err)
			}
		}
		return shared.Count()
	}

	forward := run([]Definition{wide, narrow})
	reverse := run([]Definition{narrow, wide})
	if forward != reverse {
		t.Fatalf("shared count order-dependent: %d vs %d", forward, reverse)
	}
	if forward != 3 {
		t.Fatalf("shared count = %d, want all samples held active by the wide alarm", forward)
	}
}
