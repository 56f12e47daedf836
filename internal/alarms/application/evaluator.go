package application

import (
	"math"
	"sort"
	"time"

	"energywatch/internal/meterapi"
	"energywatch/internal/observability/metrics"
)

// energyField is the reading field summed into per-alarm energy totals.
const energyField = "E"

// Table is one channel's reading series prepared for evaluation: records
// sorted ascending by timestamp with per-sample times materialized.
type Table struct {
	ChannelID   string
	ChannelName string
	Times       []time.Time
	records     []meterapi.Record
}

// NewTable builds a table from a fetched reading set.
func NewTable(set *meterapi.ReadingSet) *Table {
	records := make([]meterapi.Record, len(set.Records))
	copy(records, set.Records)
	sort.Slice(records, func(i, j int) bool { return records[i].TS < records[j].TS })

	times := make([]time.Time, len(records))
	for i, record := range records {
		times[i] = time.Unix(record.TS, 0).UTC()
	}
	return &Table{
		ChannelID:   string(set.ChannelID),
		ChannelName: set.ChannelName,
		Times:       times,
		records:     records,
	}
}

// Len returns the number of samples.
func (t *Table) Len() int { return len(t.records) }

// Value returns one field of one sample, NaN when the sample lacks the field.
func (t *Table) Value(field string, i int) float64 {
	v, ok := t.records[i].Values[field]
	if !ok {
		return math.NaN()
	}
	return v
}

// Column extracts one field across all samples.
func (t *Table) Column(field string) []float64 {
	out := make([]float64, len(t.records))
	for i := range t.records {
		out[i] = t.Value(field, i)
	}
	return out
}

// Activation is a shared per-sample activation column for one channel and
// field. Marking is monotonic: once a sample is active, no later evaluation
// clears it, so the final state is independent of alarm evaluation order.
type Activation struct {
	active []bool
}

// NewActivation creates an all-inactive column of n samples.
func NewActivation(n int) *Activation {
	return &Activation{active: make([]bool, n)}
}

// Merge ORs a per-alarm mask into the shared column.
func (a *Activation) Merge(mask []bool) {
	for i, on := range mask {
		if on {
			a.active[i] = true
		}
	}
}

// Active reports one sample's shared state.
func (a *Activation) Active(i int) bool { return a.active[i] }

// Count returns the number of active samples.
func (a *Activation) Count() int {
	n := 0
	for _, on := range a.active {
		if on {
			n++
		}
	}
	return n
}

// Summary is one alarm's evaluation result over one day's readings.
type Summary struct {
	AlarmID       meterapi.ID
	AlarmName     string
	ChannelID     string
	ChannelName   string
	ActiveMinutes int
	EnergyWh      float64
	RuleText      string
	ScheduleText  string
}

// Evaluator computes alarm activation over reading tables.
// resolutionSeconds is the spacing between samples as requested from the
// remote API; each active sample accounts for that much active time.
type Evaluator struct {
	resolutionSeconds int
}

// NewEvaluator constructs an evaluator for series fetched at the given
// resolution.
func NewEvaluator(resolutionSeconds int) *Evaluator {
	if resolutionSeconds <= 0 {
		resolutionSeconds = 60
	}
	return &Evaluator{resolutionSeconds: resolutionSeconds}
}

// EvaluateAlarm marks each sample active iff the alarm's validity window
// covers it AND the schedule matches its timestamp AND the rolling average
// of the rule's field breaches the threshold. The per-alarm mask is merged
// into the shared activation column, and the returned summary sums time and
// energy over the alarm's own mask. ok is false when no sample is active.
func (e *Evaluator) EvaluateAlarm(table *Table, def Definition, shared *Activation) (Summary, bool, error) {
	n := table.Len()
	scheduleMask := def.Schedule.NewMatcher().MatchAll(table.Times)
	means := rollingMeanBackfill(table.Column(def.Threshold.Field), def.Threshold.IntervalMinutes)

	mask := make([]bool, n)
	activeCount := 0
	energy := 0.0
	for i := 0; i < n; i++ {
		if !def.ValidAt(table.Times[i]) || !scheduleMask[i] {
			continue
		}
		breach, err := def.Threshold.Matches(means[i])
		if err != nil {
			return Summary{}, false, err
		}
		if !breach {
			continue
		}
		mask[i] = true
		activeCount++
		if v := table.Value(energyField, i); !math.IsNaN(v) {
			energy += v
		}
	}
	if shared != nil {
		shared.Merge(mask)
	}

	if activeCount == 0 {
		metrics.IncEvaluation("inactive")
		return Summary{}, false, nil
	}
	metrics.IncEvaluation("active")
	return Summary{
		AlarmID:       def.AlarmID,
		AlarmName:     def.AlarmName,
		ChannelID:     table.ChannelID,
		ChannelName:   table.ChannelName,
		ActiveMinutes: activeCount * e.resolutionSeconds / 60,
		EnergyWh:      energy,
		RuleText:      def.Threshold.String(),
		ScheduleText:  def.Schedule.String(),
	}, true, nil
}

// rollingMeanBackfill computes a trailing-window mean per sample. Windows
// that are incomplete or contain an undefined value yield NaN, then NaN
// positions are back-filled from the next defined mean so leading samples
// are not treated as non-breaching zeros.
func rollingMeanBackfill(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	means := make([]float64, len(values))
	for i := range values {
		if i+1 < window {
			means[i] = math.NaN()
			continue
		}
		sum := 0.0
		defined := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				defined = false
				break
			}
			sum += values[j]
		}
		if !defined {
			means[i] = math.NaN()
			continue
		}
		means[i] = sum / float64(window)
	}

	next := math.NaN()
	for i := len(means) - 1; i >= 0; i-- {
		if math.IsNaN(means[i]) {
			means[i] = next
		} else {
			next = means[i]
		}
	}
	return means
}
