package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"energywatch/internal/alarms/application"
)

// SummaryEquipment marks the trailing totals row of a report table.
const SummaryEquipment = "SUMMARY"

// Row is one line of an organization's daily report table.
type Row struct {
	Organization string
	Equipment    string
	Alarm        string
	Rule         string
	Schedule     string
	ActiveTime   string // HH:MM
	EnergyKWh    float64
}

// FormatMinutes renders a duration in minutes as HH:MM. Durations beyond a
// day keep accumulating hours rather than wrapping.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseActiveTime parses an HH:MM duration back into minutes.
func ParseActiveTime(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("report: malformed duration %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("report: malformed duration %q", s)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("report: malformed duration %q", s)
	}
	return hours*60 + mins, nil
}

// BuildTable renders per-alarm summaries into report rows: one row per
// alarm, sorted by energy descending, plus a trailing totals row with blank
// identity fields. Totals are a fold over the rendered rows, with active
// time re-parsed from the HH:MM strings, so the table is self-consistent
// with what the reader sees.
func BuildTable(org string, summaries []application.Summary) []Row {
	rows := make([]Row, 0, len(summaries)+1)
	for _, s := range summaries {
		rows = append(rows, Row{
			Organization: org,
			Equipment:    s.ChannelName,
			Alarm:        s.AlarmName,
			Rule:         s.RuleText,
			Schedule:     s.ScheduleText,
			ActiveTime:   FormatMinutes(s.ActiveMinutes),
			EnergyKWh:    round2(s.EnergyWh / 1000),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EnergyKWh > rows[j].EnergyKWh })

	totalMinutes := 0
	totalEnergy := 0.0
	for _, row := range rows {
		if mins, err := ParseActiveTime(row.ActiveTime); err == nil {
			totalMinutes += mins
		}
		totalEnergy += row.EnergyKWh
	}
	rows = append(rows, Row{
		Equipment:  SummaryEquipment,
		ActiveTime: FormatMinutes(totalMinutes),
		EnergyKWh:  round2(totalEnergy),
	})
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
