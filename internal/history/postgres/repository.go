package postgres

import (
	"context"
	"database/sql"
	"errors"

	"energywatch/internal/report"
)

// Repository persists daily report rows so the cross-day history survives
// workbook loss and can be queried by other tooling.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("history repo: nil db")
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the report table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS alarm_report_rows (
	report_date date NOT NULL,
	organization text NOT NULL,
	equipment text NOT NULL,
	alarm text NOT NULL,
	rule text NOT NULL,
	schedule text NOT NULL,
	active_time text NOT NULL,
	energy_kwh double precision NOT NULL,
	PRIMARY KEY (report_date, organization, equipment, alarm)
)`)
	return err
}

// ReplaceDay stores one organization's rows for one day, replacing any
// previous run of the same (date, organization) pair in a single
// transaction. The trailing totals row is not persisted.
func (r *Repository) ReplaceDay(ctx context.Context, date, org string, rows []report.Row) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM alarm_report_rows WHERE report_date = $1 AND organization = $2`,
		date, org); err != nil {
		return err
	}
	for _, row := range rows {
		if row.Equipment == report.SummaryEquipment {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO alarm_report_rows (
	report_date, organization, equipment, alarm, rule, schedule, active_time, energy_kwh
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)`, date, org, row.Equipment, row.Alarm, row.Rule, row.Schedule,
			row.ActiveTime, row.EnergyKWh); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByDate loads every organization's rows for one day, ordered by energy
// descending within each organization.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]report.Row, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT organization, equipment, alarm, rule, schedule, active_time, energy_kwh
FROM alarm_report_rows
WHERE report_date = $1
ORDER BY organization, energy_kwh DESC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var row report.Row
		if err := rows.Scan(&row.Organization, &row.Equipment, &row.Alarm,
			&row.Rule, &row.Schedule, &row.ActiveTime, &row.EnergyKWh); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
