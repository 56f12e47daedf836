package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	alarmapp "energywatch/internal/alarms/application"
	"energywatch/internal/config"
	historypg "energywatch/internal/history/postgres"
	"energywatch/internal/logging"
	"energywatch/internal/meterapi"
	"energywatch/internal/observability/metrics"
	"energywatch/internal/report"
	"energywatch/internal/retry"
)

func main() {
	once := flag.Bool("once", false, "run one evaluation pass and exit")
	flag.Parse()

	logger, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := meterapi.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.APICredentials,
		meterapi.WithLogger(logger),
		meterapi.WithSettingsURL(cfg.SettingsURL))
	if err != nil {
		logger.Fatal("api client", zap.Error(err))
	}
	if err := client.Authenticate(ctx); err != nil {
		logger.Fatal("authentication", zap.Error(err))
	}
	logger.Info("authenticated")

	var history *historypg.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		history, err = historypg.NewRepository(db)
		if err != nil {
			logger.Fatal("history repository", zap.Error(err))
		}
		if err := history.EnsureSchema(ctx); err != nil {
			logger.Fatal("history schema", zap.Error(err))
		}
	}

	r := &runner{cfg: cfg, client: client, history: history, logger: logger, retries: retry.Default()}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: newRouter(cfg, client, history)}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", zap.Error(err))
		}
	}()
	defer srv.Shutdown(context.Background())

	if *once {
		r.runAll(ctx)
		return
	}

	for {
		next := nextRun(time.Now(), cfg.DailyAt)
		logger.Info("next run scheduled", zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("shutting down")
			return
		case <-timer.C:
		}
		r.runAll(ctx)
	}
}

// nextRun returns the next daily run instant at HH:MM local time.
func nextRun(now time.Time, dailyAt string) time.Time {
	at, err := time.Parse("15:04", dailyAt)
	if err != nil {
		at = time.Date(0, 1, 1, 6, 0, 0, 0, time.UTC)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

type runner struct {
	cfg     config.Config
	client  *meterapi.Client
	history *historypg.Repository
	logger  *zap.Logger
	retries retry.Policy
}

func (r *runner) runAll(ctx context.Context) {
	for _, org := range r.cfg.OrganizationNames() {
		if err := r.runOrg(ctx, org); err != nil {
			r.logger.Error("organization run failed", zap.String("organization", org), zap.Error(err))
		}
	}
}

// runOrg evaluates one organization's previous local day and writes its
// report artifacts.
func (r *runner) runOrg(ctx context.Context, orgName string) error {
	orgs, err := r.client.FetchOrganizations(ctx, meterapi.OrgFilter{Name: orgName})
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		return fmt.Errorf("organization %q not visible to this session", orgName)
	}
	org := orgs[0]
	loc, err := time.LoadLocation(org.TimeZone)
	if err != nil {
		r.logger.Warn("unknown organization timezone, using UTC",
			zap.String("organization", orgName), zap.String("tz", org.TimeZone))
		loc = time.UTC
	}

	channels, err := r.client.FetchChannels(ctx, string(org.ID))
	if err != nil {
		return err
	}
	monitored := filterChannels(channels, r.cfg.Organizations[orgName])
	if len(monitored) == 0 {
		r.logger.Warn("no monitored channels", zap.String("organization", orgName))
		return nil
	}

	data := r.client.FetchAlarmData(ctx, []string{string(org.ID)})
	defs := alarmapp.NewResolver(loc, r.logger).Resolve(data, monitored)
	if len(defs) == 0 {
		r.logger.Info("no evaluable alarms", zap.String("organization", orgName))
		return nil
	}

	// Previous local day, midnight to midnight.
	now := time.Now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := midnight.AddDate(0, 0, -1)
	date := start.Format("2006-01-02")

	fields := collectFields(defs)
	channelIDs := collectChannelIDs(defs)
	readings := r.client.FetchReadingsBulk(ctx, channelIDs,
		[][2]int64{{start.Unix(), midnight.Unix()}}, fields, r.cfg.ResolutionSeconds)

	evaluator := alarmapp.NewEvaluator(r.cfg.ResolutionSeconds)
	var summaries []alarmapp.Summary
	for _, channelID := range channelIDs {
		set, ok := readings[meterapi.ReadingsKey{ChannelID: channelID, Start: start.Unix(), End: midnight.Unix()}]
		if !ok {
			continue
		}
		table := alarmapp.NewTable(set)
		shared := alarmapp.NewActivation(table.Len())
		for _, def := range defs {
			if def.ChannelID != channelID {
				continue
			}
			summary, active, err := evaluator.EvaluateAlarm(table, def, shared)
			if err != nil {
				r.logger.Warn("alarm evaluation failed",
					zap.String("alarm", string(def.AlarmID)), zap.Error(err))
				continue
			}
			if active {
				summaries = append(summaries, summary)
			}
		}
	}

	rows := report.BuildTable(orgName, summaries)
	if err := r.persistArtifacts(ctx, orgName, date, rows); err != nil {
		return err
	}
	r.logger.Info("report written",
		zap.String("organization", orgName),
		zap.String("date", date),
		zap.Int("alarms", len(summaries)))
	return nil
}

// persistArtifacts writes one day's outputs: the per-org workbook and PDF,
// then the shared summary workbook and history upsert. Only the two shared
// sinks are retried; fetch and evaluation never replay on a write failure.
func (r *runner) persistArtifacts(ctx context.Context, orgName, date string, rows []report.Row) error {
	if err := os.MkdirAll(r.cfg.ReportsDir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(r.cfg.ReportsDir, orgName+"_alarms_report")
	if err := report.WriteOrgReport(base+".xlsx", date, rows); err != nil {
		return err
	}
	pdfBytes, err := report.BuildPDF(orgName, date, rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+"_"+date+".pdf", pdfBytes, 0o644); err != nil {
		return err
	}
	err = retry.Do(ctx, r.retries, func(context.Context) error {
		return report.UpdateSummary(r.cfg.SummaryPath, date, orgName, rows)
	})
	if err != nil {
		return err
	}
	if r.history != nil {
		err = retry.Do(ctx, r.retries, func(ctx context.Context) error {
			return r.history.ReplaceDay(ctx, date, orgName, rows)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// filterChannels keeps the configured channel names; an empty filter keeps
// everything.
func filterChannels(channels []meterapi.Channel, names []string) []meterapi.Channel {
	if len(names) == 0 {
		return channels
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	out := make([]meterapi.Channel, 0, len(channels))
	for _, channel := range channels {
		if wanted[channel.Name] {
			out = append(out, channel)
		}
	}
	return out
}

// collectFields gathers the rule fields plus the energy column that summary
// totals are built from.
func collectFields(defs []alarmapp.Definition) []string {
	seen := map[string]bool{"E": true}
	for _, def := range defs {
		seen[def.Threshold.Field] = true
	}
	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func collectChannelIDs(defs []alarmapp.Definition) []string {
	seen := make(map[string]bool, len(defs))
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		if !seen[def.ChannelID] {
			seen[def.ChannelID] = true
			ids = append(ids, def.ChannelID)
		}
	}
	sort.Strings(ids)
	return ids
}

// newRouter exposes operational endpoints: metrics, health, and read-only
// access to the rolling summary, per-day history, and organization events.
func newRouter(cfg config.Config, client *meterapi.Client, history *historypg.Repository) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/summary", func(w http.ResponseWriter, _ *http.Request) {
		rows, err := report.ReadSummary(cfg.SummaryPath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/reports/{date}", func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.Error(w, "history storage not configured", http.StatusNotFound)
			return
		}
		rows, err := history.ListByDate(r.Context(), mux.Vars(r)["date"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/events/{org}", func(w http.ResponseWriter, r *http.Request) {
		orgs, err := client.FetchOrganizations(r.Context(), meterapi.OrgFilter{Name: mux.Vars(r)["org"]})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if len(orgs) == 0 {
			http.Error(w, "unknown organization", http.StatusNotFound)
			return
		}
		dateRange := meterapi.Today()
		if keyword := r.URL.Query().Get("range"); keyword != "" {
			dateRange = meterapi.Relative(keyword)
		}
		events, err := client.FetchEvents(r.Context(), string(orgs[0].ID), dateRange)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}).Methods(http.MethodGet)

	return router
}
