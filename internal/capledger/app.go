// Package capledger wires configuration, task sources, the calculator,
// exporters and run history into one application.
package capledger

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/clickup"
	"github.com/Afrawles/capledger/internal/config"
	"github.com/Afrawles/capledger/internal/filesource"
	"github.com/Afrawles/capledger/internal/history"
	"github.com/Afrawles/capledger/internal/report"
	"github.com/Afrawles/capledger/internal/server"
)

type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Generator *report.Generator
	Exporter  *report.Exporter
	CSV       *report.CSVExporter
	Excel     *report.ExcelExporter
	History   *history.Store

	db  *sql.DB
	now func() time.Time
}

type Option func(*options)

type options struct {
	logOutput io.Writer
	sources   []report.TaskSource
	now       func() time.Time
}

// WithLogOutput sends the JSON log to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithSources replaces the sources derived from the configuration.
func WithSources(sources ...report.TaskSource) Option {
	return func(o *options) { o.sources = sources }
}

// WithClock sets the time used for tasks without any usable date.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(cfg *config.Config, opts ...Option) (*Application, error) {
	o := options{logOutput: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	logger := slog.New(slog.NewJSONHandler(o.logOutput, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))

	sources := o.sources
	if sources == nil {
		sources = Sources(cfg, logger)
	}

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Generator: report.NewGenerator(logger.With("component", "generator"), sources...),
		Exporter:  report.NewExporter(cfg.Output.Directory),
		CSV:       report.NewCSVExporter(cfg.Output.Directory),
		Excel:     report.NewExcelExporter(cfg.Output.Directory),
		now:       o.now,
	}

	if cfg.History.DBPath != "" {
		db, err := history.OpenDB(cfg.History.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		app.db = db
		app.History = history.NewStore(db)
		logger.Info("history enabled", "path", cfg.History.DBPath)
	}

	return app, nil
}

// Sources builds the task sources named by the configuration.
func Sources(cfg *config.Config, logger *slog.Logger) []report.TaskSource {
	var sources []report.TaskSource

	if cfg.ClickUp.Enabled() {
		var src *clickup.ClickUpSource
		if len(cfg.ClickUp.ListIDs) > 0 {
			src = clickup.NewClickUpSource(cfg.ClickUp.APIKey, cfg.ClickUp.ListIDs)
		} else {
			src = clickup.NewClickUpFolderSource(cfg.ClickUp.APIKey, cfg.ClickUp.FolderID)
		}
		sources = append(sources, src)
		logger.Info("ClickUp source initialized", "lists", len(cfg.ClickUp.ListIDs), "folder", cfg.ClickUp.FolderID)
	}

	for _, path := range cfg.Files.CSV {
		sources = append(sources, filesource.NewCSVSource(path))
		logger.Info("CSV source initialized", "path", path)
	}

	for _, path := range cfg.Files.XLSX {
		sources = append(sources, filesource.NewXLSXSource(path, cfg.Files.XLSXSheet))
		logger.Info("Excel source initialized", "path", path, "sheet", cfg.Files.XLSXSheet)
	}

	return sources
}

func (app *Application) Close() error {
	if app.db != nil {
		return app.db.Close()
	}
	return nil
}

// Calculator returns a calculator configured for this application.
func (app *Application) Calculator(overrides map[string]capacity.Window) *capacity.Calculator {
	return capacity.NewCalculator(
		capacity.WithHoursPerDay(app.Config.Ledger.HoursPerDay),
		capacity.WithOverrides(overrides),
		capacity.WithRoster(app.Config.Ledger.Roster...),
		capacity.WithClock(app.now),
	)
}

// Server returns the HTTP API backed by this application's sources.
func (app *Application) Server() (*server.Server, error) {
	return server.New(app.Generator, server.Config{
		HoursPerDay: app.Config.Ledger.HoursPerDay,
		Roster:      app.Config.Ledger.Roster,
		DefaultWindow: func() capacity.Window {
			return app.Config.Ledger.Window
		},
		CacheSize: app.Config.Server.CacheSize,
	}, app.Logger.With("component", "server"))
}

// Result is the outcome of one GenerateLedger call.
type Result struct {
	Ledger *capacity.Ledger
	Files  []string
	RunID  string
}

// GenerateLedger fetches tasks, computes the ledger, exports the
// configured formats and records the run in history when enabled.
func (app *Application) GenerateLedger(ctx context.Context, window capacity.Window, overrides map[string]capacity.Window) (*Result, error) {
	app.Logger.Info("generating ledger",
		"start", window.Start.Format(capacity.DateLayout),
		"end", window.End.Format(capacity.DateLayout),
		"overrides", len(overrides),
	)

	ledger, err := app.Generator.Ledger(ctx, window, app.Calculator(overrides))
	if err != nil {
		app.Logger.Error("failed to generate ledger", "error", err)
		return nil, err
	}

	result := &Result{Ledger: ledger}

	files, err := app.Export(ledger)
	if err != nil {
		return result, err
	}
	result.Files = files

	if app.History != nil {
		runID, err := app.History.SaveLedger(ctx, ledger)
		if err != nil {
			return result, fmt.Errorf("saving history: %w", err)
		}
		result.RunID = runID
		app.Logger.Info("ledger saved to history", "run", runID)
	}

	global := ledger.Global()
	app.Logger.Info("ledger generation complete",
		"assignees", global.Assignees,
		"idle_days", global.IdleBusinessDays,
		"idle_hours", global.IdleHours,
		"anomalies", len(ledger.Anomalies),
	)

	return result, nil
}

// Export writes the ledger in every configured format and returns the
// files written. A failing format is logged and the others still run.
func (app *Application) Export(ledger *capacity.Ledger) ([]string, error) {
	if len(app.Config.Output.Format) == 0 {
		return nil, nil
	}

	dir := app.Config.Output.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := app.now().Format("20060102_150405")
	var files []string
	var failed int

	for _, format := range app.Config.Output.Format {
		var written []string
		var err error

		switch format {
		case "json":
			filename := fmt.Sprintf("ledger_%s.json", timestamp)
			err = app.Exporter.ExportJSON(ledger, filename)
			written = []string{filepath.Join(dir, filename)}
		case "html":
			filename := fmt.Sprintf("ledger_%s.html", timestamp)
			err = app.Exporter.ExportHTML(ledger, filename, os.Getenv("USER"))
			written = []string{filepath.Join(dir, filename)}
		case "csv":
			written, err = app.CSV.Export(ledger)
		case "xlsx":
			var path string
			path, err = app.Excel.Export(ledger)
			written = []string{path}
		default:
			err = fmt.Errorf("unknown format %q", format)
		}

		if err != nil {
			failed++
			app.Logger.Error("failed to export ledger", "format", format, "error", err)
			continue
		}
		app.Logger.Info("ledger exported", "format", format, "files", written)
		files = append(files, written...)
	}

	if failed == len(app.Config.Output.Format) {
		return nil, fmt.Errorf("all %d export formats failed", failed)
	}
	return files, nil
}
