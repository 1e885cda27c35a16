package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
)

type Config struct {
	ClickUp ClickUpConfig
	Files   FilesConfig
	Ledger  LedgerConfig
	Output  OutputConfig
	History HistoryConfig
	Server  ServerConfig
	Log     LogConfig
}

type ClickUpConfig struct {
	APIKey   string
	ListIDs  []string
	FolderID string
}

// Enabled reports whether ClickUp is configured as a source.
func (c ClickUpConfig) Enabled() bool {
	return c.APIKey != ""
}

type FilesConfig struct {
	CSV       []string
	XLSX      []string
	XLSXSheet string
}

type LedgerConfig struct {
	Window      capacity.Window
	HoursPerDay int
	Roster      []string
}

type OutputConfig struct {
	Directory string
	Format    []string // json, csv, xlsx, html
}

type HistoryConfig struct {
	// DBPath is the SQLite file; empty disables history.
	DBPath string
}

type ServerConfig struct {
	Addr      string
	CacheSize int
}

type LogConfig struct {
	Level slog.Level
}

func LoadFromEnv() (*Config, error) {
	return load(time.Now())
}

func load(now time.Time) (*Config, error) {
	cfg := &Config{
		ClickUp: ClickUpConfig{
			APIKey:   os.Getenv("CLICKUP_API_KEY"),
			ListIDs:  splitList(os.Getenv("CLICKUP_LISTIDS")),
			FolderID: strings.TrimSpace(os.Getenv("CLICKUP_FOLDERID")),
		},
		Files: FilesConfig{
			CSV:       splitList(os.Getenv("CAPLEDGER_CSV")),
			XLSX:      splitList(os.Getenv("CAPLEDGER_XLSX")),
			XLSXSheet: os.Getenv("CAPLEDGER_XLSX_SHEET"),
		},
		Ledger: LedgerConfig{
			Roster: splitList(os.Getenv("CAPLEDGER_ROSTER")),
		},
		Output: OutputConfig{
			Directory: getEnvOrDefault("OUTPUT_DIR", "reports"),
			Format:    splitList(strings.ToLower(getEnvOrDefault("OUTPUT_FORMAT", "json,csv"))),
		},
		History: HistoryConfig{
			DBPath: os.Getenv("CAPLEDGER_HISTORY_DB"),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("CAPLEDGER_ADDR", ":8080"),
		},
	}

	month := capacity.MonthWindow(now)
	window, err := capacity.ParseWindow(
		getEnvOrDefault("CAPLEDGER_WINDOW_START", month.Start.Format(capacity.DateLayout)),
		getEnvOrDefault("CAPLEDGER_WINDOW_END", month.End.Format(capacity.DateLayout)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPLEDGER_WINDOW_START/CAPLEDGER_WINDOW_END: %w", err)
	}
	cfg.Ledger.Window = window

	if cfg.Ledger.HoursPerDay, err = getEnvInt("CAPLEDGER_HOURS_PER_DAY", capacity.DefaultHoursPerDay); err != nil {
		return nil, err
	}
	if cfg.Server.CacheSize, err = getEnvInt("CAPLEDGER_CACHE_SIZE", 32); err != nil {
		return nil, err
	}

	if err := cfg.Log.Level.UnmarshalText([]byte(getEnvOrDefault("CAPLEDGER_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid CAPLEDGER_LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// HasSource reports whether any task source is configured.
func (c *Config) HasSource() bool {
	return c.ClickUp.Enabled() || len(c.Files.CSV) > 0 || len(c.Files.XLSX) > 0
}

func (c *Config) Validate() error {
	var errs []error

	if !c.HasSource() {
		errs = append(errs, errors.New("no data sources configured (set CLICKUP_API_KEY, CAPLEDGER_CSV or CAPLEDGER_XLSX)"))
	}

	if c.ClickUp.Enabled() && len(c.ClickUp.ListIDs) == 0 && c.ClickUp.FolderID == "" {
		errs = append(errs, errors.New("CLICKUP_API_KEY provided but CLICKUP_LISTIDS and CLICKUP_FOLDERID missing"))
	}

	if err := c.Ledger.Window.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("window: %w", err))
	}

	if c.Ledger.HoursPerDay <= 0 {
		errs = append(errs, fmt.Errorf("hours per day must be positive, got %d", c.Ledger.HoursPerDay))
	}

	for _, format := range c.Output.Format {
		switch format {
		case "json", "csv", "xlsx", "html":
		default:
			errs = append(errs, fmt.Errorf("unknown output format %q", format))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
