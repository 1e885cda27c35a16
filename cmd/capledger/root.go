package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/capledger"
	"github.com/Afrawles/capledger/internal/config"
	"github.com/Afrawles/capledger/internal/history"
	"github.com/Afrawles/capledger/internal/report"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	startDate       string
	endDate         string
	overrideFlags   []string
	roster          string
	output          string
	formats         string
	hoursPerDay     int
	csvFiles        string
	xlsxFiles       string
	xlsxSheet       string
	clickUpToken    string
	clickupListIDs  string
	clickupFolderID string
	historyDB       string
	envFile         string
	noColor         bool

	serveAddr     string
	historyLimit  int
	historyRun    string
	historyPerson string
)

var rootCmd = &cobra.Command{
	Use:   "capledger",
	Short: "Compute idle business-day capacity per assignee",
	Long: `capledger reads task records from ClickUp, CSV or Excel exports and reports,
for every assignee, how many business days (Mon-Fri) of a working window are
not covered by any task, in days and hours.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
	RunE:              generateLedger,
}

var (
	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Show idle capacity per team and in total",
		Long:  `Computes the ledger and prints the manager summary: idle days, idle hours and utilization per team plus the global total.`,
		RunE:  generateSummary,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the capacity ledger over HTTP",
		RunE:  serve,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List stored ledger runs or one assignee's trend",
		RunE:  showHistory,
	}
)

func execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(summaryCmd, serveCmd, historyCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&startDate, "start", "s", "", "Window start date (YYYY-MM-DD, default: first day of this month)")
	flags.StringVarP(&endDate, "end", "e", "", "Window end date, inclusive (YYYY-MM-DD, default: last day of this month)")
	flags.StringArrayVar(&overrideFlags, "override", nil, "Custom window for one assignee: name=YYYY-MM-DD:YYYY-MM-DD (repeatable)")
	flags.StringVar(&roster, "roster", "", "Comma-separated assignees to include even without tasks")
	flags.StringVarP(&output, "output", "o", "", "Output directory (default: $OUTPUT_DIR or reports)")
	flags.StringVar(&formats, "format", "", "Comma-separated export formats: json, csv, xlsx, html")
	flags.IntVar(&hoursPerDay, "hours-per-day", 0, "Working hours per business day (default: 8)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&envFile, "env-file", ".env", "File of KEY=value settings; variables already set win")

	// sources
	flags.StringVar(&csvFiles, "csv-file", "", "Comma-separated CSV task exports")
	flags.StringVar(&xlsxFiles, "xlsx-file", "", "Comma-separated Excel task exports")
	flags.StringVar(&xlsxSheet, "xlsx-sheet", "", "Sheet to read from Excel exports (default: first sheet)")
	flags.StringVar(&clickUpToken, "clickup-token", "", "ClickUp API token")
	flags.StringVar(&clickupListIDs, "clickup-listid", "", "ClickUp List IDs (comma-separated)")
	flags.StringVar(&clickupFolderID, "clickup-folderid", "", "ClickUp Folder ID (alternative to list IDs)")

	flags.StringVar(&historyDB, "history-db", "", "SQLite file recording every run (default: $CAPLEDGER_HISTORY_DB)")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: $CAPLEDGER_ADDR or :8080)")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the entries of one run")
	historyCmd.Flags().StringVar(&historyPerson, "assignee", "", "Show one assignee's idle days across runs")
}

// loadEnvFile loads envFile into the environment. A missing default file
// is not an error.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// loadConfig reads the environment and applies the flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("start") || flags.Changed("end") {
		start, end := startDate, endDate
		if start == "" {
			start = cfg.Ledger.Window.Start.Format(capacity.DateLayout)
		}
		if end == "" {
			end = cfg.Ledger.Window.End.Format(capacity.DateLayout)
		}
		if cfg.Ledger.Window, err = capacity.ParseWindow(start, end); err != nil {
			return nil, err
		}
	}
	if flags.Changed("roster") {
		cfg.Ledger.Roster = parseCommaList(roster)
	}
	if flags.Changed("output") {
		cfg.Output.Directory = output
	}
	if flags.Changed("format") {
		cfg.Output.Format = parseCommaList(strings.ToLower(formats))
	}
	if flags.Changed("hours-per-day") {
		cfg.Ledger.HoursPerDay = hoursPerDay
	}
	if flags.Changed("csv-file") {
		cfg.Files.CSV = parseCommaList(csvFiles)
	}
	if flags.Changed("xlsx-file") {
		cfg.Files.XLSX = parseCommaList(xlsxFiles)
	}
	if flags.Changed("xlsx-sheet") {
		cfg.Files.XLSXSheet = xlsxSheet
	}
	if flags.Changed("clickup-token") {
		cfg.ClickUp.APIKey = clickUpToken
	}
	if flags.Changed("clickup-listid") {
		cfg.ClickUp.ListIDs = parseCommaList(clickupListIDs)
	}
	if flags.Changed("clickup-folderid") {
		cfg.ClickUp.FolderID = clickupFolderID
	}
	if flags.Changed("history-db") {
		cfg.History.DBPath = historyDB
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	return cfg, nil
}

// computeLedger runs the application for the configured window.
func computeLedger(cmd *cobra.Command) (*capledger.Result, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Required: CLICKUP_API_KEY + (CLICKUP_LISTIDS or CLICKUP_FOLDERID), or --csv-file / --xlsx-file")
		return nil, err
	}

	overrides, err := parseOverrides(overrideFlags)
	if err != nil {
		return nil, err
	}

	app, err := capledger.New(cfg)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	bar := newSpinner("Fetching tasks")
	result, err := app.GenerateLedger(cmd.Context(), cfg.Ledger.Window, overrides)
	finishBar(bar)
	if err != nil {
		return nil, fmt.Errorf("generating ledger: %w", err)
	}

	return result, nil
}

func generateLedger(cmd *cobra.Command, args []string) error {
	result, err := computeLedger(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.RenderLedger(result.Ledger, palette(out)))
	printFiles(out, result)
	return nil
}

func generateSummary(cmd *cobra.Command, args []string) error {
	result, err := computeLedger(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.RenderSummary(result.Ledger, palette(out)))
	printFiles(out, result)
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := capledger.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := app.Server()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving capacity ledger on %s\n", cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History.DBPath == "" {
		return fmt.Errorf("history is disabled: set --history-db or CAPLEDGER_HISTORY_DB")
	}

	db, err := history.OpenDB(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := history.NewStore(db)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case historyPerson != "":
		points, err := store.AssigneeTrend(ctx, historyPerson, historyLimit)
		if err != nil {
			return err
		}
		renderTrend(out, historyPerson, points)
	case historyRun != "":
		ledger, err := storedLedger(ctx, store, historyRun)
		if err != nil {
			return err
		}
		fmt.Fprint(out, report.RenderLedger(ledger, palette(out)))
	default:
		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		renderRuns(out, runs)
	}
	return nil
}

// storedLedger rebuilds a recorded run with its own window and workday
// length. Anomalies are not part of the rendering.
func storedLedger(ctx context.Context, store *history.Store, runID string) (*capacity.Ledger, error) {
	run, err := store.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	entries, err := store.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &capacity.Ledger{
		Window:      run.Window,
		HoursPerDay: run.HoursPerDay,
		GeneratedAt: run.GeneratedAt,
		Entries:     entries,
	}, nil
}

func printFiles(out io.Writer, result *capledger.Result) {
	if len(result.Files) > 0 {
		fmt.Fprintln(out, "\nReports saved:")
		for _, f := range result.Files {
			fmt.Fprintf(out, "  -> %s\n", f)
		}
	}
	if result.RunID != "" {
		fmt.Fprintf(out, "\nRun recorded as %s\n", result.RunID)
	}
}

func renderRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return
	}
	fmt.Fprintf(out, "%-36s  %-22s  %-19s  %9s  %9s  %9s\n", "RUN", "WINDOW", "GENERATED", "ASSIGNEES", "IDLE DAYS", "WARNINGS")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-22s  %-19s  %9d  %9d  %9d\n",
			r.ID, r.Window, r.GeneratedAt.Local().Format("2006-01-02 15:04:05"), r.Assignees, r.IdleDays, r.Anomalies)
	}
}

func renderTrend(out io.Writer, assignee string, points []history.TrendPoint) {
	fmt.Fprintf(out, "Idle capacity of %s\n", assignee)
	fmt.Fprintf(out, "%-19s  %-22s  %9s  %10s\n", "GENERATED", "WINDOW", "IDLE DAYS", "IDLE HOURS")
	for _, p := range points {
		fmt.Fprintf(out, "%-19s  %-22s  %9d  %10d\n",
			p.GeneratedAt.Local().Format("2006-01-02 15:04:05"), p.Entry.Window, p.Entry.IdleBusinessDays, p.Entry.IdleHours)
	}
}

// palette colors output only when it goes to a terminal.
func palette(out io.Writer) report.Palette {
	if noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(out) {
		return report.PlainPalette()
	}
	return report.ColorPalette()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newSpinner returns nil when stderr is not a terminal.
func newSpinner(description string) *progressbar.ProgressBar {
	if !isTerminal(os.Stderr) {
		return nil
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = bar.RenderBlank()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
