// Package main provides the CLI entrypoint for focusflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/focusflow/internal/api"
	"github.com/verte-zerg/focusflow/internal/config"
	"github.com/verte-zerg/focusflow/internal/engine"
	"github.com/verte-zerg/focusflow/internal/focus"
	"github.com/verte-zerg/focusflow/internal/logging"
	"github.com/verte-zerg/focusflow/internal/stats"
	"github.com/verte-zerg/focusflow/internal/statsui"
	"github.com/verte-zerg/focusflow/internal/store"
	"github.com/verte-zerg/focusflow/internal/telemetry"
)

const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 10 * time.Second
	defaultCurveWindow     = 5
	defaultEventWindow     = 10
	defaultWordsPerLine    = 12
	defaultSimBatch        = 10
	defaultSimScript       = "steady,reread,steady,drift,steady"
)

var (
	dbPath    string
	logLevel  string
	logFormat string
	logFile   string

	serveAddr       string
	serveShutdown   time.Duration
	otlpEndpoint    string
	engineTuning    = focus.DefaultTuning()
	engineIdleTTL   time.Duration
	engineWorkingSz int

	statsUser        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	simUser         string
	simSeed         int64
	simScript       string
	simBatch        int
	simWordsPerLine int
	simNoAutoSwitch bool
	simPersist      bool
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := logging.DefaultConfig()
	root := &cobra.Command{
		Use:          "focusflow",
		Short:        "Gaze-driven focus tracking and adaptive reading modes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "SQLite database path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", defaults.Level, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", defaults.Format, "log format (console, json)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().DurationVar(&serveShutdown, "shutdown-timeout", defaultShutdownTimeout, "graceful shutdown timeout")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace endpoint URL; empty disables tracing")
	addEngineFlags(cmd)
	return cmd
}

func addEngineFlags(cmd *cobra.Command) {
	defaults := engine.DefaultConfig()
	f := cmd.Flags()
	f.IntVar(&engineTuning.WindowSize, "window-size", engineTuning.WindowSize, "samples in the regression and dwell window")
	f.IntVar(&engineTuning.SlackWords, "regression-slack-words", engineTuning.SlackWords, "backward words tolerated on the watermark line")
	f.IntVar(&engineTuning.SlackLines, "regression-slack-lines", engineTuning.SlackLines, "backward lines tolerated")
	f.Float64Var(&engineTuning.RegressionThreshold, "regression-threshold", engineTuning.RegressionThreshold, "regression rate that triggers REGRESSED (0-1)")
	f.IntVar(&engineTuning.MinRateSamples, "min-rate-samples", engineTuning.MinRateSamples, "positioned samples needed before REGRESSED can fire")
	f.Float64Var(&engineTuning.FocusThreshold, "focus-threshold", engineTuning.FocusThreshold, "score below which a reader counts as distracted")
	f.IntVar(&engineTuning.Hysteresis, "hysteresis", engineTuning.Hysteresis, "consecutive updates needed to cross the focus threshold")
	f.Float64Var(&engineTuning.StepCap, "step-cap", engineTuning.StepCap, "max score change per sample")
	f.Float64Var(&engineTuning.InitialScore, "initial-score", engineTuning.InitialScore, "score of a new session")
	f.Float64Var(&engineTuning.DwellBaselineMs, "dwell-baseline-ms", engineTuning.DwellBaselineMs, "ideal gap between samples")
	f.Float64Var(&engineTuning.DwellOctaves, "dwell-octaves", engineTuning.DwellOctaves, "doublings from the baseline that zero the dwell factor")
	f.IntVar(&engineTuning.ChurnPerMinute, "churn-max-per-minute", engineTuning.ChurnPerMinute, "pauses per minute tolerated without penalty")
	f.Int64Var(&engineTuning.ReorderSlackMs, "reorder-slack-ms", engineTuning.ReorderSlackMs, "late samples within this slack are clamped, older ones dropped")
	f.DurationVar(&engineIdleTTL, "idle-ttl", defaults.IdleTTL, "evict idle sessions from memory after this long")
	f.IntVar(&engineWorkingSz, "working-set-size", defaults.WorkingSetSize, "max sessions kept in memory")
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonConfig(cmd, cfg)
	applyStringConfig(cmd, "addr", &serveAddr, cfg.Server.Addr)
	applyStringConfig(cmd, "otlp-endpoint", &otlpEndpoint, cfg.Telemetry.OTLPEndpoint)
	if err := applyDurationConfig(cmd, "shutdown-timeout", &serveShutdown, cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	if err := applyEngineConfig(cmd, cfg.Engine); err != nil {
		return err
	}
	if serveAddr == "" {
		return fmt.Errorf("--addr must not be empty")
	}

	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closeLog, "log file")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "focusflow", otlpEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), serveShutdown)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	eng, err := engine.New(st, engineConfig(), log)
	if err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           api.NewRouter(eng, st, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", serveAddr).Str("db", dbPath).Msg("focusflow listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), serveShutdown)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reading analytics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", "", "user id (required)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain report instead of the dashboard")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonConfig(cmd, cfg)

	if strings.TrimSpace(statsUser) == "" {
		return fmt.Errorf("--user is required")
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	uiCfg := statsui.Config{
		UserID:      statsUser,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
		EventWindow: defaultEventWindow,
	}
	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printReport(cmd, st, uiCfg)
	}

	program := tea.NewProgram(statsui.NewModel(st, uiCfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func printReport(cmd *cobra.Command, src stats.Source, cfg statsui.Config) error {
	report, err := stats.BuildReport(cmd.Context(), src, stats.ReportConfig{
		UserID:      cfg.UserID,
		Since:       cfg.Since,
		Last:        cfg.Last,
		EventWindow: cfg.EventWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Summary, report.Breakdown); err != nil {
		return err
	}
	if err := stats.RenderModeTable(out, report.Breakdown); err != nil {
		return err
	}
	if err := stats.RenderSessionTable(out, report.Summary.Sessions); err != nil {
		return err
	}
	return stats.RenderFocusCurve(out, report.Breakdown, cfg.CurveWindow, 0, 8, false)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// loadConfig reads the TOML file and lays FOCUSFLOW_* variables over it.
func loadConfig() (config.FileConfig, error) {
	file, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return config.FileConfig{}, err
	}
	return config.Overlay(file, env), nil
}

func applyCommonConfig(cmd *cobra.Command, cfg config.FileConfig) {
	applyStringConfig(cmd, "db", &dbPath, cfg.Store.Path)
	applyStringConfig(cmd, "log-level", &logLevel, cfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, cfg.Log.Format)
	applyStringConfig(cmd, "log-file", &logFile, cfg.Log.File)
}

func applyEngineConfig(cmd *cobra.Command, cfg config.EngineConfig) error {
	t := &engineTuning
	applyIntConfig(cmd, "window-size", &t.WindowSize, cfg.WindowSize)
	applyIntConfig(cmd, "regression-slack-words", &t.SlackWords, cfg.SlackWords)
	applyIntConfig(cmd, "regression-slack-lines", &t.SlackLines, cfg.SlackLines)
	applyFloatConfig(cmd, "regression-threshold", &t.RegressionThreshold, cfg.RegressionThreshold)
	applyIntConfig(cmd, "min-rate-samples", &t.MinRateSamples, cfg.MinRateSamples)
	applyFloatConfig(cmd, "focus-threshold", &t.FocusThreshold, cfg.FocusThreshold)
	applyIntConfig(cmd, "hysteresis", &t.Hysteresis, cfg.Hysteresis)
	applyFloatConfig(cmd, "step-cap", &t.StepCap, cfg.StepCap)
	applyFloatConfig(cmd, "initial-score", &t.InitialScore, cfg.InitialScore)
	applyFloatConfig(cmd, "dwell-baseline-ms", &t.DwellBaselineMs, cfg.DwellBaselineMs)
	applyFloatConfig(cmd, "dwell-octaves", &t.DwellOctaves, cfg.DwellOctaves)
	applyIntConfig(cmd, "churn-max-per-minute", &t.ChurnPerMinute, cfg.ChurnPerMinute)
	applyInt64Config(cmd, "reorder-slack-ms", &t.ReorderSlackMs, cfg.ReorderSlackMs)
	applyIntConfig(cmd, "working-set-size", &engineWorkingSz, cfg.WorkingSetSize)
	if err := applyDurationConfig(cmd, "idle-ttl", &engineIdleTTL, cfg.IdleTTL); err != nil {
		return err
	}
	return validateEngineConfig()
}

func validateEngineConfig() error {
	if err := engineTuning.Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	if engineWorkingSz <= 0 {
		return fmt.Errorf("--working-set-size must be > 0")
	}
	if engineIdleTTL <= 0 {
		return fmt.Errorf("--idle-ttl must be > 0")
	}
	return nil
}

func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Tuning = engineTuning
	cfg.IdleTTL = engineIdleTTL
	cfg.WorkingSetSize = engineWorkingSz
	return cfg
}

func newLogger() (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Config{Level: logLevel, Format: logFormat, File: logFile}, os.Stderr)
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logErrf("failed to close %s: %v\n", what, err)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, *value, err)
	}
	*target = d
	return nil
}

func defaultConfigTemplate() string {
	t := focus.DefaultTuning()
	e := engine.DefaultConfig()
	return fmt.Sprintf(`# focusflow configuration
# Uncomment a value to enable it. FOCUSFLOW_* environment variables override
# this file and CLI flags override both.

[server]
# addr = %q
# shutdown-timeout = %q

[store]
# path = %q

[log]
# level = "info"          # debug, info, warn, error
# format = "console"      # console or json
# file = ""

[engine]
# window-size = %d
# regression-slack-words = %d
# regression-slack-lines = %d
# regression-threshold = %.2f
# min-rate-samples = %d
# focus-threshold = %.1f
# hysteresis = %d
# step-cap = %.1f
# initial-score = %.1f
# dwell-baseline-ms = %.1f
# dwell-octaves = %.1f
# churn-max-per-minute = %d
# reorder-slack-ms = %d
# idle-ttl = %q
# working-set-size = %d

[telemetry]
# otlp-endpoint = "http://localhost:4318"
`,
		defaultAddr,
		defaultShutdownTimeout.String(),
		config.DefaultDBPath(),
		t.WindowSize,
		t.SlackWords,
		t.SlackLines,
		t.RegressionThreshold,
		t.MinRateSamples,
		t.FocusThreshold,
		t.Hysteresis,
		t.StepCap,
		t.InitialScore,
		t.DwellBaselineMs,
		t.DwellOctaves,
		t.ChurnPerMinute,
		t.ReorderSlackMs,
		e.IdleTTL.String(),
		e.WorkingSetSize,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
