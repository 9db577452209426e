package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/focusflow/internal/engine"
	"github.com/verte-zerg/focusflow/internal/errs"
	"github.com/verte-zerg/focusflow/internal/gazegen"
	"github.com/verte-zerg/focusflow/internal/model"
	"github.com/verte-zerg/focusflow/internal/stats"
	"github.com/verte-zerg/focusflow/internal/store"
)

const defaultSimPause = 3 * time.Second

// simStep is either a reading segment or a pause.
type simStep struct {
	segment gazegen.Segment
	pause   time.Duration
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a synthetic gaze trace through the engine",
		Long: `Generate a gaze trace from a script of reading segments and print the
focus events it produces. Script steps: steady, reread, drift, pause or
pause:<duration>.`,
		Args: cobra.NoArgs,
		RunE: runSimulateCmd,
	}
	cmd.Flags().StringVar(&simUser, "user", "simulator", "user id owning the session")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVar(&simScript, "script", defaultSimScript, "comma separated segments")
	cmd.Flags().IntVar(&simBatch, "batch", defaultSimBatch, "samples per ingest call")
	cmd.Flags().IntVar(&simWordsPerLine, "words-per-line", defaultWordsPerLine, "words per text line")
	cmd.Flags().BoolVar(&simNoAutoSwitch, "no-auto-switch", false, "disable automatic mode switching for the user")
	cmd.Flags().BoolVar(&simPersist, "persist", false, "write the session to the configured database")
	addEngineFlags(cmd)
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonConfig(cmd, cfg)
	if err := applyEngineConfig(cmd, cfg.Engine); err != nil {
		return err
	}
	steps, err := parseScript(simScript)
	if err != nil {
		return err
	}
	if simBatch < 1 {
		return fmt.Errorf("--batch must be >= 1")
	}

	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeQuietly(closeLog, "log file")

	var st *store.Store
	if simPersist {
		st, err = openStore()
	} else {
		dir, derr := os.MkdirTemp("", "focusflow-sim-*")
		if derr != nil {
			return fmt.Errorf("failed to create temp dir: %w", derr)
		}
		defer func() {
			if rerr := os.RemoveAll(dir); rerr != nil {
				logErrf("failed to remove %s: %v\n", dir, rerr)
			}
		}()
		st, err = store.Open(filepath.Join(dir, "sim.db"))
	}
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeQuietly(st, "db")

	eng, err := engine.New(st, engineConfig(), log)
	if err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}

	ctx := cmd.Context()
	if cmd.Flags().Changed("no-auto-switch") {
		prefs, err := eng.GetPreferences(ctx, simUser)
		if errors.Is(err, errs.ErrNotFound) {
			prefs, err = model.DefaultPreferences(simUser), nil
		}
		if err != nil {
			return err
		}
		prefs.AutoModeSwitch = !simNoAutoSwitch
		if _, err := eng.SavePreferences(ctx, prefs); err != nil {
			return err
		}
	}

	gen := gazegen.New(simWordsPerLine)
	if simSeed != 0 {
		gen = gazegen.NewSeeded(simSeed, simWordsPerLine)
	}

	sess, err := eng.StartSession(ctx, simUser, "simulation", "")
	if err != nil {
		return err
	}
	var events []model.FocusEvent
	var accepted, dropped int
	for _, step := range steps {
		if step.pause > 0 {
			paused, err := eng.Pause(ctx, simUser, sess.ID, gen.Now())
			if err != nil {
				return err
			}
			gen.Skip(step.pause)
			resumed, err := eng.Resume(ctx, simUser, sess.ID, gen.Now())
			if err != nil {
				return err
			}
			events = appendEvents(events, paused, resumed)
			continue
		}
		trace := gen.Generate(step.segment)
		for start := 0; start < len(trace); start += simBatch {
			end := min(start+simBatch, len(trace))
			res, err := eng.IngestGaze(ctx, simUser, sess.ID, trace[start:end])
			if err != nil {
				return err
			}
			accepted += res.Accepted
			dropped += res.Dropped
			events = append(events, res.Events...)
		}
	}

	ended, err := eng.EndSession(ctx, simUser, sess.ID, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := stats.RenderEventTable(out, events); err != nil {
		return err
	}
	score := "-"
	if ended.FocusScore != nil {
		score = fmt.Sprintf("%.1f", *ended.FocusScore)
	}
	if _, err := fmt.Fprintf(out, "\nSamples: %d accepted, %d dropped\nWords: %d  Regressions: %d\nFinal mode: %s  Focus: %s\n",
		accepted, dropped, ended.WordsRead, ended.RegressionCount, ended.ReadingMode.DisplayName(), score); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func parseScript(script string) ([]simStep, error) {
	var steps []simStep
	for _, raw := range strings.Split(script, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		switch {
		case name == "steady":
			steps = append(steps, simStep{segment: gazegen.Steady})
		case name == "reread":
			steps = append(steps, simStep{segment: gazegen.Reread})
		case name == "drift":
			steps = append(steps, simStep{segment: gazegen.Drift})
		case name == "pause":
			steps = append(steps, simStep{pause: defaultSimPause})
		case strings.HasPrefix(name, "pause:"):
			d, err := time.ParseDuration(strings.TrimPrefix(name, "pause:"))
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid pause step %q", raw)
			}
			steps = append(steps, simStep{pause: d})
		default:
			return nil, fmt.Errorf("unknown script step %q", raw)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("--script is empty")
	}
	return steps, nil
}

func appendEvents(events []model.FocusEvent, evs ...*model.FocusEvent) []model.FocusEvent {
	for _, ev := range evs {
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}
