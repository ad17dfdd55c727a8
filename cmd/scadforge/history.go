package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scadforge/internal/storage"
)

var (
	historyLimit int
	historyDays  int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent render runs",
	Long: `List recent render runs, newest first, or show the parts of one run.

Examples:
  scadforge history
  scadforge history --limit 5
  scadforge history 3f2c9a1e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old render runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyPruneCmd.Flags().IntVar(&historyDays, "days", 0, "Keep runs newer than this many days (default from config)")
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// HistoryResponseCLI is the output of the history command
type HistoryResponseCLI struct {
	Runs   []RunCLI              `json:"runs"`
	Detail []*storage.PartRecord `json:"detail,omitempty"`
	Pruned int64                 `json:"pruned,omitempty"`
}

// RunCLI summarises one run
type RunCLI struct {
	ID         string    `json:"id"`
	Script     string    `json:"script"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs,omitempty"`
	Parts      int       `json:"parts"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	runs := storage.NewRunStore(db)

	if len(args) == 1 {
		run, err := runs.Get(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run with id %s", args[0])
		}
		return printResponse(&HistoryResponseCLI{
			Runs:   []RunCLI{convertRun(run)},
			Detail: run.Parts,
		})
	}

	recent, err := runs.Recent(historyLimit)
	if err != nil {
		return err
	}
	resp := &HistoryResponseCLI{Runs: make([]RunCLI, 0, len(recent))}
	for _, r := range recent {
		resp.Runs = append(resp.Runs, convertRun(r))
	}
	return printResponse(resp)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	days := historyDays
	if days <= 0 {
		days = a.cfg.Render.HistoryDays
	}
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}
	removed, err := storage.NewRunStore(db).Prune(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	a.logger.Info("Pruned render history", map[string]interface{}{
		"removed": removed,
		"days":    days,
	})
	return printResponse(&HistoryResponseCLI{Runs: []RunCLI{}, Pruned: removed})
}

func convertRun(r *storage.Run) RunCLI {
	rc := RunCLI{
		ID:        r.ID,
		Script:    r.Script,
		Status:    string(r.Status),
		StartedAt: r.StartedAt,
		Parts:     len(r.Parts),
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		rc.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	for _, p := range r.Parts {
		if p.ErrorCode != "" {
			rc.Failed++
		}
	}
	return rc
}
