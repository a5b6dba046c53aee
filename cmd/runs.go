package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/report"
	"github.com/kozaktomas/face-verify/internal/web/handlers"
)

var runsCmd = &cobra.Command{
	Use:   "runs [sweep-id]",
	Short: "List recorded sweeps and their runs",
	Long: `Without arguments, list every recorded sweep, newest first.
With a sweep ID, list the runs of that sweep ordered by the swept value.

Examples:
  face-verify runs
  face-verify runs 4b6f0d2e-... --chart sweep.png
  face-verify runs 4b6f0d2e-... --delete`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().String("chart", "", "Render the metric chart of the sweep to this PNG file")
	runsCmd.Flags().Bool("log-x", false, "Use a logarithmic x axis for --chart")
	runsCmd.Flags().Bool("delete", false, "Delete every run of the sweep")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	newLogger(cmd, cfg)

	store, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRunStore()

	if len(args) == 0 {
		if mustGetBool(cmd, "delete") || mustGetString(cmd, "chart") != "" {
			return errors.New("--delete and --chart need a sweep ID")
		}
		return listSweeps(cmd, store)
	}

	sweepID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid sweep ID %q: %w", args[0], err)
	}

	if mustGetBool(cmd, "delete") {
		n, err := store.DeleteSweep(ctx, sweepID)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d runs of sweep %s\n", n, sweepID)
		return nil
	}

	runs, err := store.GetSweepRuns(ctx, sweepID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("sweep %s has no recorded runs", sweepID)
	}

	printTitle(fmt.Sprintf("%s (%s)", runs[0].SweepName, sweepID))
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.Policy,
			strconv.Itoa(r.Epochs),
			strconv.FormatFloat(r.LearningRate, 'g', -1, 64),
			strconv.Itoa(r.TrainPairs),
			strconv.Itoa(r.TestPairs),
			formatScore(r.Accuracy),
			formatScore(r.Precision),
			formatScore(r.Recall),
			formatScore(r.F1),
		}
	}
	fmt.Println(renderTable(
		[]string{"Value", "Policy", "Epochs", "LR", "Train", "Test", "Accuracy", "Precision", "Recall", "F1-score"},
		rows,
	))

	if path := mustGetString(cmd, "chart"); path != "" {
		chart := handlers.ChartFromRuns(runs)
		chart.LogX = mustGetBool(cmd, "log-x")
		if err := report.SaveFile(path, chart); err != nil {
			return err
		}
		fmt.Printf("Chart saved to %s\n", path)
	}
	return nil
}

func listSweeps(cmd *cobra.Command, store database.RunReader) error {
	sweeps, err := store.ListSweeps(cmd.Context())
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		fmt.Println(mutedStyle.Render("No recorded sweeps"))
		return nil
	}

	rows := make([][]string, len(sweeps))
	for i, s := range sweeps {
		rows[i] = []string{
			s.SweepID.String(),
			s.Name,
			s.Parameter,
			s.Policy,
			strconv.Itoa(s.Runs),
			formatScore(s.BestF1),
			s.CreatedAt.Format("2006-01-02 15:04"),
		}
	}
	fmt.Println(renderTable([]string{"Sweep", "Name", "Parameter", "Policy", "Runs", "Best F1", "Created"}, rows))
	return nil
}
