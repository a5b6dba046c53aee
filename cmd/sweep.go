package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/experiment"
	"github.com/kozaktomas/face-verify/internal/report"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <preset>",
	Short: "Train and evaluate across the values of one parameter",
	Long: `Run a parameter sweep defined in the built-in presets. Every value gets
a freshly initialized classifier; training features are computed once and
reused across values that do not change them.

Examples:
  # List the available presets
  face-verify sweep --list

  # Sweep the number of epochs and save the metric chart
  face-verify sweep fixed-epochs --pairs pairs.csv --chart epochs.png

  # Store every run of the sweep in PostgreSQL
  face-verify sweep learning-rate --pairs pairs.csv --record`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	addDataFlags(sweepCmd)
	addModelFlags(sweepCmd)
	sweepCmd.Flags().Bool("list", false, "List the available presets")
	sweepCmd.Flags().String("chart", "", "Write the metric chart to this PNG file")
	sweepCmd.Flags().Bool("record", false, "Store every run in PostgreSQL (requires DATABASE_URL)")
	sweepCmd.Flags().Bool("json", false, "Output as JSON")
}

type sweepPointOutput struct {
	Value     float64 `json:"value"`
	RunID     string  `json:"run_id,omitempty"`
	FinalLoss float64 `json:"final_loss"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

type sweepOutput struct {
	SweepID   string             `json:"sweep_id"`
	Name      string             `json:"name"`
	Parameter string             `json:"parameter"`
	Policy    string             `json:"policy"`
	Chart     string             `json:"chart,omitempty"`
	Points    []sweepPointOutput `json:"points"`
}

func printPresets(cfg *config.Config) {
	rows := make([][]string, 0, len(cfg.Sweeps.Sweeps))
	for _, name := range cfg.SweepNames() {
		p := cfg.Sweeps.Sweeps[name]
		values := make([]string, len(p.Values))
		for i, v := range p.Values {
			values[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rows = append(rows, []string{name, p.Parameter, p.Policy, strings.Join(values, ", ")})
	}
	fmt.Println(renderTable([]string{"Preset", "Parameter", "Policy", "Values"}, rows))
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	logger := newLogger(cmd, cfg)

	if mustGetBool(cmd, "list") {
		printPresets(cfg)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("preset name is required, one of: %s", strings.Join(cfg.SweepNames(), ", "))
	}

	preset, err := cfg.GetSweep(args[0])
	if err != nil {
		return err
	}
	sweep, err := experiment.FromPreset(args[0], preset)
	if err != nil {
		return err
	}

	table, err := loadTable(cmd, cfg)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	runner := newRunner(cmd, extractor, baseRunConfig(cmd, cfg), logger)

	if mustGetBool(cmd, "record") {
		store, err := openRunStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRunStore()
		runner.Store = store
	}

	result, err := runner.Run(ctx, table, sweep)
	if err != nil {
		return err
	}

	chartPath := mustGetString(cmd, "chart")
	if chartPath != "" {
		if err := report.SaveFile(chartPath, result.Chart()); err != nil {
			return err
		}
		logger.Info("chart saved", "path", chartPath)
	}

	if mustGetBool(cmd, "json") {
		out := sweepOutput{
			SweepID:   result.SweepID.String(),
			Name:      sweep.Name,
			Parameter: string(sweep.Parameter),
			Policy:    string(sweep.Policy),
			Chart:     chartPath,
		}
		for _, p := range result.Points {
			m := p.Outcome.Evaluation.Metrics
			point := sweepPointOutput{
				Value:     p.Value,
				FinalLoss: p.Outcome.History.FinalLoss(),
				Accuracy:  m.Accuracy,
				Precision: m.Precision,
				Recall:    m.Recall,
				F1:        m.F1,
			}
			if runner.Store != nil {
				point.RunID = p.RunID.String()
			}
			out.Points = append(out.Points, point)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printTitle(result.Chart().Title())
	rows := make([][]string, len(result.Points))
	for i, p := range result.Points {
		rows[i] = append([]string{strconv.FormatFloat(p.Value, 'g', -1, 64)}, metricRow(p.Outcome.Evaluation.Metrics)...)
	}
	fmt.Println(renderTable(append([]string{sweep.Label}, metricHeaders...), rows))

	if runner.Store != nil {
		fmt.Printf("Recorded sweep %s (%d runs)\n", result.SweepID, len(result.Points))
	}
	if chartPath != "" {
		fmt.Printf("Chart saved to %s\n", chartPath)
	}
	return nil
}
