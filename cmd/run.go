package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/experiment"
	"github.com/kozaktomas/face-verify/internal/train"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train and evaluate one classifier",
	Long: `Split the pair table, build embedding-difference features for the
training pairs, train a fresh classifier and evaluate it on the test pairs.

Examples:
  # Fixed learning rate, 100 epochs
  face-verify run --pairs pairs.csv

  # Plateau-adaptive learning rate, evaluated on blurred test images
  face-verify run --pairs pairs.csv --adaptive --perturb-test

  # Store the run in PostgreSQL
  face-verify run --pairs pairs.csv --record`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addDataFlags(runCmd)
	addModelFlags(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("train-size", 1000, "Number of training pairs to request")
	cmd.Flags().Int("test-size", 200, "Number of test pairs")
	cmd.Flags().Int("epochs", 0, "Training epochs (overrides EPOCHS)")
	cmd.Flags().Float64("lr", 0, "Learning rate (defaults to LEARNING_RATE, or ADAPTIVE_LEARNING_RATE with --adaptive)")
	cmd.Flags().Bool("adaptive", false, "Reduce the learning rate when the training loss plateaus")
	cmd.Flags().Bool("perturb-train", false, "Blur training images before embedding")
	cmd.Flags().Bool("perturb-test", false, "Blur test images before embedding")
	cmd.Flags().Float64("blur-radius", 0, "Gaussian blur radius for perturbed images (overrides BLUR_RADIUS)")
	cmd.Flags().Bool("strict", false, "Fail when fewer training pairs than requested survive filtering")
	cmd.Flags().Bool("record", false, "Store the run in PostgreSQL (requires DATABASE_URL)")
	cmd.Flags().Bool("json", false, "Output as JSON")
}

// runConfigFromFlags applies the run flags on top of the configured defaults.
func runConfigFromFlags(cmd *cobra.Command, cfg *config.Config) experiment.RunConfig {
	rc := baseRunConfig(cmd, cfg)
	rc.TrainSize = mustGetInt(cmd, "train-size")
	rc.TestSize = mustGetInt(cmd, "test-size")
	rc.Strict = mustGetBool(cmd, "strict")
	rc.PerturbTrain = mustGetBool(cmd, "perturb-train")
	rc.PerturbTest = mustGetBool(cmd, "perturb-test")

	if mustGetBool(cmd, "adaptive") {
		rc.Policy = train.PolicyAdaptive
		rc.LearningRate = rc.AdaptiveLearningRate
	}
	if epochs := mustGetInt(cmd, "epochs"); epochs > 0 {
		rc.Epochs = epochs
	}
	if lr := mustGetFloat64(cmd, "lr"); lr > 0 {
		rc.LearningRate = lr
	}
	if radius := mustGetFloat64(cmd, "blur-radius"); radius > 0 {
		rc.BlurRadius = radius
	}
	return rc
}

type runOutput struct {
	RunID        string  `json:"run_id,omitempty"`
	Policy       string  `json:"policy"`
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	FinalLR      float64 `json:"final_learning_rate"`
	FinalLoss    float64 `json:"final_loss"`
	TrainPairs   int     `json:"train_pairs"`
	TrainSkipped int     `json:"train_skipped"`
	TestPairs    int     `json:"test_pairs"`
	TestSkipped  int     `json:"test_skipped"`
	Shortfall    int     `json:"shortfall"`
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	logger := newLogger(cmd, cfg)
	jsonOutput := mustGetBool(cmd, "json")

	table, err := loadTable(cmd, cfg)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}

	rc := runConfigFromFlags(cmd, cfg)
	runner := newRunner(cmd, extractor, rc, logger)

	if mustGetBool(cmd, "record") {
		store, err := openRunStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRunStore()
		runner.Store = store
	}

	outcome, err := runner.RunOnce(ctx, table, rc)
	if err != nil {
		return err
	}

	out := runOutput{
		Policy:       string(rc.Policy),
		Epochs:       rc.Epochs,
		LearningRate: rc.LearningRate,
		FinalLoss:    outcome.History.FinalLoss(),
		TrainPairs:   outcome.Train.Len(),
		TrainSkipped: len(outcome.Train.Skipped),
		TestPairs:    outcome.Evaluation.Evaluated,
		TestSkipped:  len(outcome.Evaluation.Skipped),
		Shortfall:    outcome.Split.Shortfall,
		Accuracy:     outcome.Evaluation.Metrics.Accuracy,
		Precision:    outcome.Evaluation.Metrics.Precision,
		Recall:       outcome.Evaluation.Metrics.Recall,
		F1:           outcome.Evaluation.Metrics.F1,
	}
	if n := len(outcome.History.Epochs); n > 0 {
		out.FinalLR = outcome.History.Epochs[n-1].LR
	}

	if runner.Store != nil {
		stored, err := runner.Record(ctx, "single-run", outcome)
		if err != nil {
			return err
		}
		out.RunID = stored.ID.String()
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printTitle(fmt.Sprintf("%s policy, %d epochs, learning rate %g", policyName(rc.Policy), rc.Epochs, rc.LearningRate))
	fmt.Println(renderTable(
		[]string{"Train pairs", "Skipped", "Test pairs", "Skipped", "Final loss", "Final LR"},
		[][]string{{
			strconv.Itoa(out.TrainPairs), strconv.Itoa(out.TrainSkipped),
			strconv.Itoa(out.TestPairs), strconv.Itoa(out.TestSkipped),
			formatScore(out.FinalLoss), strconv.FormatFloat(out.FinalLR, 'g', 4, 64),
		}},
	))
	fmt.Println(renderTable(metricHeaders, [][]string{metricRow(outcome.Evaluation.Metrics)}))

	c := outcome.Evaluation.Confusion
	fmt.Println(mutedStyle.Render(fmt.Sprintf("TP %d  FP %d  TN %d  FN %d", c.TP, c.FP, c.TN, c.FN)))
	if out.Shortfall > 0 {
		printWarning("training set is %d pairs short of the requested %d", out.Shortfall, rc.TrainSize)
	}
	if out.RunID != "" {
		fmt.Printf("Recorded run %s\n", out.RunID)
	}
	return nil
}

func policyName(p train.Policy) string {
	if p == train.PolicyAdaptive {
		return "Adaptive"
	}
	return "Fixed"
}
