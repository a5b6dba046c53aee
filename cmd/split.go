package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/pairs"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Preview the identity-disjoint train/test split",
	Long: `Shuffle the pair table with the configured seed, take the test pairs
and fill the training set with pairs that share no identity with the test set.
Prints the resulting sizes and verifies that the two sets do not overlap.

No images are read and no embeddings are computed.`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)

	addDataFlags(splitCmd)
	splitCmd.Flags().Int("train-size", 1000, "Number of training pairs to request")
	splitCmd.Flags().Int("test-size", 200, "Number of test pairs")
	splitCmd.Flags().Bool("strict", false, "Fail when fewer training pairs than requested survive filtering")
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cmd, cfg)

	table, err := loadTable(cmd, cfg)
	if err != nil {
		return err
	}

	trainSize := mustGetInt(cmd, "train-size")
	split, err := pairs.Split(table, trainSize, mustGetInt(cmd, "test-size"), pairs.SplitOptions{
		Seed:   seedFor(cmd, cfg),
		Strict: mustGetBool(cmd, "strict"),
	})
	if err != nil {
		return err
	}

	overlap := pairs.Overlap(split.Test, split.Train)
	if len(overlap) > 0 {
		logger.Error("train and test sets share identities", "count", len(overlap), "first", overlap[0])
		return fmt.Errorf("split leaks %d identities into the training set", len(overlap))
	}

	printTitle(fmt.Sprintf("Split of %d pairs (seed %d)", len(table), seedFor(cmd, cfg)))
	rows := [][]string{
		{"Test pairs", strconv.Itoa(len(split.Test))},
		{"Test identities", strconv.Itoa(len(pairs.IdentitySet(split.Test)))},
		{"Train pairs", strconv.Itoa(len(split.Train))},
		{"Train identities", strconv.Itoa(len(pairs.IdentitySet(split.Train)))},
		{"Candidates", strconv.Itoa(split.Candidates)},
		{"Dropped for leakage", strconv.Itoa(split.Dropped)},
		{"Shared identities", "0"},
	}
	fmt.Println(renderTable([]string{"", "Count"}, rows))

	if split.Shortfall > 0 {
		printWarning("requested %d training pairs, only %d available (%d short)",
			trainSize, len(split.Train), split.Shortfall)
	}
	return nil
}
