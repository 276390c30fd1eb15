package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const timeRound = 10 * time.Millisecond

var dedupCommand = &cobra.Command{
	Use:   "dedup",
	Short: "Consolidate pending raw articles into canonical records",
	RunE:  runDedupCmd,
}

var dedupBatch int

func init() {
	dedupCommand.Flags().IntVarP(&dedupBatch, "batch", "b", 0, "Maximum raw articles to process (0 = all)")

	rootCmd.AddCommand(dedupCommand)
}

func runDedupCmd(cmd *cobra.Command, _ []string) error {
	application, ctx, cancel, err := newApp()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close()

	report, err := application.Pipeline().Deduplicate(ctx, dedupBatch)
	if err != nil {
		return err
	}

	fmt.Printf("processed %d: %d exact merges, %d near-duplicate merges, %d new, %d updated in %s\n",
		report.Processed, report.ExactMerged, report.NearDupMerged,
		report.NewCanonical, report.UpdatedCanonical, report.Duration.Round(timeRound))
	return nil
}
