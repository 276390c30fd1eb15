package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrichCommand = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve coordinates for canonical articles that lack them",
	RunE:  runEnrichCmd,
}

var enrichBatch int

func init() {
	enrichCommand.Flags().IntVarP(&enrichBatch, "batch", "b", 0, "Maximum articles to process (0 = all)")

	rootCmd.AddCommand(enrichCommand)
}

func runEnrichCmd(cmd *cobra.Command, _ []string) error {
	application, ctx, cancel, err := newApp()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close()

	report, err := application.Pipeline().Enrich(ctx, enrichBatch)
	if err != nil {
		return err
	}

	fmt.Printf("scanned %d: %d resolved, %d unresolved in %s\n",
		report.Scanned, report.Resolved, report.Unresolved, report.Duration.Round(timeRound))
	return nil
}
