package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full scrape, dedup, enrich pipeline",
	RunE:  runPipelineCmd,
}

var runWatch bool

func init() {
	runCommand.Flags().BoolVarP(&runWatch, "watch", "w", false, "Keep running on the configured interval")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	application, ctx, cancel, err := newApp()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close()

	if runWatch {
		return application.Watch(ctx)
	}

	report, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}

	printFetchReport(report.Fetch)
	fmt.Printf("dedup: %d processed, %d new canonical, %d updated\n",
		report.Dedup.Processed, report.Dedup.NewCanonical, report.Dedup.UpdatedCanonical)
	fmt.Printf("enrich: %d scanned, %d resolved, %d unresolved\n",
		report.Enrich.Scanned, report.Enrich.Resolved, report.Enrich.Unresolved)
	return nil
}
