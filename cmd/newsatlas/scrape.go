package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"NewsAtlas/internal/domain"
)

var scrapeCommand = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch articles from the configured news sources",
	RunE:  runScrapeCmd,
}

var (
	scrapeSource string
	scrapeLimit  int
	scrapeList   bool
)

func init() {
	scrapeCommand.Flags().StringVarP(&scrapeSource, "source", "s", "", "Scrape a single source by key")
	scrapeCommand.Flags().IntVarP(&scrapeLimit, "limit", "l", 0, "Maximum articles per source (0 = use configuration)")
	scrapeCommand.Flags().BoolVar(&scrapeList, "list", false, "List the configured sources and exit")

	rootCmd.AddCommand(scrapeCommand)
}

func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	application, ctx, cancel, err := newApp()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close()

	if scrapeList {
		for _, src := range application.Config().Sources {
			fmt.Printf("%-16s %s (%d feeds)\n", src.Key, src.Name, len(src.Feeds))
		}
		return nil
	}

	var report domain.FetchReport
	if scrapeSource != "" {
		report, err = application.Pipeline().ScrapeSource(ctx, scrapeSource, scrapeLimit)
	} else {
		report, err = application.Pipeline().Scrape(ctx, scrapeLimit)
	}
	if err != nil {
		return err
	}

	printFetchReport(report)
	return nil
}

func printFetchReport(report domain.FetchReport) {
	keys := make([]string, 0, len(report.Sources))
	for key := range report.Sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		src := report.Sources[key]
		if src.Err != "" {
			fmt.Printf("%-16s failed: %s\n", key, src.Err)
			continue
		}
		fmt.Printf("%-16s fetched %d, new %d, failed %d\n", key, src.Fetched, src.Inserted, src.Failed)
	}
	fmt.Printf("total: fetched %d, new %d, failed %d in %s\n",
		report.Fetched, report.Inserted, report.Failed, report.Duration.Round(timeRound))
}
