package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/spf13/cobra"
)

func newReportCommand() *cobra.Command {
	var runID string

	reportCmd := &cobra.Command{
		Use:   "report <db>",
		Short: "List the results recorded by run --db",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := datarecording.ReadSummaries(
				cmd.Context(), args[0], runID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "Run\tCache\tOrganization\tSize\tBlock\tSets\tWays\t"+
				"Hits\tMisses\tHit Rate\tMiss Rate\tSkipped")

			for _, s := range summaries {
				summary := stats.Summary{Defined: s.Defined}

				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%d\n",
					s.RunID, s.Cache, s.Organization, s.CacheSize, s.BlockSize,
					s.Sets, s.Ways, s.Hits, s.Misses,
					summary.FormatRate(s.HitRate),
					summary.FormatRate(s.MissRate),
					s.Skipped)
			}

			return tw.Flush()
		},
	}

	reportCmd.Flags().StringVar(&runID, "run", "", "Only show this run")

	return reportCmd
}
