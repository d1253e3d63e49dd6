package cache

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

var format string

func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspects the sculpture cache of the job service",
	}
	cmd.PersistentFlags().StringVar(&format, "format", util.FormatText,
		"output format (text, json)")
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "shows the cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			st, err := client.CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(os.Stdout, format, st)
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "removes all cached sculptures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			if err := client.ClearCache(cmd.Context()); err != nil {
				return err
			}
			log.Info("sculpture cache cleared")
			return nil
		},
	}
}

func printStats(w io.Writer, format string, st *model.CacheStats) error {
	switch format {
	case util.FormatJSON:
		return util.PrintJSON(w, st)
	case util.FormatText, "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "keys\t%d\n", st.TotalKeys)
		fmt.Fprintf(tw, "sculptures\t%d\n", st.SculptureCount)
		fmt.Fprintf(tw, "sessions\t%d\n", st.SessionCount)
		fmt.Fprintf(tw, "hits\t%d\n", st.Hits)
		fmt.Fprintf(tw, "misses\t%d\n", st.Misses)
		fmt.Fprintf(tw, "hit rate\t%.1f%%\n", st.HitRate*100)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
