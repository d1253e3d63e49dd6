package meta

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

func NewEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <year>",
		Short: "lists the events of a season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			events, err := client.Events(cmd.Context(), year)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROUND\tEVENT\tLOCATION\tDATE")
			for _, e := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s, %s\t%s\n", e.Round, e.Name, e.Location, e.Country, e.Date)
			}
			return tw.Flush()
		},
	}
}

func NewSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <year> <round>",
		Short: "lists the sessions of an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			round, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid round %q", args[1])
			}
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			es, err := client.Sessions(cmd.Context(), year, round)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, es.EventName)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, s := range es.Sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.FullName, s.Date)
			}
			return tw.Flush()
		},
	}
}

func NewDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers <year> <round> <session>",
		Short: "lists the drivers of a session",
		Long: `Lists the drivers of a session. The abbreviation is the driver code
expected by sculpt and compare.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, round, session, err := util.ParseSessionArgs(args)
			if err != nil {
				return err
			}
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			drivers, err := client.Drivers(cmd.Context(), year, round,
				strings.ToUpper(session))
			if err != nil {
				return err
			}
			return printDrivers(os.Stdout, drivers)
		},
	}
}

func printDrivers(w io.Writer, drivers []model.SessionDriver) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNO\tNAME\tTEAM")
	for _, d := range drivers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Abbreviation, d.Number, d.FullName, d.TeamName)
	}
	return tw.Flush()
}
