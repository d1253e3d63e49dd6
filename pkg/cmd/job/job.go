package job

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
)

func NewStatusCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "shows the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			st, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw {
				return util.PrintJSON(os.Stdout, st)
			}
			v := progress.Next(progress.Submitted(st.TaskID), st.ToProgress())
			fmt.Fprintf(os.Stdout, "%s  %s\n", st.Status, v.String())
			if v.Subtitle != "" {
				fmt.Fprintln(os.Stdout, v.Subtitle)
			}
			if e := st.Error.GetOr(""); e != "" {
				fmt.Fprintf(os.Stdout, "error: %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the status response as JSON")
	return cmd
}

func NewCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "cancels a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			if err := client.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			log.Info("cancel requested", log.String("taskID", args[0]))
			return nil
		},
	}
}
