package sculpt

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

func NewSculptCmd() *cobra.Command {
	flags := &util.JobFlags{}
	cmd := &cobra.Command{
		Use:     "sculpt <year> <round> <session> <driver>",
		Short:   "generates the g-force sculpture of a driver's fastest lap",
		Example: "  gfs sculpt 2024 8 Q LEC --out lec.json",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, round, session, err := util.ParseSessionArgs(args)
			if err != nil {
				return err
			}
			req := model.SculptureRequest{
				Year: year, Round: round, Session: session, Driver: args[3],
			}.Normalize()
			return util.ExecuteJob(cmd.Context(), req, flags)
		},
	}
	flags.Register(cmd)
	return cmd
}
