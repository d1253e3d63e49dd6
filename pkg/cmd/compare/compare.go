package compare

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

func NewCompareCmd() *cobra.Command {
	flags := &util.JobFlags{}
	cmd := &cobra.Command{
		Use:     "compare <year> <round> <session> <driver> <driver>...",
		Short:   "generates sculptures of several drivers side by side",
		Example: "  gfs compare 2024 8 Q LEC PIA SAI --format yaml",
		Args: cobra.RangeArgs(3+model.MinCompareDrivers,
			3+model.MaxCompareDrivers),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, round, session, err := util.ParseSessionArgs(args)
			if err != nil {
				return err
			}
			req := model.CompareRequest{
				Year: year, Round: round, Session: session, DriverList: args[3:],
			}.Normalize()
			if err := req.Validate(); err != nil {
				return fmt.Errorf("%w: %w", model.ErrSubmission, err)
			}
			return util.ExecuteJob(cmd.Context(), req, flags)
		},
	}
	flags.Register(cmd)
	return cmd
}
