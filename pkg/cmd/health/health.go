package health

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/pkg/api"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
)

var ErrUnhealthy = errors.New("job service unhealthy")

func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "checks the job service and its worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.NewClient()
			if err != nil {
				return err
			}
			h, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "api:    %s\nredis:  %s\ncelery: %s\n", h.API, h.Redis, h.Celery)
			if v, err := client.ServerVersion(cmd.Context()); err == nil {
				supported := "supported"
				if !api.CheckServerVersion(v) {
					supported = fmt.Sprintf("unsupported, need %s", api.RequiredServerVersion)
				}
				fmt.Fprintf(os.Stdout, "version: %s (%s)\n", v, supported)
			}
			if !h.Healthy() {
				return ErrUnhealthy
			}
			return nil
		},
	}
}
