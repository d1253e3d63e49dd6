package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/layout"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stats"
)

// JobFlags are shared by the commands that run a sculpture job
type JobFlags struct {
	Out    string
	Format string
	TUI    bool
}

func (f *JobFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Out, "out", "",
		"write the generated meshes as JSON to this file (- for stdout)")
	cmd.Flags().StringVar(&f.Format, "format", FormatText,
		"summary format (text, json, yaml)")
	cmd.Flags().BoolVar(&f.TUI, "tui", false,
		"show a progress bar instead of log lines")
}

// ParseSessionArgs parses "<year> <round> <session>" from the first args
func ParseSessionArgs(args []string) (year, round int, session string, err error) {
	if len(args) < 3 {
		return 0, 0, "", fmt.Errorf("expected <year> <round> <session>")
	}
	if year, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, "", fmt.Errorf("invalid year %q", args[0])
	}
	if round, err = strconv.Atoi(args[1]); err != nil {
		return 0, 0, "", fmt.Errorf("invalid round %q", args[1])
	}
	return year, round, args[2], nil
}

// SignalContext returns a context cancelled on SIGINT/SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ExecuteJob runs a sculpture job end to end: setup, job tracking, geometry
// synthesis and output.
func ExecuteJob(parent context.Context, req model.JobRequest, flags *JobFlags) error {
	if err := SetupLogger(); err != nil {
		return err
	}
	ctx, stop := SignalContext(parent)
	defer stop()

	env, err := NewEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.WaitForServices(ctx); err != nil {
		return err
	}
	env.CheckVersion(ctx)
	env.WarnIfUnhealthy(ctx)

	res, err := env.RunJob(ctx, req, RunOptions{TUI: flags.TUI, Relay: config.NatsRelay})
	if err != nil {
		return err
	}
	lay := layout.New(geometry.NewSynthesizer())
	if _, isSingle := req.(model.SculptureRequest); isSingle {
		if _, err := lay.ShowSingle(res.Sculpture); err != nil {
			return err
		}
	} else if _, err := lay.Layout(ctx, res.Datasets()); err != nil {
		return err
	}
	if res.Comparison != nil &&
		res.Comparison.TotalGenerated < res.Comparison.TotalRequested {
		log.Warn("not all sculptures could be generated",
			log.Int("requested", res.Comparison.TotalRequested),
			log.Int("generated", res.Comparison.TotalGenerated))
	}
	defer lay.Clear()

	if err := PrintSummary(os.Stdout, flags.Format, stats.Summarize(res.Datasets())); err != nil {
		return err
	}
	if flags.Out != "" {
		if err := WriteMeshes(flags.Out, lay.Meshes()); err != nil {
			return err
		}
		log.Info("meshes written", log.String("file", flags.Out), log.Int("count", lay.Len()))
	}
	return nil
}
