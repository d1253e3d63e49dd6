/*
	Copyright 2024 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/compare"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/health"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/job"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/meta"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/sculpt"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/serve"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream/natsstream"
	"github.com/mpapenbr/gforce-sculpture/version"
)

const envPrefix = "GFS"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gfs",
	Short:   "Client for the F1 g-force sculpture service",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.gfs.yml)")

	rootCmd.PersistentFlags().StringVar(&config.APIURL, "api-url",
		"http://localhost:8000",
		"base URL of the sculpture job service")
	rootCmd.PersistentFlags().StringVar(&config.StreamTransport, "stream-transport",
		util.TransportWebsocket,
		"transport for progress streams (websocket, nats)")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL, "nats-url",
		"nats://localhost:4222",
		"NATS server used by nats transport, relay and shared cache")
	rootCmd.PersistentFlags().StringVar(&config.NatsSubjectPrefix, "nats-subject-prefix",
		natsstream.DefaultSubjectPrefix,
		"subject prefix of task progress on NATS")
	rootCmd.PersistentFlags().BoolVar(&config.NatsRelay, "nats-relay",
		false,
		"republish websocket progress on NATS")
	rootCmd.PersistentFlags().StringVar(&config.CacheType, "cache",
		util.CacheMemory,
		"result cache (none, memory, nats)")
	rootCmd.PersistentFlags().DurationVar(&config.CacheTTL, "cache-ttl",
		24*time.Hour,
		"expiry of cached sculptures")
	rootCmd.PersistentFlags().DurationVar(&config.RequestTimeout, "request-timeout",
		30*time.Second,
		"timeout of a single REST request")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().BoolVar(&config.SkipVersionCheck, "skip-version-check",
		false,
		"do not compare the service version")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. \"debug+:tracker* info+:*\"")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"otlp grpc endpoint for telemetry (stdout prints to stderr)")

	rootCmd.PersistentFlags().DurationVar(&config.Tracker.ReconnectBase,
		"reconnect-base",
		config.Tracker.ReconnectBase,
		"delay before the first stream reconnect")
	rootCmd.PersistentFlags().Float64Var(&config.Tracker.ReconnectFactor,
		"reconnect-factor",
		config.Tracker.ReconnectFactor,
		"growth factor of the reconnect delay")
	rootCmd.PersistentFlags().IntVar(&config.Tracker.MaxReconnects,
		"max-reconnects",
		config.Tracker.MaxReconnects,
		"reconnect attempts before falling back to polling")
	rootCmd.PersistentFlags().DurationVar(&config.Tracker.PollInterval,
		"poll-interval",
		config.Tracker.PollInterval,
		"interval of status polls")
	rootCmd.PersistentFlags().IntVar(&config.Tracker.MaxPolls,
		"max-polls",
		config.Tracker.MaxPolls,
		"status polls before giving up")
	rootCmd.PersistentFlags().DurationVar(&config.Tracker.PingInterval,
		"ping-interval",
		config.Tracker.PingInterval,
		"keepalive interval on the progress stream")

	// add commands here
	rootCmd.AddCommand(sculpt.NewSculptCmd())
	rootCmd.AddCommand(compare.NewCompareCmd())
	rootCmd.AddCommand(job.NewStatusCmd())
	rootCmd.AddCommand(job.NewCancelCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(meta.NewEventsCmd())
	rootCmd.AddCommand(meta.NewSessionsCmd())
	rootCmd.AddCommand(meta.NewDriversCmd())
	rootCmd.AddCommand(cache.NewCacheCmd())
	rootCmd.AddCommand(serve.NewServeCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".gfs" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gfs")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --api-url to GFS_API_URL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
