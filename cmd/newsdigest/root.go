package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/metrics"
)

// cli holds state shared by all subcommands after config is loaded.
type cli struct {
	cfgPath string
	cfg     *config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "newsdigest",
		Short: "Personalized news digest generator",
		Long: `newsdigest fetches syndication feeds, extracts full articles, keeps the ones
matching your interests, summarizes them and writes a dated digest.

Example usage:
  newsdigest run                          # one digest with configs/config.yaml
  newsdigest run --profile "Jane Doe"     # use a stored interest profile
  newsdigest schedule --time 08:00        # run every day at 08:00
  newsdigest profiles list                # list stored profiles`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file (default configs/config.yaml or $DIGEST_CONFIG)")

	root.AddCommand(newRunCmd(c), newScheduleCmd(c), newProfilesCmd(c))
	return root
}

func (c *cli) init() error {
	boot := logger.Init("info")
	cfg, err := config.Load(c.cfgPath, boot)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	c.log = logger.Init(level)

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer(metrics.Global, c.log)
	}
	return nil
}
