package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/digest/internal/app"
	"github.com/deusflow/digest/internal/metrics"
	"github.com/deusflow/digest/internal/scheduler"
)

func newRunCmd(c *cli) *cobra.Command {
	var opts app.BuildOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate one digest now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runOnce(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "stored interest profile to use")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "output directory for digest files")
	return cmd
}

func newScheduleCmd(c *cli) *cobra.Command {
	var (
		at   string
		opts app.BuildOptions
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate a digest every day at a fixed time",
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, err := scheduler.NewDaily(at, c.cfg.Location(), c.log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = daily.Run(ctx, func(ctx context.Context) error {
				return c.runOnce(ctx, cmd, opts)
			})
			if errors.Is(err, context.Canceled) {
				c.log.Info("scheduler stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&at, "time", "t", "08:00", "daily run time (HH:MM)")
	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "stored interest profile to use")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "output directory for digest files")
	return cmd
}

// runOnce builds a fresh pipeline and runs it. An empty run is reported, not failed.
func (c *cli) runOnce(ctx context.Context, cmd *cobra.Command, opts app.BuildOptions) error {
	opts.Metrics = metrics.Global
	p, err := app.Build(ctx, c.cfg, c.log, opts)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			c.log.Warn("error closing pipeline", "error", err)
		}
	}()

	res, err := p.Run(ctx)
	out := cmd.OutOrStdout()
	if errors.Is(err, app.ErrNoArticles) {
		fmt.Fprintf(out, "No digest generated: %s\n", res.Reason)
		return nil
	}
	if err != nil {
		return err
	}

	formats := make([]string, 0, len(res.Artifacts))
	for f := range res.Artifacts {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	fmt.Fprintf(out, "Digest with %d articles generated:\n", len(res.Articles))
	for _, f := range formats {
		fmt.Fprintf(out, "  %s: %s\n", f, res.Artifacts[f])
	}
	return nil
}
