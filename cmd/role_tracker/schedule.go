package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/role-tracker/internal/cadence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleFlags struct {
	cron      string
	immediate bool
	serve     bool
	export    bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run discovery and tracking on a cron cadence",
	Long: `Runs a full cycle (discovery batch, then tracking pass) on the schedule.cron cadence until
interrupted. A cycle that is still running when the next one is due is skipped. With --serve the
projections API runs in the same process, which makes the in-memory store usable.`,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVar(&scheduleFlags.cron, "cron", "", "Cron spec or descriptor such as @every 6h (defaults to schedule.cron)")
	f.BoolVar(&scheduleFlags.immediate, "now", false, "Run one cycle immediately on start")
	f.BoolVar(&scheduleFlags.serve, "serve", false, "Also serve the projections API")
	f.BoolVar(&scheduleFlags.export, "export", false, "Export projections after each cycle")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	spec := a.cfg.Schedule.Cron
	if scheduleFlags.cron != "" {
		spec = scheduleFlags.cron
	}

	opts := []cadence.Option{cadence.WithLogger(a.logger.Named("cadence"))}
	if scheduleFlags.immediate {
		opts = append(opts, cadence.RunImmediately())
	}
	sched, err := cadence.New(spec, func(ctx context.Context) error {
		return a.cycle(ctx, scheduleFlags.export, false)
	}, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var served <-chan struct{}
	if scheduleFlags.serve {
		served = a.serveInBackground(ctx)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("next cycle", zap.Time("at", sched.Next()))

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	sched.Stop(stopCtx)
	if served != nil {
		<-served
	}
	return nil
}
