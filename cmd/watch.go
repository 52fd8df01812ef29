package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/watch"
)

var (
	watchSchedule string
	watchRunNow   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for notifications on a cron schedule",
	Long: `Runs poll on the configured cron schedule (watch.schedule, default
"@every 5m") until interrupted. A tick that starts while the previous poll is
still running is skipped. Results are logged and forwarded to the configured
notification channels.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "",
		"cron expression overriding watch.schedule")
	watchCmd.Flags().BoolVar(&watchRunNow, "run-now", true,
		"poll once immediately before waiting for the first tick")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	expr := cfg.Watch.Schedule
	if watchSchedule != "" {
		expr = watchSchedule
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("shutting down watch")
		cancel()
	}()

	p, err := newPoller(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	sched, err := watch.New(expr, func(ctx context.Context) error {
		_, err := p.poll(ctx, pollRequest{})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("hubwatch watch"))
	fmt.Printf("Hub:      %s\n", cfg.Hub.URL)
	fmt.Printf("Schedule: %s\n", expr)
	fmt.Println(dimStyle.Render("Press Ctrl+C to stop."))

	if watchRunNow {
		// Errors are logged by the scheduler.
		_ = sched.RunNow(ctx)
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}
