package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/watcher"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the maturity watcher",
	Long:  `Periodically report announced events that matured without an attestation`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runWatcher(ctx, cfg.Worker, app) })

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Worker stopped")
	return nil
}

// runWatcher scans for overdue events every interval until ctx is done.
func runWatcher(ctx context.Context, cfg config.WorkerConfig, app *application) error {
	w := watcher.New(app.service, app.metrics, cfg.Grace)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			if _, err := w.Scan(ctx); err != nil {
				log.Error().Err(err).Msg("Overdue scan failed")
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule overdue scan")
	}

	log.Info().
		Dur("interval", cfg.Interval).
		Dur("grace", cfg.Grace).
		Msg("Starting maturity watcher")
	scheduler.Start()

	<-ctx.Done()
	return scheduler.Shutdown()
}
