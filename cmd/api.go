package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dorucioclea/dlc-stack/internal/api"
	"github.com/dorucioclea/dlc-stack/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server that announces and attests events`,
	RunE:  runAPI,
}

var withWatcher bool

func init() {
	apiCmd.Flags().BoolVar(&withWatcher, "with-watcher", false, "also run the maturity watcher in this process")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}
	defer tracer.Close()

	server := api.NewServer(cfg, app.service, app.metrics, tracer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	if withWatcher {
		g.Go(func() error { return runWatcher(ctx, cfg.Worker, app) })
	}

	err = g.Wait()
	log.Info().Msg("API server stopped")
	return err
}
