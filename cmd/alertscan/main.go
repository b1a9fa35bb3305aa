package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/hdu-care/hdu-service/internal/app"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/config"
	"github.com/hdu-care/hdu-service/internal/criticalfactor"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/logging"
	"github.com/hdu-care/hdu-service/internal/telemetry"
	"github.com/hdu-care/hdu-service/internal/vitals"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	var once bool

	rootCmd := &cobra.Command{
		Use:          "alertscan",
		Short:        "Periodically re-evaluate the latest vitals and publish critical alerts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), once)
		},
	}
	rootCmd.Flags().BoolVar(&once, "once", false, "Run a single scan and exit")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context, once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.LoadConfig(cfg.Env)
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		tcfg.ServiceName = "hdu-alertscan"
	}
	if provider, err := telemetry.InitProvider(ctx, tcfg); err != nil {
		log.Warn().Err(err).Msg("telemetry disabled")
	} else {
		defer provider.Shutdown(context.Background())
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	pool, err := db.Connect(connectCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	publisher := app.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()

	tx := db.NewTransactor(pool)
	recorder := audit.NewRecorder()
	configs := vitals.NewService(pool, tx, vitals.NewRepository(), recorder)
	service := criticalfactor.NewService(pool, tx, criticalfactor.NewRepository(), configs, recorder, publisher)

	scanner := criticalfactor.NewScanner(service, publisher, cfg.CriticalLookback)
	if metrics, err := telemetry.InitMetrics(); err == nil {
		scanner.WithMetrics(metrics)
	}

	scan := func() {
		scanCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := scanner.Scan(scanCtx); err != nil {
			log.Error().Err(err).Msg("critical vitals scan failed")
		}
	}

	if once {
		scan()
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	job, err := sched.NewJob(
		gocron.DurationJob(cfg.CriticalScanInterval),
		gocron.NewTask(scan),
		gocron.WithName("critical-vitals-scan"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule scan: %w", err)
	}

	log.Info().
		Str("job_id", job.ID().String()).
		Dur("interval", cfg.CriticalScanInterval).
		Dur("lookback", cfg.CriticalLookback).
		Msg("critical vitals scanner started")

	sched.Start()
	<-ctx.Done()

	log.Info().Msg("stopping critical vitals scanner")
	return sched.Shutdown()
}
