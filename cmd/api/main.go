package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hdu-care/hdu-service/internal/app"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/config"
	"github.com/hdu-care/hdu-service/internal/db"
	httpapi "github.com/hdu-care/hdu-service/internal/http"
	"github.com/hdu-care/hdu-service/internal/logging"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hdu-service",
		Short:        "High Dependency Unit management API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

func connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return db.Connect(ctx, cfg)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitProvider(ctx, telemetry.LoadConfig(cfg.Env))
	if err != nil {
		log.Warn().Err(err).Msg("telemetry disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shut down telemetry")
			}
		}()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("custom metrics unavailable")
		metrics = nil
	}

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if applied, err := db.NewMigrator(pool).Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	} else if applied > 0 {
		log.Info().Int("applied", applied).Msg("database migrations applied")
	}

	perms, err := auth.LoadPermissions(cfg.PermissionsFile)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	issuer, verifier, err := app.NewIssuer(cfg)
	if err != nil {
		return err
	}

	storage, err := app.NewStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	publisher := app.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()

	services := app.NewServices(pool, storage, issuer, publisher, metrics)

	opts := httpapi.Options{
		Verifier:       verifier,
		Permissions:    perms,
		Status:         services.Users,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginLimit: httpapi.RateLimiterConfig{
			RequestsPerSecond: cfg.LoginRateLimitRPS,
			Burst:             cfg.LoginRateLimitBurst,
			TrustProxy:        cfg.TrustProxy,
		},
	}
	if metrics != nil {
		opts.Metrics = metrics
	}
	if cfg.StorageBackend == config.StorageLocal {
		opts.UploadDir = cfg.UploadDir
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupRouter(services.Handlers(), opts),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of up to ten 100MB files need a generous body timeout.
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the bed pool, default vital sign ranges and the first Super Admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if _, err := db.NewMigrator(pool).Up(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			storage, err := app.NewStorage(ctx, cfg)
			if err != nil {
				return err
			}
			services := app.NewServices(pool, storage, nil, messaging.NoopPublisher{}, nil)

			res, err := services.Seed(ctx, pool, cfg)
			if err != nil {
				return err
			}

			log.Info().
				Int("beds", res.Beds).
				Int("vital_configs", res.VitalConfigs).
				Bool("admin_created", res.AdminCreated).
				Msg("seed complete")
			return nil
		},
	}
}
