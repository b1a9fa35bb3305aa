// Package app wires repositories, services and handlers from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/bed"
	"github.com/hdu-care/hdu-service/internal/config"
	"github.com/hdu-care/hdu-service/internal/criticalfactor"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/document"
	httpapi "github.com/hdu-care/hdu-service/internal/http"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/patient"
	"github.com/hdu-care/hdu-service/internal/telemetry"
	"github.com/hdu-care/hdu-service/internal/users"
	"github.com/hdu-care/hdu-service/internal/vitals"
	"github.com/rs/zerolog/log"
)

// Services holds one instance of every domain service.
type Services struct {
	Users           *users.Service
	Beds            *bed.Service
	Patients        *patient.Service
	CriticalFactors *criticalfactor.Service
	Vitals          *vitals.Service
	Documents       *document.Service

	BedRepo *bed.Repository
}

// NewPublisher connects to RabbitMQ, or returns a publisher that drops
// events when no URL is configured. A broker that cannot be reached is
// logged and also falls back to dropping events.
func NewPublisher(url string) messaging.PublisherInterface {
	if url == "" {
		log.Warn().Msg("RABBITMQ_URL not set, domain events will not be published")
		return messaging.NoopPublisher{}
	}
	pub, err := messaging.NewPublisher(url)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to RabbitMQ, domain events will not be published")
		return messaging.NoopPublisher{}
	}
	return pub
}

// NewStorage returns the configured document storage backend.
func NewStorage(ctx context.Context, cfg *config.Config) (document.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s, err := document.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageLocal, "":
		s, err := document.NewLocalStorage(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewServices builds the service graph on pool. metrics may be nil.
func NewServices(
	pool *sql.DB,
	storage document.Storage,
	issuer users.TokenIssuer,
	publisher messaging.PublisherInterface,
	metrics *telemetry.Metrics,
) *Services {
	tx := db.NewTransactor(pool)
	recorder := audit.NewRecorder()

	vitalsSvc := vitals.NewService(pool, tx, vitals.NewRepository(), recorder)
	docSvc := document.NewService(pool, tx, document.NewRepository(), storage, recorder)
	patientSvc := patient.NewService(pool, tx, patient.NewRepository(), docSvc, recorder, audit.NewRepository(pool), publisher)
	bedRepo := bed.NewRepository()
	bedSvc := bed.NewService(pool, tx, bedRepo, patientSvc, docSvc, recorder, publisher)
	cfSvc := criticalfactor.NewService(pool, tx, criticalfactor.NewRepository(), vitalsSvc, recorder, publisher)
	userSvc := users.NewService(pool, tx, users.NewRepository(), issuer, recorder, publisher)

	if metrics != nil {
		patientSvc.WithMetrics(metrics)
		bedSvc.WithMetrics(metrics)
		cfSvc.WithMetrics(metrics)
	}

	return &Services{
		Users:           userSvc,
		Beds:            bedSvc,
		Patients:        patientSvc,
		CriticalFactors: cfSvc,
		Vitals:          vitalsSvc,
		Documents:       docSvc,
		BedRepo:         bedRepo,
	}
}

// Handlers builds the HTTP handlers for s.
func (s *Services) Handlers() httpapi.Handlers {
	return httpapi.Handlers{
		Users:           users.NewHandler(s.Users),
		Beds:            bed.NewHandler(s.Beds),
		Patients:        patient.NewHandler(s.Patients),
		CriticalFactors: criticalfactor.NewHandler(s.CriticalFactors),
		Vitals:          vitals.NewHandler(s.Vitals),
		Documents:       document.NewHandler(s.Documents),
	}
}

// SeedResult counts what Seed inserted.
type SeedResult struct {
	Beds         int
	VitalConfigs int
	AdminCreated bool
}

// Seed creates the bed pool, the default vital sign ranges and, when
// credentials are configured, the first Super Admin. Running it again
// inserts nothing.
func (s *Services) Seed(ctx context.Context, pool *sql.DB, cfg *config.Config) (*SeedResult, error) {
	var res SeedResult
	var err error

	if res.Beds, err = s.BedRepo.Seed(ctx, pool, bed.DefaultPoolSize); err != nil {
		return nil, fmt.Errorf("seed beds: %w", err)
	}
	if res.VitalConfigs, err = s.Vitals.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("seed vital sign configuration: %w", err)
	}

	if cfg.SeedAdminUsername != "" && cfg.SeedAdminPassword != "" {
		if res.AdminCreated, err = s.Users.SeedAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	} else {
		log.Info().Msg("SEED_ADMIN_USERNAME or SEED_ADMIN_PASSWORD not set, skipping admin account")
	}
	return &res, nil
}

// NewIssuer builds the token issuer and verifier from cfg.
func NewIssuer(cfg *config.Config) (*auth.Issuer, *auth.Verifier, error) {
	authCfg, err := auth.NewConfig(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewIssuer(authCfg), auth.NewVerifier(authCfg), nil
}
