package vitals

import (
	"context"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/rs/zerolog/log"
)

// ServiceInterface defines the contract for vital sign configuration logic
type ServiceInterface interface {
	ListConfigs(ctx context.Context, activeOnly bool) ([]Config, error)
	CreateConfig(ctx context.Context, actorID string, req CreateConfigRequest) (*Config, error)
	UpdateConfig(ctx context.Context, actorID, id string, req UpdateConfigRequest) (*Config, error)
	DeleteConfig(ctx context.Context, actorID, id string) error
}

type Service struct {
	db    db.DBTX
	tx    db.TxRunner
	repo  RepositoryInterface
	audit audit.RecorderInterface
}

func NewService(pool db.DBTX, tx db.TxRunner, repo RepositoryInterface, recorder audit.RecorderInterface) *Service {
	return &Service{db: pool, tx: tx, repo: repo, audit: recorder}
}

var _ ServiceInterface = (*Service)(nil)

var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func validateDataType(dt string) error {
	return validation.Validate(dt, validation.In(DataTypeNumber, DataTypeText).Error("dataType must be number or text"))
}

func (s *Service) ListConfigs(ctx context.Context, activeOnly bool) ([]Config, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}

// ActiveConfigs is read on every classification; it is never cached.
func (s *Service) ActiveConfigs(ctx context.Context) ([]Config, error) {
	return s.repo.List(ctx, s.db, true)
}

func (s *Service) CreateConfig(ctx context.Context, actorID string, req CreateConfigRequest) (*Config, error) {
	if req.DataType == "" {
		req.DataType = DataTypeNumber
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 100),
			validation.Match(namePattern).Error("must start with a letter and contain only letters, digits and underscores")),
		validation.Field(&req.Label, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.DataType, validation.By(func(interface{}) error { return validateDataType(req.DataType) })),
	)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := ValidateRange(req.NormalRangeMin, req.NormalRangeMax); err != nil {
		return nil, err
	}

	c := &Config{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Label:          req.Label,
		Unit:           req.Unit,
		DataType:       req.DataType,
		NormalRangeMin: req.NormalRangeMin,
		NormalRangeMax: req.NormalRangeMax,
		IsActive:       req.IsActive == nil || *req.IsActive,
		DisplayOrder:   req.DisplayOrder,
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		if err := s.repo.Create(ctx, q, c); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionCreate,
			TableName:   audit.TableVitalSignsConfig,
			RecordID:    c.ID,
			NewState:    c.AuditSnapshot(),
			Description: fmt.Sprintf("Vital sign %s created", c.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("name", c.Name).Str("actor_id", actorID).Msg("vital sign config created")
	return c, nil
}

func (s *Service) UpdateConfig(ctx context.Context, actorID, id string, req UpdateConfigRequest) (*Config, error) {
	if req.DataType != nil {
		if err := validateDataType(*req.DataType); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}
	if req.Label != nil && *req.Label == "" {
		return nil, apperr.Validation("label: cannot be blank")
	}

	var updated Config
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.Get(ctx, q, id)
		if err != nil {
			return err
		}
		updated = req.Apply(*current)
		if err := ValidateRange(updated.NormalRangeMin, updated.NormalRangeMax); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, q, &updated); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			TableName:   audit.TableVitalSignsConfig,
			RecordID:    id,
			OldState:    current.AuditSnapshot(),
			NewState:    updated.AuditSnapshot(),
			Description: fmt.Sprintf("Vital sign %s updated", current.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeleteConfig(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return err
	}
	log.Info().Str("config_id", id).Str("actor_id", actorID).Msg("vital sign config deleted")
	return nil
}

// SeedDefaults inserts DefaultConfigs, keeping any existing row of the same
// name untouched. It returns how many rows were added.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		added = 0
		for _, d := range DefaultConfigs() {
			c := &Config{
				ID:             uuid.New().String(),
				Name:           d.Name,
				Label:          d.Label,
				Unit:           d.Unit,
				DataType:       DataTypeNumber,
				NormalRangeMin: d.NormalRangeMin,
				NormalRangeMax: d.NormalRangeMax,
				IsActive:       true,
				DisplayOrder:   d.DisplayOrder,
			}
			ok, err := s.repo.InsertIfMissing(ctx, q, c)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	return added, err
}
