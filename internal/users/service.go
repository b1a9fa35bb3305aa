package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type Service struct {
	db        db.DBTX
	tx        db.TxRunner
	repo      RepositoryInterface
	issuer    TokenIssuer
	audit     audit.RecorderInterface
	publisher messaging.PublisherInterface
	hashCost  int
	now       func() time.Time
}

func NewService(
	pool db.DBTX,
	tx db.TxRunner,
	repo RepositoryInterface,
	issuer TokenIssuer,
	recorder audit.RecorderInterface,
	publisher messaging.PublisherInterface,
) *Service {
	return &Service{
		db:        pool,
		tx:        tx,
		repo:      repo,
		issuer:    issuer,
		audit:     recorder,
		publisher: publisher,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

var (
	_ ServiceInterface   = (*Service)(nil)
	_ auth.StatusChecker = (*Service)(nil)
)

func validateRegistration(req *RegisterRequest) error {
	roles := make([]interface{}, len(auth.Roles))
	for i, r := range auth.Roles {
		roles[i] = r
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&req.Email, validation.Required, is.EmailFormat),
		validation.Field(&req.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&req.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.Role, validation.Required, validation.In(roles...)),
	)
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validateRegistration(&req); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Status:       StatusPending,
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		if err := s.repo.Create(ctx, q, user); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     user.ID,
			Action:      audit.ActionCreate,
			TableName:   audit.TableUsers,
			RecordID:    user.ID,
			NewState:    user.AuditSnapshot(),
			Description: "User registered",
		})
	})
	if err != nil {
		return nil, err
	}

	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventUserRegistered,
		messaging.NewUserEvent(messaging.EventUserRegistered, user.ID, messaging.UserData{
			UserID:    user.ID,
			Username:  user.Username,
			Role:      user.Role,
			NewStatus: user.Status,
		}))

	log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered, awaiting approval")
	return user, nil
}

// Login checks the credentials first so that the account status is only
// revealed to the account owner.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	identifier := strings.TrimSpace(req.identifier())
	if identifier == "" || req.Password == "" {
		return nil, apperr.Validation("username or email and password are required")
	}

	user, err := s.repo.FindByLogin(ctx, s.db, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}

	if user.Status != StatusApproved {
		return nil, &AccountStatusError{Status: user.Status}
	}

	token, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, s.db, userID)
}

func (s *Service) ListConsultants(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx, s.db, auth.RoleConsultant, StatusApproved)
}

func (s *Service) ListPendingUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx, s.db, "", StatusPending)
}

func (s *Service) ApproveUser(ctx context.Context, actorID, userID string) (*User, error) {
	return s.review(ctx, actorID, userID, StatusApproved)
}

func (s *Service) RejectUser(ctx context.Context, actorID, userID string) (*User, error) {
	return s.review(ctx, actorID, userID, StatusRejected)
}

// review moves a pending user to status. Only pending users can be
// reviewed.
func (s *Service) review(ctx context.Context, actorID, userID, status string) (*User, error) {
	var before, after User
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.GetByID(ctx, q, userID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return ErrNotPending
		}

		at := s.now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, q, userID, StatusPending, status, actorID, at)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}

		before = *current
		after = *current
		after.Status = status
		after.ReviewedAt = &at
		after.UpdatedAt = &at
		if actorID != "" {
			after.ReviewedBy = &actorID
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			TableName:   audit.TableUsers,
			RecordID:    userID,
			OldState:    before.AuditSnapshot(),
			NewState:    after.AuditSnapshot(),
			Description: fmt.Sprintf("User %s %s", after.Username, status),
		})
	})
	if err != nil {
		return nil, err
	}

	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventUserStatusChanged,
		messaging.NewUserEvent(messaging.EventUserStatusChanged, actorID, messaging.UserData{
			UserID:    after.ID,
			Username:  after.Username,
			Role:      after.Role,
			OldStatus: before.Status,
			NewStatus: after.Status,
		}))

	log.Info().Str("user_id", userID).Str("actor_id", actorID).Str("status", status).Msg("user reviewed")
	return &after, nil
}

// IsApproved lets the token middleware reject tokens of accounts that were
// rejected after the token was issued. Unknown users are not approved.
func (s *Service) IsApproved(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.GetByID(ctx, s.db, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Status == StatusApproved, nil
}

// SeedAdmin creates an approved Super Admin unless the username or email is
// already registered.
func (s *Service) SeedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	req := RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
		FullName: "System Administrator",
		Role:     auth.RoleSuperAdmin,
	}
	if err := validateRegistration(&req); err != nil {
		return false, apperr.Validation("seed admin: " + err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Status:       StatusApproved,
	}

	var created bool
	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		ok, err := s.repo.InsertIfMissing(ctx, q, admin)
		created = ok
		if err != nil || !ok {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			Action:      audit.ActionCreate,
			TableName:   audit.TableUsers,
			RecordID:    admin.ID,
			NewState:    admin.AuditSnapshot(),
			Description: "Administrator seeded",
		})
	})
	return created, err
}
