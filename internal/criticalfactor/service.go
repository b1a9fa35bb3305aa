package criticalfactor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/vitals"
	"github.com/rs/zerolog/log"
)

// ServiceInterface defines the contract for critical factor business logic
type ServiceInterface interface {
	Create(ctx context.Context, actorID string, req CreateRequest) (*CriticalFactor, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]CriticalFactor, error)
	Get(ctx context.Context, id string) (*CriticalFactor, error)
	Amend(ctx context.Context, actorID, id string, req AmendRequest) (*CriticalFactor, error)
	CriticalPatients(ctx context.Context, query CriticalQuery) ([]CriticalPatient, error)
	Acknowledge(ctx context.Context, actorID string, req AcknowledgeRequest) (*Acknowledgement, error)
	AlertAnalytics(ctx context.Context, days int) (*AlertAnalytics, error)
}

// ConfigSource yields the vital configuration in force. It is read on every
// classification.
type ConfigSource interface {
	ActiveConfigs(ctx context.Context) ([]vitals.Config, error)
}

// MetricsRecorder counts raised and acknowledged alerts.
type MetricsRecorder interface {
	RecordCriticalAlert(ctx context.Context, source string)
	RecordAlertAcknowledged(ctx context.Context)
}

type Service struct {
	db        db.DBTX
	tx        db.TxRunner
	repo      RepositoryInterface
	configs   ConfigSource
	audit     audit.RecorderInterface
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	now       func() time.Time
}

func NewService(
	pool db.DBTX,
	tx db.TxRunner,
	repo RepositoryInterface,
	configs ConfigSource,
	recorder audit.RecorderInterface,
	publisher messaging.PublisherInterface,
) *Service {
	return &Service{
		db:        pool,
		tx:        tx,
		repo:      repo,
		configs:   configs,
		audit:     recorder,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithMetrics sets the alert counters.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

var _ ServiceInterface = (*Service)(nil)

func validateReadings(r *Readings) error {
	nonNegative := validation.Min(0.0)
	return validation.ValidateStruct(r,
		validation.Field(&r.HeartRate, nonNegative),
		validation.Field(&r.BloodPressureSystolic, nonNegative),
		validation.Field(&r.BloodPressureDiastolic, nonNegative),
		validation.Field(&r.SpO2, nonNegative, validation.Max(100.0)),
		validation.Field(&r.GCS, validation.Min(3.0), validation.Max(15.0)),
		validation.Field(&r.PainScale, nonNegative, validation.Max(10.0)),
		validation.Field(&r.BloodGlucose, nonNegative),
		validation.Field(&r.UrineOutput, nonNegative),
	)
}

// flag classifies a sample against the current configuration.
func flag(r *Readings, configs []vitals.Config) (vitals.Flags, error) {
	return vitals.Classify(r.Sample(), configs)
}

func (s *Service) withFlags(ctx context.Context, factors []CriticalFactor) error {
	if len(factors) == 0 {
		return nil
	}
	configs, err := s.configs.ActiveConfigs(ctx)
	if err != nil {
		return err
	}
	for i := range factors {
		if factors[i].Flags, err = flag(&factors[i].Readings, configs); err != nil {
			return err
		}
	}
	return nil
}

// Create stores a sample. It is classified after commit only to decide
// which events to publish; flags are never stored.
func (s *Service) Create(ctx context.Context, actorID string, req CreateRequest) (*CriticalFactor, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	if err := validation.ValidateStruct(&req, validation.Field(&req.PatientID, validation.Required)); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if req.Readings.Empty() {
		return nil, apperr.Validation("at least one vital sign is required")
	}
	if err := validateReadings(&req.Readings); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	configs, err := s.configs.ActiveConfigs(ctx)
	if err != nil {
		return nil, err
	}
	if err := vitals.ValidateDynamic(req.DynamicVitals, configs); err != nil {
		return nil, err
	}

	cf := &CriticalFactor{
		ID:         uuid.New().String(),
		PatientID:  req.PatientID,
		Readings:   req.Readings,
		RecordedAt: s.now().UTC(),
	}
	if cf.DynamicVitals == nil {
		cf.DynamicVitals = vitals.DynamicVitals{}
	}
	if req.RecordedAt != nil {
		cf.RecordedAt = req.RecordedAt.UTC()
	}
	if actorID != "" {
		cf.RecordedBy = &actorID
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		exists, err := s.repo.PatientExists(ctx, q, cf.PatientID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPatientNotFound
		}
		if cf.AdmissionID, err = s.repo.ActiveAdmissionID(ctx, q, cf.PatientID); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, q, cf); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionCreate,
			TableName:   audit.TableCriticalFactors,
			RecordID:    cf.ID,
			PatientID:   cf.PatientID,
			NewState:    cf.AuditSnapshot(),
			Description: "Vital signs recorded",
		})
	})
	if err != nil {
		return nil, err
	}

	flags, err := flag(&cf.Readings, configs)
	if err != nil {
		log.Error().Err(err).Str("critical_factor_id", cf.ID).Msg("failed to classify recorded vitals")
		return cf, nil
	}
	cf.Flags = flags
	s.publishSample(ctx, actorID, cf, messaging.EventVitalsRecorded)
	if flags.Critical() {
		s.publishSample(ctx, actorID, cf, messaging.EventVitalsCritical)
		if s.metrics != nil {
			s.metrics.RecordCriticalAlert(ctx, "record")
		}
		log.Warn().
			Str("patient_id", cf.PatientID).
			Str("critical_factor_id", cf.ID).
			Strs("vitals", flags.Names()).
			Msg("critical vitals recorded")
	}
	return cf, nil
}

func (s *Service) publishSample(ctx context.Context, actorID string, cf *CriticalFactor, routingKey string) {
	messaging.PublishAfterCommit(ctx, s.publisher, routingKey,
		messaging.NewVitalsEvent(routingKey, actorID, messaging.VitalsData{
			CriticalFactorID: cf.ID,
			PatientID:        cf.PatientID,
			RecordedAt:       cf.RecordedAt,
			Flags:            cf.Flags,
		}))
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit int) ([]CriticalFactor, error) {
	if limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}
	exists, err := s.repo.PatientExists(ctx, s.db, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	factors, err := s.repo.ListByPatient(ctx, s.db, patientID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.withFlags(ctx, factors); err != nil {
		return nil, err
	}
	return factors, nil
}

func (s *Service) Get(ctx context.Context, id string) (*CriticalFactor, error) {
	cf, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	one := []CriticalFactor{*cf}
	if err := s.withFlags(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// Amend corrects the readings of a sample and stamps who changed it and
// why.
func (s *Service) Amend(ctx context.Context, actorID, id string, req AmendRequest) (*CriticalFactor, error) {
	req.AmendmentReason = strings.TrimSpace(req.AmendmentReason)
	if err := validation.ValidateStruct(&req, validation.Field(&req.AmendmentReason, validation.Required)); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validateReadings(&req.Readings); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	configs, err := s.configs.ActiveConfigs(ctx)
	if err != nil {
		return nil, err
	}
	if err := vitals.ValidateDynamic(req.DynamicVitals, configs); err != nil {
		return nil, err
	}

	var amended CriticalFactor
	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.Get(ctx, q, id)
		if err != nil {
			return err
		}

		amended = *current
		amended.Readings = current.Readings.Merge(req.Readings)
		amended.IsAmended = true
		amendedAt := s.now().UTC()
		amended.AmendedAt = &amendedAt
		amended.AmendmentReason = &req.AmendmentReason
		if actorID != "" {
			amended.AmendedBy = &actorID
		}

		if err := s.repo.Update(ctx, q, &amended); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			TableName:   audit.TableCriticalFactors,
			RecordID:    id,
			PatientID:   current.PatientID,
			OldState:    current.AuditSnapshot(),
			NewState:    amended.AuditSnapshot(),
			Description: "Vital signs amended: " + req.AmendmentReason,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("critical_factor_id", id).Str("actor_id", actorID).Msg("vital signs amended")
	flags, err := flag(&amended.Readings, configs)
	if err != nil {
		log.Error().Err(err).Str("critical_factor_id", id).Msg("failed to classify amended vitals")
		return &amended, nil
	}
	amended.Flags = flags
	return &amended, nil
}

func normalizeQuery(query CriticalQuery) (CriticalQuery, error) {
	if query.Mode == "" {
		query.Mode = ModeLatest
	}
	switch query.Mode {
	case ModeLatest:
		query.Hours = 0
	case ModeWindow:
		if query.Hours == 0 {
			query.Hours = DefaultWindowHours
		}
		if query.Hours < 1 || query.Hours > MaxWindowHours {
			return query, apperr.Validation(fmt.Sprintf("hours must be between 1 and %d", MaxWindowHours))
		}
	default:
		return query, apperr.Validation(fmt.Sprintf("unknown mode %q, expected %s or %s", query.Mode, ModeLatest, ModeWindow))
	}
	return query, nil
}

// CriticalPatients lists patients whose newest sample, or any sample in the
// window, is out of range. Each patient appears once with the newest
// flagged sample.
func (s *Service) CriticalPatients(ctx context.Context, query CriticalQuery) ([]CriticalPatient, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	var samples []PatientSample
	if query.Mode == ModeWindow {
		samples, err = s.repo.ListSince(ctx, s.db, s.now().Add(-time.Duration(query.Hours)*time.Hour))
	} else {
		samples, err = s.repo.LatestPerPatient(ctx, s.db)
	}
	if err != nil {
		return nil, err
	}

	configs, err := s.configs.ActiveConfigs(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := []CriticalPatient{}
	for i := range samples {
		sample := samples[i]
		if seen[sample.PatientID] {
			continue
		}
		flags, err := flag(&sample.Readings, configs)
		if err != nil {
			return nil, err
		}
		if !flags.Critical() {
			continue
		}
		seen[sample.PatientID] = true

		cf := sample.CriticalFactor
		cf.Flags = flags
		out = append(out, CriticalPatient{
			PatientID:         sample.PatientID,
			PatientNumber:     sample.PatientNumber,
			FullName:          sample.FullName,
			Gender:            sample.Gender,
			BedNumber:         sample.BedNumber,
			CriticalFactorID:  sample.ID,
			RecordedAt:        sample.RecordedAt,
			Flags:             flags,
			CriticalFactor:    &cf,
			IsUrgentAdmission: sample.IsUrgentAdmission,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// Acknowledge records that actorID has seen the alert of a sample. The
// flags in the audit snapshot are derived at acknowledgment time.
func (s *Service) Acknowledge(ctx context.Context, actorID string, req AcknowledgeRequest) (*Acknowledgement, error) {
	req.CriticalFactorID = strings.TrimSpace(req.CriticalFactorID)
	err := validation.ValidateStruct(&req,
		validation.Field(&req.CriticalFactorID, validation.Required),
		validation.Field(&req.VitalNames, validation.Required, validation.Each(validation.Required)),
	)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	configs, err := s.configs.ActiveConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var ack Acknowledgement
	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		cf, err := s.repo.Get(ctx, q, req.CriticalFactorID)
		if err != nil {
			return err
		}
		flags, err := flag(&cf.Readings, configs)
		if err != nil {
			return err
		}

		names, err := alarmedNames(req.VitalNames, flags)
		if err != nil {
			return err
		}
		ack = Acknowledgement{
			CriticalFactorID: cf.ID,
			PatientID:        cf.PatientID,
			VitalNames:       names,
			Flags:            flags,
			RecordedAt:       cf.RecordedAt,
			AcknowledgedAt:   s.now().UTC(),
			AcknowledgedBy:   actorID,
			Notes:            req.Notes,
		}
		return s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionAcknowledge,
			TableName:   audit.TableCriticalFactors,
			RecordID:    cf.ID,
			PatientID:   cf.PatientID,
			NewState:    ack.AuditSnapshot(),
			Description: "Alert acknowledged: " + strings.Join(names, ", "),
		})
	})
	if err != nil {
		return nil, err
	}

	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventAlertAcknowledged,
		messaging.NewAlertAcknowledgedEvent(actorID, messaging.AlertAcknowledgedData{
			CriticalFactorID: ack.CriticalFactorID,
			PatientID:        ack.PatientID,
			VitalNames:       ack.VitalNames,
			AcknowledgedAt:   ack.AcknowledgedAt,
		}))
	if s.metrics != nil {
		s.metrics.RecordAlertAcknowledged(ctx)
	}
	return &ack, nil
}

// alarmedNames returns the sorted distinct names, all of which must be
// flagged on the sample.
func alarmedNames(requested []string, flags vitals.Flags) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	var names, quiet []string
	for _, n := range requested {
		n = strings.TrimSpace(n)
		if seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := flags[n]; !ok {
			quiet = append(quiet, n)
			continue
		}
		names = append(names, n)
	}
	if len(quiet) > 0 {
		sort.Strings(quiet)
		return nil, apperr.Validation("vitalNames: not in alarm on this sample: " + strings.Join(quiet, ", "))
	}
	sort.Strings(names)
	return names, nil
}

// AlertAnalytics aggregates acknowledgments of the last days.
func (s *Service) AlertAnalytics(ctx context.Context, days int) (*AlertAnalytics, error) {
	if days == 0 {
		days = DefaultAlertDays
	}
	if days < 1 || days > MaxAlertDays {
		return nil, apperr.Validation(fmt.Sprintf("days must be between 1 and %d", MaxAlertDays))
	}

	records, err := s.repo.Acknowledgements(ctx, s.db, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	a := &AlertAnalytics{
		Days:                  days,
		TotalAcknowledgements: len(records),
		ByVital:               map[string]int{},
		ByUser:                []UserAckCount{},
	}
	users := map[string]*UserAckCount{}
	var (
		totalSeconds float64
		timed        int
	)
	for _, rec := range records {
		for _, name := range rec.VitalNames {
			a.ByVital[name]++
		}
		if rec.UserID != nil {
			u, ok := users[*rec.UserID]
			if !ok {
				u = &UserAckCount{UserID: *rec.UserID, UserName: rec.UserName}
				users[*rec.UserID] = u
			}
			u.Count++
		}
		if !rec.RecordedAt.IsZero() && !rec.AcknowledgedAt.IsZero() {
			totalSeconds += rec.AcknowledgedAt.Sub(rec.RecordedAt).Seconds()
			timed++
		}
	}
	for _, u := range users {
		a.ByUser = append(a.ByUser, *u)
	}
	sort.Slice(a.ByUser, func(i, j int) bool {
		if a.ByUser[i].Count != a.ByUser[j].Count {
			return a.ByUser[i].Count > a.ByUser[j].Count
		}
		return a.ByUser[i].UserID < a.ByUser[j].UserID
	})
	if timed > 0 {
		avg := math.Round(totalSeconds/float64(timed)*10) / 10
		a.AverageResponseSeconds = &avg
	}
	return a, nil
}
