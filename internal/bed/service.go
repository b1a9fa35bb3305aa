package bed

import (
	"context"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/document"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/patient"
	"github.com/rs/zerolog/log"
)

type Service struct {
	db         db.DBTX
	tx         db.TxRunner
	repo       RepositoryInterface
	admissions patient.AdmissionInterface
	documents  document.CleanerInterface
	audit      audit.RecorderInterface
	publisher  messaging.PublisherInterface
	metrics    MetricsRecorder
}

func NewService(
	pool db.DBTX,
	tx db.TxRunner,
	repo RepositoryInterface,
	admissions patient.AdmissionInterface,
	documents document.CleanerInterface,
	recorder audit.RecorderInterface,
	publisher messaging.PublisherInterface,
) *Service {
	return &Service{
		db:         pool,
		tx:         tx,
		repo:       repo,
		admissions: admissions,
		documents:  documents,
		audit:      recorder,
		publisher:  publisher,
	}
}

// WithMetrics sets the bed and admission counters.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) List(ctx context.Context, status string) ([]Bed, error) {
	switch status {
	case "", StatusAvailable, StatusOccupied:
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown bed status %q, expected %s or %s", status, StatusAvailable, StatusOccupied))
	}
	return s.repo.List(ctx, s.db, status)
}

func (s *Service) Get(ctx context.Context, id int64) (*Bed, error) {
	return s.repo.Get(ctx, s.db, id)
}

func (s *Service) recordOperation(ctx context.Context, operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordBedOperation(ctx, operation, err == nil)
	}
}

// Assign admits the patient described by req and places them in the bed.
// The bed is claimed with a conditional update; if another request claimed
// it first the whole transaction rolls back with a conflict.
func (s *Service) Assign(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error) {
	var result AssignResult
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.Get(ctx, q, id)
		if err != nil {
			return err
		}
		if current.PatientID != nil {
			return ErrBedOccupied
		}

		admitted, err := s.admissions.AdmitInTx(ctx, q, actorID, req)
		if err != nil {
			return err
		}

		claimed, err := s.repo.AssignCAS(ctx, q, id, admitted.Patient.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrBedOccupied
		}

		updated := *current
		updated.PatientID = &admitted.Patient.ID
		err = s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			TableName:   audit.TableBeds,
			RecordID:    fmt.Sprint(id),
			PatientID:   admitted.Patient.ID,
			OldState:    current.AuditSnapshot(),
			NewState:    updated.AuditSnapshot(),
			Description: fmt.Sprintf("Bed %s assigned to %s", current.BedNumber, admitted.Patient.PatientNumber),
		})
		if err != nil {
			return err
		}

		bed, err := s.repo.Get(ctx, q, id)
		if err != nil {
			return err
		}
		result = AssignResult{
			Bed:          bed,
			Patient:      admitted.Patient,
			Admission:    admitted.Admission,
			IsNewPatient: admitted.IsNew,
		}
		return nil
	})
	s.recordOperation(ctx, "assign", err)
	if err != nil {
		return nil, err
	}

	p := result.Patient
	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventBedAssigned,
		messaging.NewBedEvent(messaging.EventBedAssigned, actorID, messaging.BedData{
			BedID:       id,
			BedNumber:   result.Bed.BedNumber,
			PatientID:   p.ID,
			AdmissionID: result.Admission.ID,
		}))
	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventPatientAdmitted,
		messaging.NewPatientAdmittedEvent(actorID, messaging.PatientAdmittedData{
			PatientID:         p.ID,
			PatientNumber:     p.PatientNumber,
			AdmissionID:       result.Admission.ID,
			BedNumber:         result.Bed.BedNumber,
			IsUrgentAdmission: p.IsUrgentAdmission,
			IsNewPatient:      result.IsNewPatient,
			AdmittedAt:        result.Admission.AdmissionDateTime,
		}))
	if s.metrics != nil {
		s.metrics.RecordAdmission(ctx, p.IsUrgentAdmission)
	}

	log.Info().
		Int64("bed_id", id).
		Str("patient_id", p.ID).
		Bool("new_patient", result.IsNewPatient).
		Str("actor_id", actorID).
		Msg("bed assigned")
	return &result, nil
}

// Deassign closes the occupant's admission, drops their documents and frees
// the bed. Document files are removed after commit; a file that cannot be
// removed is logged and does not keep the bed occupied.
func (s *Service) Deassign(ctx context.Context, actorID string, id int64) (*DeassignResult, error) {
	var (
		result DeassignResult
		docs   []document.Document
	)
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.Get(ctx, q, id)
		if err != nil {
			return err
		}
		if current.PatientID == nil {
			return ErrBedAvailable
		}
		patientID := *current.PatientID

		closed, err := s.admissions.CloseAdmissionInTx(ctx, q, actorID, patientID, nil, nil)
		if err != nil {
			return err
		}
		if docs, err = s.documents.DeleteForPatientInTx(ctx, q, patientID); err != nil {
			return err
		}

		released, err := s.repo.ReleaseCAS(ctx, q, id, patientID)
		if err != nil {
			return err
		}
		if !released {
			return ErrBedAvailable
		}

		updated := *current
		updated.PatientID = nil
		err = s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			TableName:   audit.TableBeds,
			RecordID:    fmt.Sprint(id),
			PatientID:   patientID,
			OldState:    current.AuditSnapshot(),
			NewState:    updated.AuditSnapshot(),
			Description: fmt.Sprintf("Bed %s released", current.BedNumber),
		})
		if err != nil {
			return err
		}

		updated.Status = StatusAvailable
		updated.Patient = nil
		result = DeassignResult{
			Bed:              &updated,
			PatientID:        patientID,
			Admission:        closed,
			DocumentsRemoved: len(docs),
		}
		return nil
	})
	s.recordOperation(ctx, "deassign", err)
	if err != nil {
		return nil, err
	}

	if failed := s.documents.RemoveFiles(ctx, docs); failed > 0 {
		log.Warn().Int64("bed_id", id).Str("patient_id", result.PatientID).Int("failed", failed).
			Msg("some document files could not be removed after bed release")
	}
	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventBedReleased,
		messaging.NewBedEvent(messaging.EventBedReleased, actorID, messaging.BedData{
			BedID:     id,
			BedNumber: result.Bed.BedNumber,
			PatientID: result.PatientID,
		}))

	log.Info().
		Int64("bed_id", id).
		Str("patient_id", result.PatientID).
		Int("documents_removed", result.DocumentsRemoved).
		Str("actor_id", actorID).
		Msg("bed released")
	return &result, nil
}
