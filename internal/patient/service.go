package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/document"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/pagination"
	"github.com/rs/zerolog/log"
)

type Service struct {
	db        db.DBTX
	tx        db.TxRunner
	repo      RepositoryInterface
	documents document.CleanerInterface
	audit     audit.RecorderInterface
	history   HistoryReader
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder

	eraseAudit func(ctx context.Context, q db.DBTX, patientID string, recordIDs []string) (int64, error)
	now        func() time.Time
}

func NewService(
	pool db.DBTX,
	tx db.TxRunner,
	repo RepositoryInterface,
	documents document.CleanerInterface,
	recorder audit.RecorderInterface,
	history HistoryReader,
	publisher messaging.PublisherInterface,
) *Service {
	return &Service{
		db:         pool,
		tx:         tx,
		repo:       repo,
		documents:  documents,
		audit:      recorder,
		history:    history,
		publisher:  publisher,
		eraseAudit: audit.DeleteForPatient,
		now:        time.Now,
	}
}

// WithMetrics sets the discharge counter.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

var (
	_ ServiceInterface   = (*Service)(nil)
	_ AdmissionInterface = (*Service)(nil)
)

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func validateContact(c EmergencyContactInput) error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.PhoneNumber, validation.Required, validation.Length(1, 50)),
	)
}

func validateAdmit(req *AdmitRequest) error {
	nameRules := []validation.Rule{validation.Length(0, 255)}
	genderRules := []validation.Rule{validation.In(Genders...)}
	if !req.IsUrgentAdmission {
		nameRules = append(nameRules, validation.Required)
		genderRules = append(genderRules, validation.Required)
	}
	err := validation.ValidateStruct(req,
		validation.Field(&req.FullName, nameRules...),
		validation.Field(&req.Gender, genderRules...),
		validation.Field(&req.DateOfBirth, validation.NilOrNotEmpty, validation.Date(dateLayout)),
		validation.Field(&req.ConsultantID, is.UUID),
	)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	for _, c := range req.EmergencyContacts {
		if err := validateContact(c); err != nil {
			return apperr.Validation("emergencyContacts: " + err.Error())
		}
	}
	return nil
}

// AdmitInTx reuses the patient matching the national id or passport number,
// or creates one, and opens a new active admission. It runs on the caller's
// transaction.
func (s *Service) AdmitInTx(ctx context.Context, q db.DBTX, actorID string, req AdmitRequest) (*AdmitResult, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Gender = strings.TrimSpace(req.Gender)
	req.NationalID = blankToNil(req.NationalID)
	req.PassportNumber = blankToNil(req.PassportNumber)
	if err := validateAdmit(&req); err != nil {
		return nil, err
	}

	p, err := s.repo.FindByIdentity(ctx, q, req.NationalID, req.PassportNumber)
	if err != nil {
		return nil, err
	}

	isNew := p == nil
	if isNew {
		if p, err = s.createPatient(ctx, q, actorID, req); err != nil {
			return nil, err
		}
	} else {
		active, err := s.repo.GetActiveAdmission(ctx, q, p.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, ErrAlreadyAdmitted
		}
		bed, err := s.repo.GetBedForPatient(ctx, q, p.ID)
		if err != nil {
			return nil, err
		}
		if bed != nil {
			return nil, ErrAlreadyInBed
		}
	}

	if req.MedicalRecord != nil {
		if _, err := s.upsertMedicalRecord(ctx, q, actorID, p.ID, *req.MedicalRecord); err != nil {
			return nil, err
		}
	}
	for _, c := range req.EmergencyContacts {
		if _, err := s.upsertContact(ctx, q, actorID, p.ID, c); err != nil {
			return nil, err
		}
	}

	adm := &Admission{
		ID:                uuid.New().String(),
		PatientID:         p.ID,
		Status:            StatusActive,
		Department:        blankToNil(req.Department),
		ConsultantID:      blankToNil(req.ConsultantID),
		AdmissionDateTime: s.now().UTC(),
	}
	if req.AdmissionDateTime != nil {
		adm.AdmissionDateTime = req.AdmissionDateTime.UTC()
	}
	if actorID != "" {
		adm.AdmittedBy = &actorID
	}
	if err := s.repo.CreateAdmission(ctx, q, adm); err != nil {
		return nil, err
	}
	err = s.audit.Record(ctx, q, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionCreate,
		TableName:   audit.TableAdmissions,
		RecordID:    adm.ID,
		PatientID:   p.ID,
		NewState:    adm.AuditSnapshot(),
		Description: fmt.Sprintf("Admission opened for %s", p.PatientNumber),
	})
	if err != nil {
		return nil, err
	}

	return &AdmitResult{Patient: *p, Admission: *adm, IsNew: isNew}, nil
}

func (s *Service) createPatient(ctx context.Context, q db.DBTX, actorID string, req AdmitRequest) (*Patient, error) {
	number, err := s.repo.NextPatientNumber(ctx, q, s.now().Year())
	if err != nil {
		return nil, err
	}

	p := &Patient{
		ID:                uuid.New().String(),
		PatientNumber:     number,
		FullName:          req.FullName,
		Gender:            req.Gender,
		DateOfBirth:       blankToNil(req.DateOfBirth),
		NationalID:        req.NationalID,
		PassportNumber:    req.PassportNumber,
		PhoneNumber:       blankToNil(req.PhoneNumber),
		Address:           blankToNil(req.Address),
		BloodGroup:        blankToNil(req.BloodGroup),
		IsUrgentAdmission: req.IsUrgentAdmission,
	}
	if p.FullName == "" {
		p.FullName = PlaceholderName
		p.IsIncomplete = true
	}
	if p.Gender == "" {
		p.Gender = PlaceholderGender
		p.IsIncomplete = true
	}
	if actorID != "" {
		p.CreatedBy = &actorID
	}

	if err := s.repo.CreatePatient(ctx, q, p); err != nil {
		return nil, err
	}
	err = s.audit.Record(ctx, q, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionCreate,
		TableName:   audit.TablePatients,
		RecordID:    p.ID,
		PatientID:   p.ID,
		NewState:    p.AuditSnapshot(),
		Description: fmt.Sprintf("Patient %s created", p.PatientNumber),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) upsertMedicalRecord(ctx context.Context, q db.DBTX, actorID, patientID string, in MedicalRecordInput) (*MedicalRecord, error) {
	current, err := s.repo.GetMedicalRecord(ctx, q, patientID)
	if err != nil {
		return nil, err
	}

	if current == nil {
		m := in.Apply(MedicalRecord{ID: uuid.New().String(), PatientID: patientID})
		if err := s.repo.CreateMedicalRecord(ctx, q, &m); err != nil {
			return nil, err
		}
		return &m, s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionCreate,
			TableName:   audit.TableMedicalRecords,
			RecordID:    m.ID,
			PatientID:   patientID,
			NewState:    m.AuditSnapshot(),
			Description: "Medical record created",
		})
	}

	m := in.Apply(*current)
	if err := s.repo.UpdateMedicalRecord(ctx, q, &m); err != nil {
		return nil, err
	}
	return &m, s.audit.Record(ctx, q, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionUpdate,
		TableName:   audit.TableMedicalRecords,
		RecordID:    m.ID,
		PatientID:   patientID,
		OldState:    current.AuditSnapshot(),
		NewState:    m.AuditSnapshot(),
		Description: "Medical record updated",
	})
}

func (s *Service) upsertContact(ctx context.Context, q db.DBTX, actorID, patientID string, in EmergencyContactInput) (*EmergencyContact, error) {
	c := EmergencyContact{
		ID:           in.ID,
		PatientID:    patientID,
		Name:         strings.TrimSpace(in.Name),
		Relationship: blankToNil(in.Relationship),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Address:      blankToNil(in.Address),
	}

	if in.ID == "" {
		c.ID = uuid.New().String()
		if err := s.repo.CreateEmergencyContact(ctx, q, &c); err != nil {
			return nil, err
		}
		return &c, s.audit.Record(ctx, q, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionCreate,
			TableName:   audit.TableEmergencyContacts,
			RecordID:    c.ID,
			PatientID:   patientID,
			NewState:    c.AuditSnapshot(),
			Description: fmt.Sprintf("Emergency contact %s added", c.Name),
		})
	}

	contacts, err := s.repo.ListEmergencyContacts(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	var current *EmergencyContact
	for i := range contacts {
		if contacts[i].ID == in.ID {
			current = &contacts[i]
			break
		}
	}
	if current == nil {
		return nil, ErrContactNotFound
	}

	if err := s.repo.UpdateEmergencyContact(ctx, q, &c); err != nil {
		return nil, err
	}
	c.CreatedAt = current.CreatedAt
	return &c, s.audit.Record(ctx, q, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionUpdate,
		TableName:   audit.TableEmergencyContacts,
		RecordID:    c.ID,
		PatientID:   patientID,
		OldState:    current.AuditSnapshot(),
		NewState:    c.AuditSnapshot(),
		Description: fmt.Sprintf("Emergency contact %s updated", c.Name),
	})
}

// CloseAdmissionInTx marks the active admission discharged. It returns nil
// when the patient has none.
func (s *Service) CloseAdmissionInTx(ctx context.Context, q db.DBTX, actorID, patientID string, reason, comments *string) (*Admission, error) {
	current, err := s.repo.GetActiveAdmission(ctx, q, patientID)
	if err != nil || current == nil {
		return nil, err
	}

	closed := *current
	now := s.now().UTC()
	closed.Status = StatusDischarged
	closed.DischargeDateTime = &now
	closed.DischargeReason = reason
	closed.DoctorComments = comments
	if err := s.repo.UpdateAdmission(ctx, q, &closed); err != nil {
		return nil, err
	}

	err = s.audit.Record(ctx, q, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionUpdate,
		TableName:   audit.TableAdmissions,
		RecordID:    closed.ID,
		PatientID:   patientID,
		OldState:    current.AuditSnapshot(),
		NewState:    closed.AuditSnapshot(),
		Description: "Admission closed",
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*PatientListResponse, error) {
	params.Validate()
	switch filter.Status {
	case "", FilterActive, FilterIncomplete, FilterUrgent:
	default:
		return nil, apperr.Validation("status must be one of active, incomplete, urgent")
	}

	patients, total, err := s.repo.ListPatients(ctx, s.db, filter, params.Limit, params.Offset())
	if err != nil {
		return nil, err
	}
	return &PatientListResponse{
		Success:    true,
		Patients:   patients,
		Pagination: params.Meta(total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	return s.detail(ctx, s.db, id)
}

func (s *Service) detail(ctx context.Context, q db.DBTX, id string) (*Detail, error) {
	p, err := s.repo.GetPatient(ctx, q, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Patient: *p}
	if d.ActiveAdmission, err = s.repo.GetActiveAdmission(ctx, q, id); err != nil {
		return nil, err
	}
	if d.MedicalRecord, err = s.repo.GetMedicalRecord(ctx, q, id); err != nil {
		return nil, err
	}
	if d.EmergencyContacts, err = s.repo.ListEmergencyContacts(ctx, q, id); err != nil {
		return nil, err
	}
	if d.Bed, err = s.repo.GetBedForPatient(ctx, q, id); err != nil {
		return nil, err
	}
	return d, nil
}

func validateUpdate(req *UpdateRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.FullName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&req.Gender, validation.NilOrNotEmpty, validation.In(Genders...)),
		validation.Field(&req.DateOfBirth, validation.Date(dateLayout)),
	)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	for _, c := range req.EmergencyContacts {
		if err := validateContact(c); err != nil {
			return apperr.Validation("emergencyContacts: " + err.Error())
		}
	}
	return nil
}

func (s *Service) Update(ctx context.Context, actorID, id string, req UpdateRequest) (*Detail, error) {
	if err := validateUpdate(&req); err != nil {
		return nil, err
	}

	var out *Detail
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.GetPatient(ctx, q, id)
		if err != nil {
			return err
		}

		if req.touchesPatient() {
			updated := req.Apply(*current)
			if err := s.repo.UpdatePatient(ctx, q, &updated); err != nil {
				return err
			}
			err := s.audit.Record(ctx, q, audit.Entry{
				ActorID:     actorID,
				Action:      audit.ActionUpdate,
				TableName:   audit.TablePatients,
				RecordID:    id,
				PatientID:   id,
				OldState:    current.AuditSnapshot(),
				NewState:    updated.AuditSnapshot(),
				Description: fmt.Sprintf("Patient %s updated", current.PatientNumber),
			})
			if err != nil {
				return err
			}
		}

		if req.MedicalRecord != nil {
			if _, err := s.upsertMedicalRecord(ctx, q, actorID, id, *req.MedicalRecord); err != nil {
				return err
			}
		}
		for _, c := range req.EmergencyContacts {
			if _, err := s.upsertContact(ctx, q, actorID, id, c); err != nil {
				return err
			}
		}

		out, err = s.detail(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	return s.repo.Analytics(ctx, s.db)
}

func (s *Service) History(ctx context.Context, id string, params pagination.Params) (*audit.HistoryResponse, error) {
	params.Validate()
	if _, err := s.repo.GetPatient(ctx, s.db, id); err != nil {
		return nil, err
	}
	logs, total, err := s.history.ListForPatient(ctx, id, params.Limit, params.Offset())
	if err != nil {
		return nil, err
	}
	return &audit.HistoryResponse{Success: true, Logs: logs, Pagination: params.Meta(total)}, nil
}

// Discharge closes the active admission, frees the bed and then erases the
// patient with every dependent row and audit entry. Files are removed and
// events published after commit.
func (s *Service) Discharge(ctx context.Context, actorID, id string, req DischargeRequest) (*DischargeResult, error) {
	req.DischargeReason = strings.TrimSpace(req.DischargeReason)
	req.DoctorComments = strings.TrimSpace(req.DoctorComments)
	err := validation.ValidateStruct(&req,
		validation.Field(&req.DischargeReason, validation.Required),
		validation.Field(&req.DoctorComments, validation.Required),
	)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	var (
		result     DischargeResult
		admittedAt time.Time
		bed        *BedRef
		docs       []document.Document
	)
	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		p, err := s.repo.GetPatient(ctx, q, id)
		if err != nil {
			return err
		}

		closed, err := s.CloseAdmissionInTx(ctx, q, actorID, id, &req.DischargeReason, &req.DoctorComments)
		if err != nil {
			return err
		}
		if closed != nil {
			admittedAt = closed.AdmissionDateTime
		}

		if bed, err = s.repo.ReleaseBed(ctx, q, id); err != nil {
			return err
		}
		if docs, err = s.documents.DeleteForPatientInTx(ctx, q, id); err != nil {
			return err
		}

		deps, err := s.repo.DependentIDs(ctx, q, id)
		if err != nil {
			return err
		}
		recordIDs := deps.All()
		for _, d := range docs {
			recordIDs = append(recordIDs, d.ID)
		}
		erased, err := s.eraseAudit(ctx, q, id, recordIDs)
		if err != nil {
			return err
		}
		if err := s.repo.DeletePatientCascade(ctx, q, id); err != nil {
			return err
		}

		result = DischargeResult{
			PatientID:       id,
			PatientNumber:   p.PatientNumber,
			DischargedAt:    s.now().UTC(),
			CriticalFactors: len(deps.CriticalFactors),
			Documents:       len(docs),
			AuditLogs:       erased,
		}
		if bed != nil {
			result.BedNumber = &bed.BedNumber
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if failed := s.documents.RemoveFiles(ctx, docs); failed > 0 {
		log.Warn().Str("patient_id", id).Int("failed", failed).Msg("some document files survived discharge")
	}
	if bed != nil {
		messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventBedReleased,
			messaging.NewBedEvent(messaging.EventBedReleased, actorID, messaging.BedData{
				BedID:     bed.ID,
				BedNumber: bed.BedNumber,
				PatientID: id,
			}))
	}
	messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventPatientDischarged,
		messaging.NewPatientDischargedEvent(actorID, messaging.PatientDischargedData{
			PatientID:       id,
			PatientNumber:   result.PatientNumber,
			DischargeReason: req.DischargeReason,
			AdmittedAt:      admittedAt,
			DischargedAt:    result.DischargedAt,
			CriticalFactors: result.CriticalFactors,
			Documents:       result.Documents,
			AuditLogs:       result.AuditLogs,
		}))
	if s.metrics != nil {
		s.metrics.RecordDischarge(ctx)
	}

	log.Info().
		Str("patient_id", id).
		Str("patient_number", result.PatientNumber).
		Str("actor_id", actorID).
		Int64("audit_logs_erased", result.AuditLogs).
		Msg("patient discharged and erased")
	return &result, nil
}
