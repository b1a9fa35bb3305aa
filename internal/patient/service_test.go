package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/document"
	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/hdu-care/hdu-service/internal/pagination"
	"github.com/hdu-care/hdu-service/internal/testutil"
)

// mockRepository implements RepositoryInterface for testing. Unset funcs
// behave like an empty database.
type mockRepository struct {
	nextPatientNumberFunc    func(ctx context.Context, year int) (string, error)
	createPatientFunc        func(ctx context.Context, p *Patient) error
	getPatientFunc           func(ctx context.Context, id string) (*Patient, error)
	findByIdentityFunc       func(ctx context.Context, nationalID, passport *string) (*Patient, error)
	updatePatientFunc        func(ctx context.Context, p *Patient) error
	listPatientsFunc         func(ctx context.Context, filter ListFilter, limit, offset int) ([]Summary, int, error)
	createAdmissionFunc      func(ctx context.Context, a *Admission) error
	getActiveAdmissionFunc   func(ctx context.Context, patientID string) (*Admission, error)
	updateAdmissionFunc      func(ctx context.Context, a *Admission) error
	getMedicalRecordFunc     func(ctx context.Context, patientID string) (*MedicalRecord, error)
	createMedicalRecordFunc  func(ctx context.Context, m *MedicalRecord) error
	updateMedicalRecordFunc  func(ctx context.Context, m *MedicalRecord) error
	listContactsFunc         func(ctx context.Context, patientID string) ([]EmergencyContact, error)
	createContactFunc        func(ctx context.Context, c *EmergencyContact) error
	updateContactFunc        func(ctx context.Context, c *EmergencyContact) error
	getBedForPatientFunc     func(ctx context.Context, patientID string) (*BedRef, error)
	releaseBedFunc           func(ctx context.Context, patientID string) (*BedRef, error)
	dependentIDsFunc         func(ctx context.Context, patientID string) (*Dependents, error)
	deletePatientCascadeFunc func(ctx context.Context, patientID string) error
	analyticsFunc            func(ctx context.Context) (*Analytics, error)
}

func (m *mockRepository) NextPatientNumber(ctx context.Context, q db.DBTX, year int) (string, error) {
	if m.nextPatientNumberFunc != nil {
		return m.nextPatientNumberFunc(ctx, year)
	}
	return "PT-2026-0001", nil
}

func (m *mockRepository) CreatePatient(ctx context.Context, q db.DBTX, p *Patient) error {
	if m.createPatientFunc != nil {
		return m.createPatientFunc(ctx, p)
	}
	return nil
}

func (m *mockRepository) GetPatient(ctx context.Context, q db.DBTX, id string) (*Patient, error) {
	if m.getPatientFunc != nil {
		return m.getPatientFunc(ctx, id)
	}
	return nil, ErrPatientNotFound
}

func (m *mockRepository) FindByIdentity(ctx context.Context, q db.DBTX, nationalID, passport *string) (*Patient, error) {
	if m.findByIdentityFunc != nil {
		return m.findByIdentityFunc(ctx, nationalID, passport)
	}
	return nil, nil
}

func (m *mockRepository) UpdatePatient(ctx context.Context, q db.DBTX, p *Patient) error {
	if m.updatePatientFunc != nil {
		return m.updatePatientFunc(ctx, p)
	}
	return nil
}

func (m *mockRepository) ListPatients(ctx context.Context, q db.DBTX, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	if m.listPatientsFunc != nil {
		return m.listPatientsFunc(ctx, filter, limit, offset)
	}
	return []Summary{}, 0, nil
}

func (m *mockRepository) CreateAdmission(ctx context.Context, q db.DBTX, a *Admission) error {
	if m.createAdmissionFunc != nil {
		return m.createAdmissionFunc(ctx, a)
	}
	return nil
}

func (m *mockRepository) GetActiveAdmission(ctx context.Context, q db.DBTX, patientID string) (*Admission, error) {
	if m.getActiveAdmissionFunc != nil {
		return m.getActiveAdmissionFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *mockRepository) UpdateAdmission(ctx context.Context, q db.DBTX, a *Admission) error {
	if m.updateAdmissionFunc != nil {
		return m.updateAdmissionFunc(ctx, a)
	}
	return nil
}

func (m *mockRepository) GetMedicalRecord(ctx context.Context, q db.DBTX, patientID string) (*MedicalRecord, error) {
	if m.getMedicalRecordFunc != nil {
		return m.getMedicalRecordFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *mockRepository) CreateMedicalRecord(ctx context.Context, q db.DBTX, rec *MedicalRecord) error {
	if m.createMedicalRecordFunc != nil {
		return m.createMedicalRecordFunc(ctx, rec)
	}
	return nil
}

func (m *mockRepository) UpdateMedicalRecord(ctx context.Context, q db.DBTX, rec *MedicalRecord) error {
	if m.updateMedicalRecordFunc != nil {
		return m.updateMedicalRecordFunc(ctx, rec)
	}
	return nil
}

func (m *mockRepository) ListEmergencyContacts(ctx context.Context, q db.DBTX, patientID string) ([]EmergencyContact, error) {
	if m.listContactsFunc != nil {
		return m.listContactsFunc(ctx, patientID)
	}
	return []EmergencyContact{}, nil
}

func (m *mockRepository) CreateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error {
	if m.createContactFunc != nil {
		return m.createContactFunc(ctx, c)
	}
	return nil
}

func (m *mockRepository) UpdateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error {
	if m.updateContactFunc != nil {
		return m.updateContactFunc(ctx, c)
	}
	return nil
}

func (m *mockRepository) GetBedForPatient(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error) {
	if m.getBedForPatientFunc != nil {
		return m.getBedForPatientFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *mockRepository) ReleaseBed(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error) {
	if m.releaseBedFunc != nil {
		return m.releaseBedFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *mockRepository) DependentIDs(ctx context.Context, q db.DBTX, patientID string) (*Dependents, error) {
	if m.dependentIDsFunc != nil {
		return m.dependentIDsFunc(ctx, patientID)
	}
	return &Dependents{}, nil
}

func (m *mockRepository) DeletePatientCascade(ctx context.Context, q db.DBTX, patientID string) error {
	if m.deletePatientCascadeFunc != nil {
		return m.deletePatientCascadeFunc(ctx, patientID)
	}
	return nil
}

func (m *mockRepository) Analytics(ctx context.Context, q db.DBTX) (*Analytics, error) {
	if m.analyticsFunc != nil {
		return m.analyticsFunc(ctx)
	}
	return &Analytics{}, nil
}

// mockDocuments implements document.CleanerInterface for testing
type mockDocuments struct {
	docs      []document.Document
	deleteErr error
	removed   []document.Document
}

func (m *mockDocuments) DeleteForPatientInTx(ctx context.Context, q db.DBTX, patientID string) ([]document.Document, error) {
	return m.docs, m.deleteErr
}

func (m *mockDocuments) RemoveFiles(ctx context.Context, docs []document.Document) int {
	m.removed = append(m.removed, docs...)
	return 0
}

type mockHistory struct {
	listFunc func(ctx context.Context, patientID string, limit, offset int) ([]audit.Log, int, error)
}

func (m *mockHistory) ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]audit.Log, int, error) {
	return m.listFunc(ctx, patientID, limit, offset)
}

type testDeps struct {
	recorder  *testutil.AuditRecorder
	publisher *testutil.MockPublisher
	docs      *mockDocuments
	history   *mockHistory
}

func newTestService(repo RepositoryInterface) (*Service, *testDeps) {
	deps := &testDeps{
		recorder:  &testutil.AuditRecorder{},
		publisher: testutil.NewMockPublisher(),
		docs:      &mockDocuments{},
		history:   &mockHistory{},
	}
	s := NewService(nil, &testutil.InlineTx{}, repo, deps.docs, deps.recorder, deps.history, deps.publisher)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	s.eraseAudit = func(ctx context.Context, q db.DBTX, patientID string, recordIDs []string) (int64, error) {
		return int64(len(recordIDs)), nil
	}
	return s, deps
}

func strPtr(s string) *string { return &s }

func TestAdmitInTx_NewPatient(t *testing.T) {
	var created *Patient
	var admission *Admission
	var year int
	repo := &mockRepository{
		nextPatientNumberFunc: func(ctx context.Context, y int) (string, error) {
			year = y
			return "PT-2026-0007", nil
		},
		createPatientFunc: func(ctx context.Context, p *Patient) error {
			created = p
			return nil
		},
		createAdmissionFunc: func(ctx context.Context, a *Admission) error {
			admission = a
			return nil
		},
	}
	service, deps := newTestService(repo)

	result, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{
		FullName:      "Amina Yusuf",
		Gender:        "Female",
		NationalID:    strPtr(" 12345 "),
		Department:    strPtr("Cardiology"),
		MedicalRecord: &MedicalRecordInput{Diagnosis: strPtr("Sepsis")},
		EmergencyContacts: []EmergencyContactInput{
			{Name: "Yusuf", PhoneNumber: "0700"},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.IsNew {
		t.Error("Expected a new patient")
	}
	if year != 2026 {
		t.Errorf("Expected counter year 2026, got %d", year)
	}
	if created.PatientNumber != "PT-2026-0007" || created.IsIncomplete {
		t.Errorf("Unexpected patient: %+v", created)
	}
	if created.NationalID == nil || *created.NationalID != "12345" {
		t.Errorf("Expected trimmed national id, got %v", created.NationalID)
	}
	if admission.Status != StatusActive || admission.PatientID != created.ID {
		t.Errorf("Unexpected admission: %+v", admission)
	}

	for _, table := range []string{audit.TablePatients, audit.TableAdmissions, audit.TableMedicalRecords, audit.TableEmergencyContacts} {
		entries := deps.recorder.ByAction(audit.ActionCreate, table)
		if len(entries) != 1 {
			t.Fatalf("Expected one CREATE on %s, got %d", table, len(entries))
		}
		if entries[0].PatientID != created.ID {
			t.Errorf("Expected %s audit entry tagged with patient id", table)
		}
	}
}

func TestAdmitInTx_UrgentPlaceholders(t *testing.T) {
	var created *Patient
	repo := &mockRepository{
		createPatientFunc: func(ctx context.Context, p *Patient) error {
			created = p
			return nil
		},
	}
	service, _ := newTestService(repo)

	_, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{IsUrgentAdmission: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created.FullName != PlaceholderName || created.Gender != PlaceholderGender {
		t.Errorf("Expected placeholders, got %q/%q", created.FullName, created.Gender)
	}
	if !created.IsIncomplete || !created.IsUrgentAdmission {
		t.Error("Expected urgent incomplete patient")
	}
}

func TestAdmitInTx_RequiresNameAndGender(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	_, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{FullName: "No Gender"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestAdmitInTx_RejectsMalformedConsultantID(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	consultant := "dr-grey"
	_, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{
		FullName:     "Jane Doe",
		Gender:       "Female",
		ConsultantID: &consultant,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestAdmitInTx_ReusesExistingPatient(t *testing.T) {
	existing := &Patient{ID: "patient-1", PatientNumber: "PT-2025-0003", FullName: "Old Name", Gender: "Male"}
	repo := &mockRepository{
		findByIdentityFunc: func(ctx context.Context, nationalID, passport *string) (*Patient, error) {
			if passport == nil || *passport != "P-99" {
				t.Errorf("Expected passport lookup, got %v", passport)
			}
			return existing, nil
		},
		createPatientFunc: func(ctx context.Context, p *Patient) error {
			t.Error("Existing patient must not be recreated")
			return nil
		},
	}
	service, deps := newTestService(repo)

	result, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{
		FullName: "New Name", Gender: "Male", PassportNumber: strPtr("P-99"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsNew || result.Patient.FullName != "Old Name" {
		t.Errorf("Expected existing patient unchanged, got %+v", result.Patient)
	}
	if n := len(deps.recorder.ByAction(audit.ActionCreate, audit.TablePatients)); n != 0 {
		t.Errorf("Expected no patient CREATE audit, got %d", n)
	}
}

func TestAdmitInTx_ExistingPatientConflicts(t *testing.T) {
	existing := &Patient{ID: "patient-1"}
	tests := []struct {
		name string
		repo *mockRepository
		want error
	}{
		{
			name: "active admission",
			repo: &mockRepository{
				getActiveAdmissionFunc: func(ctx context.Context, patientID string) (*Admission, error) {
					return &Admission{ID: "adm-1", Status: StatusActive}, nil
				},
			},
			want: ErrAlreadyAdmitted,
		},
		{
			name: "already in a bed",
			repo: &mockRepository{
				getBedForPatientFunc: func(ctx context.Context, patientID string) (*BedRef, error) {
					return &BedRef{ID: 3, BedNumber: "HDU-03"}, nil
				},
			},
			want: ErrAlreadyInBed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.repo.findByIdentityFunc = func(ctx context.Context, nationalID, passport *string) (*Patient, error) {
				return existing, nil
			}
			service, _ := newTestService(tt.repo)

			_, err := service.AdmitInTx(context.Background(), nil, "doctor-1", AdmitRequest{
				FullName: "X", Gender: "Male", NationalID: strPtr("1"),
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, apperr.ErrConflict) {
				t.Errorf("Expected a conflict, got %v", err)
			}
		})
	}
}

func TestCloseAdmissionInTx(t *testing.T) {
	var updated *Admission
	repo := &mockRepository{
		getActiveAdmissionFunc: func(ctx context.Context, patientID string) (*Admission, error) {
			return &Admission{ID: "adm-1", PatientID: patientID, Status: StatusActive}, nil
		},
		updateAdmissionFunc: func(ctx context.Context, a *Admission) error {
			updated = a
			return nil
		},
	}
	service, deps := newTestService(repo)

	closed, err := service.CloseAdmissionInTx(context.Background(), nil, "doctor-1", "patient-1", nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if closed.Status != StatusDischarged || closed.DischargeDateTime == nil {
		t.Errorf("Expected discharged admission with timestamp, got %+v", closed)
	}
	if updated == nil || updated.ID != "adm-1" {
		t.Error("Expected the admission row to be updated")
	}
	entries := deps.recorder.ByAction(audit.ActionUpdate, audit.TableAdmissions)
	if len(entries) != 1 || entries[0].OldState["status"] != StatusActive || entries[0].NewState["status"] != StatusDischarged {
		t.Errorf("Unexpected audit entries: %+v", entries)
	}
}

func TestCloseAdmissionInTx_NoActiveAdmission(t *testing.T) {
	service, deps := newTestService(&mockRepository{})

	closed, err := service.CloseAdmissionInTx(context.Background(), nil, "doctor-1", "patient-1", nil, nil)
	if err != nil || closed != nil {
		t.Errorf("Expected no-op, got %+v, %v", closed, err)
	}
	if len(deps.recorder.Entries) != 0 {
		t.Error("Expected no audit entries")
	}
}

func TestUpdate_ClearsIncompleteAndAudits(t *testing.T) {
	stored := &Patient{ID: "patient-1", PatientNumber: "PT-2026-0001", FullName: PlaceholderName, Gender: PlaceholderGender, IsIncomplete: true}
	var saved *Patient
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			if saved != nil {
				p := *saved
				return &p, nil
			}
			p := *stored
			return &p, nil
		},
		updatePatientFunc: func(ctx context.Context, p *Patient) error {
			saved = p
			return nil
		},
	}
	service, deps := newTestService(repo)

	detail, err := service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{
		FullName: strPtr("Grace Njeri"),
		Gender:   strPtr("Female"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if detail.IsIncomplete {
		t.Error("Expected isIncomplete to be cleared")
	}
	entries := deps.recorder.ByAction(audit.ActionUpdate, audit.TablePatients)
	if len(entries) != 1 {
		t.Fatalf("Expected one patient UPDATE entry, got %d", len(entries))
	}
	if entries[0].NewState["fullName"] != "Grace Njeri" || entries[0].OldState["fullName"] != PlaceholderName {
		t.Errorf("Unexpected audit states: %+v", entries[0])
	}
}

func TestUpdate_IdenticalValuesStillAudited(t *testing.T) {
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id, FullName: "Same", Gender: "Male"}, nil
		},
	}
	service, deps := newTestService(repo)

	_, err := service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{FullName: strPtr("Same")})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n := len(deps.recorder.ByAction(audit.ActionUpdate, audit.TablePatients)); n != 1 {
		t.Errorf("Expected identical update to be audited, got %d entries", n)
	}
}

func TestUpdate_UpsertsDependents(t *testing.T) {
	existingContact := EmergencyContact{ID: "contact-1", PatientID: "patient-1", Name: "Old", PhoneNumber: "1"}
	var updatedContact, createdContact *EmergencyContact
	var createdRecord *MedicalRecord
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id, FullName: "A", Gender: "Male"}, nil
		},
		listContactsFunc: func(ctx context.Context, patientID string) ([]EmergencyContact, error) {
			return []EmergencyContact{existingContact}, nil
		},
		updateContactFunc: func(ctx context.Context, c *EmergencyContact) error {
			updatedContact = c
			return nil
		},
		createContactFunc: func(ctx context.Context, c *EmergencyContact) error {
			createdContact = c
			return nil
		},
		createMedicalRecordFunc: func(ctx context.Context, m *MedicalRecord) error {
			createdRecord = m
			return nil
		},
	}
	service, deps := newTestService(repo)

	_, err := service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{
		MedicalRecord: &MedicalRecordInput{Allergies: strPtr("Penicillin")},
		EmergencyContacts: []EmergencyContactInput{
			{ID: "contact-1", Name: "Renamed", PhoneNumber: "1"},
			{Name: "New", PhoneNumber: "2"},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if updatedContact == nil || updatedContact.Name != "Renamed" {
		t.Error("Expected existing contact to be updated")
	}
	if createdContact == nil || createdContact.Name != "New" {
		t.Error("Expected new contact to be created")
	}
	if createdRecord == nil || *createdRecord.Allergies != "Penicillin" {
		t.Error("Expected medical record to be created")
	}
	if n := len(deps.recorder.ByAction(audit.ActionUpdate, audit.TablePatients)); n != 0 {
		t.Errorf("Expected no patient UPDATE when demographics are untouched, got %d", n)
	}
	if n := len(deps.recorder.ByAction(audit.ActionUpdate, audit.TableEmergencyContacts)); n != 1 {
		t.Errorf("Expected one contact UPDATE, got %d", n)
	}
}

func TestUpdate_UnknownContact(t *testing.T) {
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id}, nil
		},
	}
	service, _ := newTestService(repo)

	_, err := service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{
		EmergencyContacts: []EmergencyContactInput{{ID: "someone-else", Name: "X", PhoneNumber: "1"}},
	})
	if !errors.Is(err, ErrContactNotFound) {
		t.Errorf("Expected ErrContactNotFound, got %v", err)
	}
}

func TestUpdate_Validation(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	_, err := service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{Gender: strPtr("Robot")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	_, err = service.Update(context.Background(), "doctor-1", "patient-1", UpdateRequest{DateOfBirth: strPtr("01/02/1990")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error for date, got %v", err)
	}
}

func TestList_PassesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	var gotFilter ListFilter
	repo := &mockRepository{
		listPatientsFunc: func(ctx context.Context, filter ListFilter, limit, offset int) ([]Summary, int, error) {
			gotFilter, gotLimit, gotOffset = filter, limit, offset
			return []Summary{{Patient: Patient{ID: "p1"}}}, 41, nil
		},
	}
	service, _ := newTestService(repo)

	resp, err := service.List(context.Background(), ListFilter{Search: "amina", Status: FilterUrgent}, pagination.Params{Page: 3, Limit: 20})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotLimit != 20 || gotOffset != 40 || gotFilter.Search != "amina" {
		t.Errorf("Unexpected repo call: %+v limit=%d offset=%d", gotFilter, gotLimit, gotOffset)
	}
	if resp.Pagination.TotalPages != 3 || resp.Pagination.HasNext {
		t.Errorf("Unexpected pagination: %+v", resp.Pagination)
	}
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	_, err := service.List(context.Background(), ListFilter{Status: "sleeping"}, pagination.Params{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestHistory_PatientMustExist(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	_, err := service.History(context.Background(), "gone", pagination.Params{})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("Expected ErrPatientNotFound, got %v", err)
	}
}

func TestHistory_ReturnsPage(t *testing.T) {
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) { return &Patient{ID: id}, nil },
	}
	service, deps := newTestService(repo)
	deps.history.listFunc = func(ctx context.Context, patientID string, limit, offset int) ([]audit.Log, int, error) {
		return []audit.Log{{ID: "log-1"}}, 1, nil
	}

	resp, err := service.History(context.Background(), "patient-1", pagination.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(resp.Logs) != 1 || resp.Pagination.Total != 1 {
		t.Errorf("Unexpected history: %+v", resp)
	}
}

func TestDischarge_RequiresReasonAndComments(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	tests := []DischargeRequest{
		{DoctorComments: "stable"},
		{DischargeReason: "Recovered"},
		{DischargeReason: "  ", DoctorComments: "  "},
	}
	for _, req := range tests {
		_, err := service.Discharge(context.Background(), "doctor-1", "patient-1", req)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestDischarge_ErasesEverything(t *testing.T) {
	admittedAt := time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC)
	var erasedIDs []string
	var cascadeDeleted bool
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id, PatientNumber: "PT-2026-0004"}, nil
		},
		getActiveAdmissionFunc: func(ctx context.Context, patientID string) (*Admission, error) {
			return &Admission{ID: "adm-1", PatientID: patientID, Status: StatusActive, AdmissionDateTime: admittedAt}, nil
		},
		releaseBedFunc: func(ctx context.Context, patientID string) (*BedRef, error) {
			return &BedRef{ID: 4, BedNumber: "HDU-04"}, nil
		},
		dependentIDsFunc: func(ctx context.Context, patientID string) (*Dependents, error) {
			return &Dependents{
				Admissions:      []string{"adm-1"},
				MedicalRecords:  []string{"mr-1"},
				CriticalFactors: []string{"cf-1", "cf-2"},
			}, nil
		},
		deletePatientCascadeFunc: func(ctx context.Context, patientID string) error {
			cascadeDeleted = true
			return nil
		},
	}
	service, deps := newTestService(repo)
	deps.docs.docs = []document.Document{{ID: "doc-1", StorageKey: "other/doc-1.pdf"}}
	service.eraseAudit = func(ctx context.Context, q db.DBTX, patientID string, recordIDs []string) (int64, error) {
		erasedIDs = recordIDs
		return 9, nil
	}

	result, err := service.Discharge(context.Background(), "doctor-1", "patient-1", DischargeRequest{
		DischargeReason: "Recovered",
		DoctorComments:  "Stable for ward",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !cascadeDeleted {
		t.Error("Expected cascade delete")
	}
	if result.CriticalFactors != 2 || result.Documents != 1 || result.AuditLogs != 9 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.BedNumber == nil || *result.BedNumber != "HDU-04" {
		t.Error("Expected freed bed number in result")
	}

	want := map[string]bool{"adm-1": true, "mr-1": true, "cf-1": true, "cf-2": true, "doc-1": true}
	if len(erasedIDs) != len(want) {
		t.Errorf("Expected %d record ids erased, got %v", len(want), erasedIDs)
	}
	for _, id := range erasedIDs {
		if !want[id] {
			t.Errorf("Unexpected record id %s", id)
		}
	}

	if len(deps.docs.removed) != 1 {
		t.Error("Expected document files to be removed after commit")
	}
	deps.publisher.AssertEventCount(t, messaging.EventPatientDischarged, 1)
	deps.publisher.AssertEventCount(t, messaging.EventBedReleased, 1)

	ev := deps.publisher.GetLastEventByKey(messaging.EventPatientDischarged).EventData.(messaging.PatientDischargedEvent)
	if ev.Data.PatientNumber != "PT-2026-0004" || !ev.Data.AdmittedAt.Equal(admittedAt) {
		t.Errorf("Unexpected discharge event: %+v", ev.Data)
	}
}

func TestDischarge_FailureRollsBackWithoutSideEffects(t *testing.T) {
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id}, nil
		},
		deletePatientCascadeFunc: func(ctx context.Context, patientID string) error {
			return errors.New("db down")
		},
	}
	service, deps := newTestService(repo)
	deps.docs.docs = []document.Document{{ID: "doc-1"}}

	_, err := service.Discharge(context.Background(), "doctor-1", "patient-1", DischargeRequest{
		DischargeReason: "Recovered", DoctorComments: "ok",
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(deps.docs.removed) != 0 {
		t.Error("Files must not be removed when the transaction fails")
	}
	if deps.publisher.GetEventCount() != 0 {
		t.Error("No events may be published when the transaction fails")
	}
}

func TestDischarge_PublishFailureDoesNotFail(t *testing.T) {
	repo := &mockRepository{
		getPatientFunc: func(ctx context.Context, id string) (*Patient, error) {
			return &Patient{ID: id}, nil
		},
	}
	service, deps := newTestService(repo)
	deps.publisher.Err = errors.New("broker down")

	if _, err := service.Discharge(context.Background(), "doctor-1", "patient-1", DischargeRequest{
		DischargeReason: "Recovered", DoctorComments: "ok",
	}); err != nil {
		t.Errorf("Expected publish failure to be tolerated, got %v", err)
	}
}

func TestDischarge_NotFound(t *testing.T) {
	service, _ := newTestService(&mockRepository{})

	_, err := service.Discharge(context.Background(), "doctor-1", "missing", DischargeRequest{
		DischargeReason: "x", DoctorComments: "y",
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
