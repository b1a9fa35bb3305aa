package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/rs/zerolog/log"
)

const (
	MaxFiles    = 10
	MaxFileSize = 100 << 20
	sniffLen    = 512
)

// fileKind is an accepted extension with the MIME type stored for it and
// the content types http.DetectContentType may report for such a file.
type fileKind struct {
	mime   string
	sniffs []string
}

var allowedKinds = map[string]fileKind{
	".pdf":  {mime: "application/pdf", sniffs: []string{"application/pdf"}},
	".jpg":  {mime: "image/jpeg", sniffs: []string{"image/jpeg"}},
	".jpeg": {mime: "image/jpeg", sniffs: []string{"image/jpeg"}},
	".png":  {mime: "image/png", sniffs: []string{"image/png"}},
	".gif":  {mime: "image/gif", sniffs: []string{"image/gif"}},
	".doc":  {mime: "application/msword", sniffs: []string{"application/octet-stream"}},
	".docx": {
		mime:   "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		sniffs: []string{"application/zip", "application/octet-stream"},
	},
	".txt": {mime: "text/plain", sniffs: []string{"text/plain"}},
}

// UploadFile is one part of an upload request.
type UploadFile struct {
	Name    string
	Size    int64
	Content io.Reader
}

// UploadRequest carries the form fields of an upload.
type UploadRequest struct {
	PatientID    string
	DocumentType string
	Files        []UploadFile
}

// ServiceInterface defines the contract for document business logic
type ServiceInterface interface {
	Upload(ctx context.Context, actorID string, req UploadRequest) ([]Document, error)
	ListByPatient(ctx context.Context, patientID string) ([]Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	Open(ctx context.Context, id string) (*Document, io.ReadCloser, error)
	Delete(ctx context.Context, actorID, id string) error
}

// CleanerInterface is used by the bed and patient workflows to drop a
// patient's documents: rows inside their transaction, files after commit.
type CleanerInterface interface {
	DeleteForPatientInTx(ctx context.Context, q db.DBTX, patientID string) ([]Document, error)
	RemoveFiles(ctx context.Context, docs []Document) int
}

type Service struct {
	db      db.DBTX
	tx      db.TxRunner
	repo    RepositoryInterface
	storage Storage
	audit   audit.RecorderInterface
}

func NewService(pool db.DBTX, tx db.TxRunner, repo RepositoryInterface, storage Storage, recorder audit.RecorderInterface) *Service {
	return &Service{db: pool, tx: tx, repo: repo, storage: storage, audit: recorder}
}

var (
	_ ServiceInterface = (*Service)(nil)
	_ CleanerInterface = (*Service)(nil)
)

func (s *Service) Upload(ctx context.Context, actorID string, req UploadRequest) ([]Document, error) {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.PatientID, validation.Required),
		validation.Field(&req.DocumentType, validation.Required,
			validation.In(TypeMedicalReport, TypeIDProof, TypeConsentForm, TypeOther).
				Error("must be one of medical-report, id-proof, consent-form, other")),
		validation.Field(&req.Files, validation.Required.Error("at least one file is required"),
			validation.Length(1, MaxFiles).Error(fmt.Sprintf("at most %d files per upload", MaxFiles))),
	)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	for _, f := range req.Files {
		if f.Size > MaxFileSize {
			return nil, apperr.Validation(fmt.Sprintf("file %s exceeds the 100MB limit", f.Name))
		}
	}

	exists, err := s.repo.PatientExists(ctx, s.db, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	dir, _ := CategoryDir(req.DocumentType)
	docs := make([]Document, 0, len(req.Files))
	for _, f := range req.Files {
		d, err := s.store(ctx, actorID, req.PatientID, req.DocumentType, dir, f)
		if err != nil {
			s.RemoveFiles(ctx, docs)
			return nil, err
		}
		docs = append(docs, *d)
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		for i := range docs {
			if err := s.repo.Create(ctx, q, &docs[i]); err != nil {
				return err
			}
			err := s.audit.Record(ctx, q, audit.Entry{
				ActorID:     actorID,
				Action:      audit.ActionCreate,
				TableName:   audit.TablePatientDocuments,
				RecordID:    docs[i].ID,
				PatientID:   docs[i].PatientID,
				NewState:    docs[i].AuditSnapshot(),
				Description: fmt.Sprintf("Document %s uploaded", docs[i].OriginalName),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.RemoveFiles(ctx, docs)
		return nil, err
	}

	for i := range docs {
		docs[i].URL = s.storage.URL(docs[i].StorageKey)
	}
	log.Info().Str("patient_id", req.PatientID).Int("count", len(docs)).Str("actor_id", actorID).Msg("documents uploaded")
	return docs, nil
}

// store checks the file type and writes the bytes to storage.
func (s *Service) store(ctx context.Context, actorID, patientID, documentType, dir string, f UploadFile) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	kind, ok := allowedKinds[ext]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("file %s: only PDF, images, DOC, DOCX and TXT files are allowed", f.Name))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload %s: %w", f.Name, err)
	}
	head = head[:n]
	if !sniffMatches(http.DetectContentType(head), kind.sniffs) {
		return nil, apperr.Validation(fmt.Sprintf("file %s: content does not match its extension", f.Name))
	}

	id := uuid.New().String()
	fileName := id + ext
	key := dir + "/" + fileName
	body := io.MultiReader(bytes.NewReader(head), f.Content)
	if err := s.storage.Save(ctx, key, body, f.Size, kind.mime); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
	}

	d := &Document{
		ID:           id,
		PatientID:    patientID,
		DocumentType: documentType,
		FileName:     fileName,
		OriginalName: filepath.Base(f.Name),
		StorageKey:   key,
		MimeType:     kind.mime,
		SizeBytes:    f.Size,
	}
	if actorID != "" {
		d.UploadedBy = &actorID
	}
	return d, nil
}

func sniffMatches(detected string, accepted []string) bool {
	detected = strings.TrimSpace(strings.SplitN(detected, ";", 2)[0])
	for _, a := range accepted {
		if detected == a {
			return true
		}
	}
	return false
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Document, error) {
	docs, err := s.repo.ListByPatient(ctx, s.db, patientID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].URL = s.storage.URL(docs[i].StorageKey)
	}
	return docs, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	d, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	d.URL = s.storage.URL(d.StorageKey)
	return d, nil
}

// Open returns the metadata and a reader for the stored bytes. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, id string) (*Document, io.ReadCloser, error) {
	d, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, d.StorageKey)
	if errors.Is(err, ErrFileNotFound) {
		return nil, nil, apperr.NotFound("document file not found")
	}
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

// Delete removes the row, then the file. A file that cannot be removed is
// logged and left behind.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	d, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, d.StorageKey); err != nil {
		log.Warn().Err(err).Str("document_id", id).Str("key", d.StorageKey).Msg("failed to delete document file")
	}
	log.Info().Str("document_id", id).Str("patient_id", d.PatientID).Str("actor_id", actorID).Msg("document deleted")
	return nil
}

func (s *Service) DeleteForPatientInTx(ctx context.Context, q db.DBTX, patientID string) ([]Document, error) {
	return s.repo.DeleteForPatient(ctx, q, patientID)
}

// RemoveFiles deletes the stored bytes of docs and returns how many could
// not be removed. Failures are logged only.
func (s *Service) RemoveFiles(ctx context.Context, docs []Document) int {
	failed := 0
	for _, d := range docs {
		if err := s.storage.Delete(ctx, d.StorageKey); err != nil {
			failed++
			log.Warn().Err(err).Str("document_id", d.ID).Str("key", d.StorageKey).Msg("failed to delete document file")
		}
	}
	return failed
}
