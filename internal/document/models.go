package document

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
)

// Document types accepted on upload.
const (
	TypeMedicalReport = "medical-report"
	TypeIDProof       = "id-proof"
	TypeConsentForm   = "consent-form"
	TypeOther         = "other"
)

// categoryDirs maps a document type to its storage directory.
var categoryDirs = map[string]string{
	TypeMedicalReport: "medical-reports",
	TypeIDProof:       "id-proof",
	TypeConsentForm:   "consent-forms",
	TypeOther:         "other",
}

// CategoryDir returns the storage directory of a document type.
func CategoryDir(documentType string) (string, bool) {
	dir, ok := categoryDirs[documentType]
	return dir, ok
}

// Document is one row of patient_documents.
type Document struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	DocumentType string    `json:"documentType"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	StorageKey   string    `json:"-"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedBy   *string   `json:"uploadedBy,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
	URL          string    `json:"url,omitempty"`
}

// AuditSnapshot returns the audited fields of the document.
func (d Document) AuditSnapshot() audit.State {
	return audit.State{
		"patientId":    d.PatientID,
		"documentType": d.DocumentType,
		"fileName":     d.FileName,
		"originalName": d.OriginalName,
		"mimeType":     d.MimeType,
		"sizeBytes":    d.SizeBytes,
	}
}

// UploadResponse lists the stored documents.
type UploadResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Documents []Document `json:"documents"`
}

type ListResponse struct {
	Success   bool       `json:"success"`
	Documents []Document `json:"documents"`
}

type SuccessResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Document *Document `json:"document,omitempty"`
}
