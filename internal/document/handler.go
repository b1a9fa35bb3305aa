package document

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/respond"
	"github.com/rs/zerolog/log"
)

const (
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxFiles*MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > MaxFiles {
		respond.Error(w, http.StatusBadRequest, "validation_error", "at most 10 files per upload")
		return
	}

	req := UploadRequest{
		PatientID:    r.FormValue("patientId"),
		DocumentType: r.FormValue("documentType"),
	}
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "Failed to read file "+fh.Filename)
			return
		}
		opened = append(opened, f)
		req.Files = append(req.Files, UploadFile{Name: fh.Filename, Size: fh.Size, Content: f})
	}

	docs, err := h.service.Upload(r.Context(), principal.UserID, req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, UploadResponse{
		Success:   true,
		Message:   strconv.Itoa(len(docs)) + " document(s) uploaded successfully",
		Documents: docs,
	})
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListByPatient(r.Context(), mux.Vars(r)["patientId"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Success: true, Documents: docs})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, SuccessResponse{Success: true, Document: d})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	d, rc, err := h.service.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.OriginalName}))
	if d.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("document_id", d.ID).Msg("document download interrupted")
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	if err := h.service.Delete(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Document deleted successfully"})
}
