package bed

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/patient"
	"github.com/hdu-care/hdu-service/internal/respond"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func bedID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "Invalid bed id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, status string) {
	beds, err := h.service.List(r.Context(), status)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Success: true, Beds: beds, Count: len(beds)})
}

func (h *Handler) ListBeds(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("status"))
}

func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, mux.Vars(r)["status"])
}

func (h *Handler) GetBed(w http.ResponseWriter, r *http.Request) {
	id, ok := bedID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, BedResponse{Success: true, Bed: b})
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	id, ok := bedID(w, r)
	if !ok {
		return
	}

	var req patient.AdmitRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	result, err := h.service.Assign(r.Context(), principal.UserID, id, req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, AssignResponse{
		Success: true,
		Message: "Patient admitted and bed assigned",
		Result:  result,
	})
}

func (h *Handler) Deassign(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	id, ok := bedID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Deassign(r.Context(), principal.UserID, id)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, DeassignResponse{
		Success: true,
		Message: "Bed released",
		Result:  result,
	})
}
