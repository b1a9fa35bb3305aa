package criticalfactor

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/respond"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// intParam reads an optional integer query parameter; missing means 0.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "Query parameter "+name+" must be an integer")
		return 0, false
	}
	return v, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req CreateRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	cf, err := h.service.Create(r.Context(), principal.UserID, req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, SuccessResponse{
		Success:        true,
		Message:        "Vital signs recorded successfully",
		CriticalFactor: cf,
	})
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}

	factors, err := h.service.ListByPatient(r.Context(), mux.Vars(r)["patientId"], limit)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Success: true, CriticalFactors: factors, Count: len(factors)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cf, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, SuccessResponse{Success: true, CriticalFactor: cf})
}

func (h *Handler) Amend(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req AmendRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	cf, err := h.service.Amend(r.Context(), principal.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, SuccessResponse{
		Success:        true,
		Message:        "Vital signs amended successfully",
		CriticalFactor: cf,
	})
}

func (h *Handler) CriticalPatients(w http.ResponseWriter, r *http.Request) {
	hours, ok := intParam(w, r, "hours")
	if !ok {
		return
	}
	query := CriticalQuery{Mode: r.URL.Query().Get("mode"), Hours: hours}

	patients, err := h.service.CriticalPatients(r.Context(), query)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}

	resp := CriticalPatientsResponse{Success: true, Mode: ModeLatest, Patients: patients, Count: len(patients)}
	if query.Mode == ModeWindow {
		resp.Mode = ModeWindow
		resp.Hours = hours
		if resp.Hours == 0 {
			resp.Hours = DefaultWindowHours
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req AcknowledgeRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ack, err := h.service.Acknowledge(r.Context(), principal.UserID, req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, AcknowledgeResponse{
		Success:         true,
		Message:         "Alert acknowledged",
		Acknowledgement: ack,
	})
}

func (h *Handler) AlertAnalytics(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days")
	if !ok {
		return
	}

	a, err := h.service.AlertAnalytics(r.Context(), days)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, AlertAnalyticsResponse{Success: true, Analytics: a})
}
