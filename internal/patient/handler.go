package patient

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/pagination"
	"github.com/hdu-care/hdu-service/internal/respond"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
	}

	resp, err := h.service.List(r.Context(), filter, pagination.ParseParams(r))
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, DetailResponse{Success: true, Patient: p})
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req UpdateRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), principal.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, DetailResponse{
		Success: true,
		Message: "Patient updated successfully",
		Patient: p,
	})
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context())
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, AnalyticsResponse{Success: true, Analytics: a})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.History(r.Context(), mux.Vars(r)["id"], pagination.ParseParams(r))
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Discharge(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req DischargeRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	result, err := h.service.Discharge(r.Context(), principal.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, DischargeResponse{
		Success: true,
		Message: "Patient discharged and all records permanently deleted",
		Result:  result,
	})
}
