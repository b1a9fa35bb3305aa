package vitals

import (
	"net/http"

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

type ConfigListResponse struct {
	Success bool     `json:"success"`
	Configs []Config `json:"configs"`
}

type ConfigSuccessResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Config  *Config `json:"config,omitempty"`
}

func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	configs, err := h.service.ListConfigs(r.Context(), activeOnly)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ConfigListResponse{Success: true, Configs: configs})
}

func (h *Handler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req CreateConfigRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	c, err := h.service.CreateConfig(r.Context(), principal.UserID, req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, ConfigSuccessResponse{
		Success: true,
		Message: "Vital sign configuration created successfully",
		Config:  c,
	})
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req UpdateConfigRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	c, err := h.service.UpdateConfig(r.Context(), principal.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ConfigSuccessResponse{
		Success: true,
		Message: "Vital sign configuration updated successfully",
		Config:  c,
	})
}

func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	if err := h.service.DeleteConfig(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, ConfigSuccessResponse{
		Success: true,
		Message: "Vital sign configuration deleted successfully",
	})
}
