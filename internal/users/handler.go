package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/respond"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, UserResponse{
		Success: true,
		Message: "Registration successful. Your account is pending approval by an administrator.",
		User:    user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		var statusErr *AccountStatusError
		if errors.As(err, &statusErr) {
			log.Info().Str("status", statusErr.Status).Msg("login refused for unapproved account")
			respond.JSON(w, http.StatusForbidden, AccountStatusResponse{
				Success: false,
				Error:   statusErr.Code(),
				Status:  statusErr.Status,
				Message: statusErr.Error(),
			})
			return
		}
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, LoginResponse{Success: true, LoginResult: *result})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	user, err := h.service.Me(r.Context(), principal.UserID)
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

func (h *Handler) ListConsultants(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListConsultants(r.Context())
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, UserListResponse{Success: true, Users: list, Count: len(list)})
}

func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPendingUsers(r.Context())
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, UserListResponse{Success: true, Users: list, Count: len(list)})
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.ApproveUser, "User approved")
}

func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.RejectUser, "User rejected")
}

type reviewFunc func(ctx context.Context, actorID, userID string) (*User, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc, message string) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	user, err := fn(r.Context(), principal.UserID, mux.Vars(r)["id"])
	if err != nil {
		respond.FromError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, UserResponse{Success: true, Message: message, User: user})
}
