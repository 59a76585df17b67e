package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/timeclock/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]application.UserWithSettings, error)
	UpdateBreakSetting(ctx context.Context, params application.UpdateBreakSettingParams) error
	SetUserDisabled(ctx context.Context, params application.SetUserStatusParams) error
	DeleteUser(ctx context.Context, params application.DeleteUserParams) error
}

// UserHandler serves the admin user management endpoints.
type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Create provisions a new account with its break configuration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "email", req.Email)
	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Input: application.UserInput{
			Email:                req.Email,
			DisplayName:          req.DisplayName,
			Password:             req.Password,
			IsAdmin:              req.IsAdmin,
			Timezone:             req.Timezone,
			BreakDurationMinutes: req.BreakDurationMinutes,
			AutoInsertEnabled:    req.AutoInsertEnabled,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newUserResponse(user))
}

// List returns every account with its break configuration.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "List")
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list users", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := listUsersResponse{Users: make([]userSettingsResponse, 0, len(users))}
	for _, user := range users {
		resp.Users = append(resp.Users, userSettingsResponse{
			UserID:               user.UserID,
			DisplayName:          user.DisplayName,
			Timezone:             user.Timezone,
			BreakDurationMinutes: user.Setting.BreakDurationMinutes,
			AutoInsertEnabled:    user.Setting.AutoInsertEnabled,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// UpdateBreakSetting changes one user's break configuration.
func (h *UserHandler) UpdateBreakSetting(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	var req breakSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateBreakSetting", "target_user_id", userID)
	if err := h.service.UpdateBreakSetting(r.Context(), application.UpdateBreakSettingParams{
		Principal: principal,
		UserID:    userID,
		Setting: application.BreakSetting{
			BreakDurationMinutes: req.BreakDurationMinutes,
			AutoInsertEnabled:    req.AutoInsertEnabled,
		},
	}); err != nil {
		logger.ErrorContext(r.Context(), "failed to update break setting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "break setting updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// UpdateStatus disables or re-enables one user's account.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	var req userStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateStatus", "target_user_id", userID)
	if err := h.service.SetUserDisabled(r.Context(), application.SetUserStatusParams{
		Principal: principal,
		UserID:    userID,
		Disabled:  req.Disabled,
	}); err != nil {
		logger.ErrorContext(r.Context(), "failed to update user status", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user status updated", "disabled", req.Disabled)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Delete removes one user's account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	logger := h.log(r.Context(), "Delete", "target_user_id", userID)
	if err := h.service.DeleteUser(r.Context(), application.DeleteUserParams{
		Principal: principal,
		UserID:    userID,
	}); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type createUserRequest struct {
	Email                string `json:"email"`
	DisplayName          string `json:"display_name"`
	Password             string `json:"password"`
	IsAdmin              bool   `json:"is_admin"`
	Timezone             string `json:"timezone"`
	BreakDurationMinutes int    `json:"break_duration_minutes"`
	AutoInsertEnabled    bool   `json:"auto_insert_enabled"`
}

type userStatusRequest struct {
	Disabled bool `json:"disabled"`
}

type breakSettingRequest struct {
	BreakDurationMinutes int  `json:"break_duration_minutes"`
	AutoInsertEnabled    bool `json:"auto_insert_enabled"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	Timezone    string `json:"timezone"`
	CreatedAt   string `json:"created_at"`
}

type userSettingsResponse struct {
	UserID               string `json:"user_id"`
	DisplayName          string `json:"display_name"`
	Timezone             string `json:"timezone"`
	BreakDurationMinutes int    `json:"break_duration_minutes"`
	AutoInsertEnabled    bool   `json:"auto_insert_enabled"`
}

type listUsersResponse struct {
	Users []userSettingsResponse `json:"users"`
}

func newUserResponse(user application.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		Timezone:    user.Timezone,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
