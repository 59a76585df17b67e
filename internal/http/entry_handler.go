package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/timeclock/internal/application"
)

type entryService interface {
	CreateEntry(ctx context.Context, params application.CreateEntryParams) (application.TimeEntry, error)
	UpdateEntry(ctx context.Context, params application.UpdateEntryParams) (application.TimeEntry, error)
	DeleteEntry(ctx context.Context, params application.DeleteEntryParams) error
	ListEntries(ctx context.Context, params application.ListEntriesParams) ([]application.TimeEntry, error)
	StartTimer(ctx context.Context, params application.TimerParams) (application.TimeEntry, error)
	StopTimer(ctx context.Context, params application.TimerParams) (application.TimeEntry, error)
}

// EntryHandler serves the time entry CRUD and live timer endpoints.
type EntryHandler struct {
	service   entryService
	responder responder
	logger    *slog.Logger
}

// NewEntryHandler constructs an EntryHandler.
func NewEntryHandler(service entryService, logger *slog.Logger) *EntryHandler {
	base := defaultLogger(logger)
	return &EntryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EntryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EntryHandler", operation, attrs...)
}

// Create records a new closed or open time entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput(principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "target_user_id", input.UserID)
	entry, err := h.service.CreateEntry(r.Context(), application.CreateEntryParams{
		Principal: principal,
		Input:     input,
		IPAddress: clientIP(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create time entry", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("entry_id", entry.ID).InfoContext(r.Context(), "time entry created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newEntryResponse(entry))
}

// Update replaces the interval bounds of an existing entry.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	entryID, ok := EntryIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEntryID)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput(principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "entry_id", entryID)
	entry, err := h.service.UpdateEntry(r.Context(), application.UpdateEntryParams{
		Principal: principal,
		EntryID:   entryID,
		Input:     input,
		IPAddress: clientIP(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update time entry", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "time entry updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newEntryResponse(entry))
}

// Delete removes a time entry.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	entryID, ok := EntryIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEntryID)
		return
	}

	logger := h.log(r.Context(), "Delete", "entry_id", entryID)
	if err := h.service.DeleteEntry(r.Context(), application.DeleteEntryParams{
		Principal: principal,
		EntryID:   entryID,
		IPAddress: clientIP(r),
	}); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete time entry", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "time entry deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns the caller's entries in a date range, newest-day-first left to
// the client. Admins may pass user_id to inspect another account.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		userID = principal.UserID
	}

	from, err := parseDateParam(query.Get("from"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	to, err := parseDateParam(query.Get("to"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	logger := h.log(r.Context(), "List", "target_user_id", userID)
	entries, err := h.service.ListEntries(r.Context(), application.ListEntriesParams{
		Principal: principal,
		UserID:    userID,
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list time entries", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := listEntriesResponse{Entries: make([]entryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, newEntryResponse(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Start opens a running entry for the caller.
func (h *EntryHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.runTimer(w, r, "Start", func(ctx context.Context, params application.TimerParams) (application.TimeEntry, error) {
		return h.service.StartTimer(ctx, params)
	})
}

// Stop closes the caller's running entry.
func (h *EntryHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.runTimer(w, r, "Stop", func(ctx context.Context, params application.TimerParams) (application.TimeEntry, error) {
		return h.service.StopTimer(ctx, params)
	})
}

func (h *EntryHandler) runTimer(w http.ResponseWriter, r *http.Request, operation string, run func(context.Context, application.TimerParams) (application.TimeEntry, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), operation)
	entry, err := run(r.Context(), application.TimerParams{
		Principal: principal,
		IPAddress: clientIP(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "timer operation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("entry_id", entry.ID).InfoContext(r.Context(), "timer operation succeeded")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newEntryResponse(entry))
}

// parseDateParam treats an absent parameter as the zero time so the service
// can apply its own defaults.
func parseDateParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}

type entryRequest struct {
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsBreak   bool   `json:"is_break"`
}

func (req entryRequest) toInput(principal application.Principal) (application.EntryInput, error) {
	userID := req.UserID
	if userID == "" {
		userID = principal.UserID
	}

	fieldErrors := make(map[string]string)
	var start time.Time
	if req.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			fieldErrors["start_time"] = "must be an RFC 3339 timestamp"
		} else {
			start = parsed
		}
	}

	var end *time.Time
	if req.EndTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			fieldErrors["end_time"] = "must be an RFC 3339 timestamp"
		} else {
			end = &parsed
		}
	}

	if len(fieldErrors) > 0 {
		return application.EntryInput{}, &application.ValidationError{FieldErrors: fieldErrors}
	}
	return application.EntryInput{
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
		IsBreak:   req.IsBreak,
	}, nil
}

type entryResponse struct {
	ID              int64  `json:"id"`
	UserID          string `json:"user_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
	IsBreak         bool   `json:"is_break"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type listEntriesResponse struct {
	Entries []entryResponse `json:"entries"`
}

func newEntryResponse(entry application.TimeEntry) entryResponse {
	resp := entryResponse{
		ID:              entry.ID,
		UserID:          entry.UserID,
		StartTime:       entry.StartTime.UTC().Format(time.RFC3339Nano),
		DurationSeconds: entry.DurationSeconds,
		IsBreak:         entry.IsBreak,
		CreatedAt:       entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if entry.EndTime != nil {
		resp.EndTime = entry.EndTime.UTC().Format(time.RFC3339Nano)
	}
	return resp
}
