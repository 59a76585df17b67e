package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/timeclock/internal/application"
)

type breakInsertionService interface {
	InsertAutomaticBreaks(ctx context.Context, params application.InsertBreaksParams) (application.BreakInsertionReport, error)
}

// AutoBreakHandler serves the automatic break insertion trigger. The endpoint
// accepts either the shared scheduler secret as a bearer token or an admin
// session; everything else is rejected before any work starts.
type AutoBreakHandler struct {
	service    breakInsertionService
	validator  SessionValidator
	cronSecret string
	responder  responder
	logger     *slog.Logger
}

// NewAutoBreakHandler constructs an AutoBreakHandler.
func NewAutoBreakHandler(service breakInsertionService, validator SessionValidator, cronSecret string, logger *slog.Logger) *AutoBreakHandler {
	base := defaultLogger(logger)
	return &AutoBreakHandler{
		service:    service,
		validator:  validator,
		cronSecret: cronSecret,
		responder:  newResponder(base),
		logger:     base,
	}
}

func (h *AutoBreakHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AutoBreakHandler", operation, attrs...)
}

// TriggerInsertion authorizes the caller and runs one break insertion batch.
func (h *AutoBreakHandler) TriggerInsertion(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "TriggerInsertion")

	caller, ok := h.authorize(r)
	if !ok {
		logger.InfoContext(r.Context(), "break insertion trigger rejected", "remote_ip", clientIP(r))
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID",
			Message:   "a scheduler token or an admin session is required",
		})
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var targetDate time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		targetDate = parsed
	}

	report, err := h.service.InsertAutomaticBreaks(r.Context(), application.InsertBreaksParams{
		TargetDate: targetDate,
		IPAddress:  clientIP(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "break insertion batch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "break insertion batch completed",
		"caller", caller,
		"processed_users", report.ProcessedUsers,
		"skipped", len(report.Skipped),
		"errors", len(report.Errors))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newTriggerResponse(report))
}

// authorize returns a caller label and whether the request may run the batch.
// The secret comparison is constant time so the bearer path does not leak
// prefix matches.
func (h *AutoBreakHandler) authorize(r *http.Request) (string, bool) {
	token := extractTokenFromRequest(r)
	if token == "" {
		return "", false
	}

	if h.cronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1 {
		return "scheduler", true
	}

	if h.validator == nil {
		return "", false
	}
	principal, err := h.validator.ValidateSession(r.Context(), token)
	if err != nil || !principal.IsAdmin {
		return "", false
	}
	return "admin:" + principal.UserID, true
}

type triggerRequest struct {
	Date string `json:"date"`
}

// The trigger response keeps the camelCase keys the scheduler integrations
// already consume, unlike the rest of the API.
type triggerResponse struct {
	Success        bool             `json:"success"`
	ProcessedUsers int              `json:"processedUsers"`
	Breaks         []insertedBreak  `json:"breaks"`
	Skipped        []skippedUser    `json:"skipped"`
	Errors         []insertionError `json:"errors"`
}

type insertedBreak struct {
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	BreakID         int64  `json:"breakId"`
	BreakStartTime  string `json:"breakStartTime"`
	BreakEndTime    string `json:"breakEndTime"`
	DurationSeconds int64  `json:"breakDuration"`
}

type skippedUser struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type insertionError struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func newTriggerResponse(report application.BreakInsertionReport) triggerResponse {
	resp := triggerResponse{
		Success:        len(report.Errors) == 0,
		ProcessedUsers: report.ProcessedUsers,
		Breaks:         make([]insertedBreak, 0, len(report.Breaks)),
		Skipped:        make([]skippedUser, 0, len(report.Skipped)),
		Errors:         make([]insertionError, 0, len(report.Errors)),
	}
	for _, b := range report.Breaks {
		resp.Breaks = append(resp.Breaks, insertedBreak{
			UserID:          b.UserID,
			UserName:        b.UserName,
			BreakID:         b.BreakID,
			BreakStartTime:  b.BreakStartTime.UTC().Format(time.RFC3339Nano),
			BreakEndTime:    b.BreakEndTime.UTC().Format(time.RFC3339Nano),
			DurationSeconds: b.BreakDurationSeconds,
		})
	}
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, skippedUser{UserID: s.UserID, Reason: string(s.Reason)})
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, insertionError{UserID: e.UserID, Message: e.Message})
	}
	return resp
}
