package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

// UserDirectory captures the persistence operations needed by the user service.
type UserDirectory interface {
	CreateUser(ctx context.Context, user User, passwordHash string, setting BreakSetting) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsersWithSettings(ctx context.Context) ([]UserWithSettings, error)
	UpdateBreakSetting(ctx context.Context, userID string, setting BreakSetting) error
	SetUserDisabled(ctx context.Context, userID string, disabled bool) error
	DeleteUser(ctx context.Context, userID string) error
}

// UserService handles the administrator-facing user and break-setting
// operations. Reading the same settings back is the engine's provider path.
type UserService struct {
	users       UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateUser validates input and persists a new account for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user service not configured")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	input := params.Input
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	vErr := &ValidationError{}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			vErr.add("timezone", "timezone is not a valid IANA name")
		}
	}
	if input.BreakDurationMinutes < 0 {
		vErr.add("break_duration_minutes", "break duration must not be negative")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:          s.idGenerator(),
		Email:       input.Email,
		DisplayName: input.DisplayName,
		IsAdmin:     input.IsAdmin,
		Timezone:    input.Timezone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	setting := BreakSetting{
		BreakDurationMinutes: input.BreakDurationMinutes,
		AutoInsertEnabled:    input.AutoInsertEnabled,
	}

	persisted, err := s.users.CreateUser(ctx, user, hash, setting)
	if err != nil {
		return User{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "CreateUser").
		InfoContext(ctx, "user created", "user_id", persisted.ID, "is_admin", persisted.IsAdmin)
	return persisted, nil
}

// ListUsers returns all accounts with their break settings, for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]UserWithSettings, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	users, err := s.users.ListUsersWithSettings(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return users, nil
}

// UpdateBreakSetting changes one user's break configuration, for administrators.
func (s *UserService) UpdateBreakSetting(ctx context.Context, params UpdateBreakSettingParams) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}
	if !params.Principal.IsAdmin {
		return ErrUnauthorized
	}

	if params.Setting.BreakDurationMinutes < 0 {
		vErr := &ValidationError{}
		vErr.add("break_duration_minutes", "break duration must not be negative")
		return vErr
	}

	if _, err := s.users.GetUser(ctx, params.UserID); err != nil {
		return mapStoreError(err)
	}

	if err := s.users.UpdateBreakSetting(ctx, params.UserID, params.Setting); err != nil {
		return mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "UpdateBreakSetting").
		InfoContext(ctx, "break setting updated",
			"user_id", params.UserID,
			"duration_minutes", params.Setting.BreakDurationMinutes,
			"auto_insert", params.Setting.AutoInsertEnabled,
		)
	return nil
}

// SetUserDisabled disables or re-enables an account, for administrators.
// Disabled accounts cannot sign in and are excluded from break insertion.
func (s *UserService) SetUserDisabled(ctx context.Context, params SetUserStatusParams) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}
	if !params.Principal.IsAdmin {
		return ErrUnauthorized
	}
	if params.UserID == params.Principal.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot change the status of your own account")
		return vErr
	}

	if err := s.users.SetUserDisabled(ctx, params.UserID, params.Disabled); err != nil {
		return mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "SetUserDisabled").
		InfoContext(ctx, "user status updated", "user_id", params.UserID, "disabled", params.Disabled)
	return nil
}

// DeleteUser removes an account, for administrators.
func (s *UserService) DeleteUser(ctx context.Context, params DeleteUserParams) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}
	if !params.Principal.IsAdmin {
		return ErrUnauthorized
	}
	if params.UserID == params.Principal.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot delete your own account")
		return vErr
	}

	if err := s.users.DeleteUser(ctx, params.UserID); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("user_id", "user still has tracked time or sessions, disable the account instead")
			return vErr
		}
		return mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "DeleteUser").
		InfoContext(ctx, "user deleted", "user_id", params.UserID)
	return nil
}
