package main

import (
	"context"
	"time"

	"github.com/example/timeclock/internal/application"
	"github.com/example/timeclock/internal/persistence"
)

// The adapters below bridge the application layer interfaces onto the
// persistence repositories, converting between the two model sets.

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string, setting application.BreakSetting) (application.User, error) {
	model := toPersistenceUser(user, passwordHash)
	model.BreakDurationMinutes = setting.BreakDurationMinutes
	model.AutoInsertEnabled = setting.AutoInsertEnabled
	if err := a.repo.CreateUser(ctx, model); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userDirectoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userDirectoryAdapter) ListUsersWithSettings(ctx context.Context) ([]application.UserWithSettings, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.UserWithSettings, 0, len(models))
	for _, model := range models {
		if model.Disabled {
			continue
		}
		users = append(users, application.UserWithSettings{
			UserID:      model.ID,
			DisplayName: model.DisplayName,
			Timezone:    model.Timezone,
			Setting: application.BreakSetting{
				BreakDurationMinutes: model.BreakDurationMinutes,
				AutoInsertEnabled:    model.AutoInsertEnabled,
			},
		})
	}
	return users, nil
}

func (a *userDirectoryAdapter) UpdateBreakSetting(ctx context.Context, userID string, setting application.BreakSetting) error {
	return a.repo.UpdateBreakSetting(ctx, userID, setting.BreakDurationMinutes, setting.AutoInsertEnabled)
}

func (a *userDirectoryAdapter) SetUserDisabled(ctx context.Context, userID string, disabled bool) error {
	stored, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	stored.Disabled = disabled
	return a.repo.UpdateUser(ctx, stored)
}

func (a *userDirectoryAdapter) DeleteUser(ctx context.Context, userID string) error {
	return a.repo.DeleteUser(ctx, userID)
}

type entryStoreAdapter struct {
	repo persistence.TimeEntryRepository
}

func newEntryStoreAdapter(repo persistence.TimeEntryRepository) *entryStoreAdapter {
	return &entryStoreAdapter{repo: repo}
}

func (a *entryStoreAdapter) CreateEntry(ctx context.Context, entry application.TimeEntry) (application.TimeEntry, error) {
	stored, err := a.repo.CreateEntry(ctx, toPersistenceEntry(entry))
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationEntry(stored), nil
}

func (a *entryStoreAdapter) GetEntry(ctx context.Context, id int64) (application.TimeEntry, error) {
	stored, err := a.repo.GetEntry(ctx, id)
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationEntry(stored), nil
}

func (a *entryStoreAdapter) UpdateEntry(ctx context.Context, entry application.TimeEntry) (application.TimeEntry, error) {
	stored, err := a.repo.UpdateEntry(ctx, toPersistenceEntry(entry))
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationEntry(stored), nil
}

func (a *entryStoreAdapter) DeleteEntry(ctx context.Context, id int64) error {
	return a.repo.DeleteEntry(ctx, id)
}

func (a *entryStoreAdapter) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]application.TimeEntry, error) {
	models, err := a.repo.ListEntriesInRange(ctx, persistence.EntryFilter{
		UserID: userID,
		Start:  from,
		End:    to,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationEntries(models), nil
}

func (a *entryStoreAdapter) ListEntriesInRange(ctx context.Context, userID string, start, end time.Time, isBreak bool) ([]application.TimeEntry, error) {
	models, err := a.repo.ListEntriesInRange(ctx, persistence.EntryFilter{
		UserID:  userID,
		Start:   start,
		End:     end,
		IsBreak: &isBreak,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationEntries(models), nil
}

func (a *entryStoreAdapter) FindOpenEntry(ctx context.Context, userID string) (application.TimeEntry, error) {
	stored, err := a.repo.FindOpenEntry(ctx, userID)
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationEntry(stored), nil
}

func (a *entryStoreAdapter) ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []application.TimeEntry) ([]application.TimeEntry, error) {
	models := make([]persistence.TimeEntry, 0, len(replacements))
	for _, entry := range replacements {
		models = append(models, toPersistenceEntry(entry))
	}
	created, err := a.repo.ReplaceEntryWithSplit(ctx, originalID, models)
	if err != nil {
		return nil, err
	}
	return toApplicationEntries(created), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	return a.repo.RevokeSession(ctx, token, revokedAt)
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type auditSinkAdapter struct {
	repo persistence.AuditLogRepository
}

func newAuditSinkAdapter(repo persistence.AuditLogRepository) *auditSinkAdapter {
	return &auditSinkAdapter{repo: repo}
}

func (a *auditSinkAdapter) Record(ctx context.Context, entry application.AuditEntry) error {
	_, err := a.repo.Record(ctx, persistence.AuditLogEntry{
		UserID:    entry.UserID,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
	})
	return err
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		Timezone:    model.Timezone,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		Timezone:     user.Timezone,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationEntry(model persistence.TimeEntry) application.TimeEntry {
	return application.TimeEntry{
		ID:              model.ID,
		UserID:          model.UserID,
		StartTime:       model.StartTime,
		EndTime:         cloneTime(model.EndTime),
		DurationSeconds: model.DurationSeconds,
		IsBreak:         model.IsBreak,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toApplicationEntries(models []persistence.TimeEntry) []application.TimeEntry {
	if len(models) == 0 {
		return nil
	}
	entries := make([]application.TimeEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, toApplicationEntry(model))
	}
	return entries
}

func toPersistenceEntry(entry application.TimeEntry) persistence.TimeEntry {
	return persistence.TimeEntry{
		ID:              entry.ID,
		UserID:          entry.UserID,
		StartTime:       entry.StartTime,
		EndTime:         cloneTime(entry.EndTime),
		DurationSeconds: entry.DurationSeconds,
		IsBreak:         entry.IsBreak,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
