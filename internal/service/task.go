// Package service contains the procedures behind the API.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → checks the caller, validates, enforces rules
//	Repository (data layer)  → reads/writes the database
//
// Every procedure receives the caller explicitly as a *model.User (nil for an
// anonymous request). Checking it is always the first thing a procedure does,
// before validation and before the store is touched.
//
// Services depend on repository interfaces, never on sqlstore directly, so
// tests swap in in-memory fakes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/model"
	"github.com/sakif/taskboard/internal/repository"
)

// MaxTitleLength caps task titles. Titles are stored exactly as sent.
const MaxTitleLength = 255

// CreateTaskInput is the payload of tasks.create. A nil Priority means the
// key was absent and the task gets the default.
type CreateTaskInput struct {
	Title       string          `json:"title"       validate:"required,max=255"`
	Description *string         `json:"description"`
	Priority    *model.Priority `json:"priority"    validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time      `json:"dueDate"`
}

// UnmarshalJSON keeps an explicit "priority": null apart from a missing key.
// Only a missing key falls back to medium; null is stored as "" so that
// validation rejects it like any other value outside the enum.
func (in *CreateTaskInput) UnmarshalJSON(data []byte) error {
	type plain CreateTaskInput
	aux := struct {
		*plain
		Priority json.RawMessage `json:"priority"`
	}{plain: (*plain)(in)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	in.Priority = nil
	if aux.Priority == nil {
		return nil
	}
	var p model.Priority
	if string(aux.Priority) != "null" {
		if err := json.Unmarshal(aux.Priority, &p); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				typeErr.Field = "priority"
			}
			return err
		}
	}
	in.Priority = &p
	return nil
}

// UpdateTaskInput is the payload of tasks.update. Nil fields are left as
// they are.
type UpdateTaskInput struct {
	ID          int64           `json:"id"          validate:"required"`
	Title       *string         `json:"title"       validate:"omitempty,min=1,max=255"`
	Description *string         `json:"description"`
	Completed   *bool           `json:"completed"`
	Priority    *model.Priority `json:"priority"    validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time      `json:"dueDate"`
}

// TaskService implements the tasks.* procedures.
type TaskService struct {
	repo     repository.TaskRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTaskService creates a TaskService backed by repo.
func NewTaskService(repo repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{
		repo:     repo,
		validate: newValidator(),
		logger:   logger,
	}
}

// List returns every task owned by the caller.
func (s *TaskService) List(ctx context.Context, caller *model.User) ([]model.Task, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("You must be logged in to view tasks")
	}

	tasks, err := s.repo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, s.storeFailure("listing tasks", err, slog.Int64("userID", caller.ID))
	}

	return tasks, nil
}

// Get returns the caller's task with the given id, or nil when there is no
// such task for this caller. A task owned by someone else looks exactly like
// a missing one.
func (s *TaskService) Get(ctx context.Context, caller *model.User, id int64) (*model.Task, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("You must be logged in to view tasks")
	}

	task, err := s.repo.GetByIDAndOwner(ctx, id, caller.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, s.storeFailure("getting task", err,
			slog.Int64("taskID", id),
			slog.Int64("userID", caller.ID),
		)
	}

	return task, nil
}

// Create validates input and stores a new, not yet completed task owned by
// the caller. Priority defaults to medium.
func (s *TaskService) Create(ctx context.Context, caller *model.User, input CreateTaskInput) (model.WriteResult, error) {
	if caller == nil {
		return model.WriteResult{}, apperror.Unauthorized("You must be logged in to create tasks")
	}

	// === VALIDATION ===
	if err := validateStruct(s.validate, input); err != nil {
		return model.WriteResult{}, err
	}

	priority := model.PriorityMedium
	if input.Priority != nil {
		priority = *input.Priority
	}

	task := &model.Task{
		UserID:      caller.ID,
		Title:       input.Title,
		Description: input.Description,
		Completed:   false,
		Priority:    priority,
		DueDate:     input.DueDate,
	}

	result, err := s.repo.Create(ctx, task)
	if err != nil {
		return model.WriteResult{}, s.storeFailure("creating task", err, slog.Int64("userID", caller.ID))
	}

	s.logger.Info("task created",
		slog.Int64("taskID", result.InsertID),
		slog.Int64("userID", caller.ID),
	)

	return result, nil
}

// Update changes the supplied fields of the caller's task. An id that does
// not exist, or belongs to someone else, changes nothing and reports zero
// rows affected. A payload naming no field to change is rejected.
func (s *TaskService) Update(ctx context.Context, caller *model.User, input UpdateTaskInput) (model.WriteResult, error) {
	if caller == nil {
		return model.WriteResult{}, apperror.Unauthorized("You must be logged in to update tasks")
	}

	if err := validateStruct(s.validate, input); err != nil {
		return model.WriteResult{}, err
	}

	patch := model.TaskPatch{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	}
	if patch.Empty() {
		return model.WriteResult{}, apperror.ValidationFailed("body", "No fields to update")
	}

	result, err := s.repo.Update(ctx, input.ID, caller.ID, patch)
	if err != nil {
		return model.WriteResult{}, s.storeFailure("updating task", err,
			slog.Int64("taskID", input.ID),
			slog.Int64("userID", caller.ID),
		)
	}

	if result.RowsAffected == 0 {
		s.logger.Debug("task update matched nothing",
			slog.Int64("taskID", input.ID),
			slog.Int64("userID", caller.ID),
		)
	}

	return result, nil
}

// Delete removes the caller's task with the given id. Unmatched ids are a
// silent no-op.
func (s *TaskService) Delete(ctx context.Context, caller *model.User, id int64) (model.WriteResult, error) {
	if caller == nil {
		return model.WriteResult{}, apperror.Unauthorized("You must be logged in to delete tasks")
	}

	result, err := s.repo.Delete(ctx, id, caller.ID)
	if err != nil {
		return model.WriteResult{}, s.storeFailure("deleting task", err,
			slog.Int64("taskID", id),
			slog.Int64("userID", caller.ID),
		)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("task deleted",
			slog.Int64("taskID", id),
			slog.Int64("userID", caller.ID),
		)
	}

	return result, nil
}

// storeFailure logs a repository error and wraps it for the caller.
// Unavailability is expected when no database is configured, so it is a
// warning; anything else is an error.
func (s *TaskService) storeFailure(action string, err error, attrs ...any) error {
	attrs = append(attrs, slog.String("error", err.Error()))
	if errors.Is(err, apperror.ErrUnavailable) {
		s.logger.Warn("cannot "+action+": database not available", attrs...)
	} else {
		s.logger.Error("failed "+action, attrs...)
	}
	return fmt.Errorf("%s: %w", action, err)
}
