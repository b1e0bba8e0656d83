package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/metrics"
	"github.com/sakif/taskboard/internal/service"
)

// TaskHandler exposes the tasks.* procedures over HTTP.
//
// Each handler reads the caller from the context (set by auth.Identify),
// decodes the input and hands both to TaskService. The service checks the
// caller before anything else, so a decode failure is only reported to a
// signed-in caller; anonymous callers always get 401.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// taskIDInput is the payload of tasks.delete.
type taskIDInput struct {
	ID int64 `json:"id"`
}

// HandleList returns the caller's tasks.
//
// HTTP: GET /api/tasks.list
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.UserFromContext(r.Context())

	tasks, err := h.tasks.List(r.Context(), caller)
	metrics.ObserveProcedure("tasks.list", start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// HandleGet returns one of the caller's tasks, or null.
//
// HTTP: GET /api/tasks.get?id=N
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.UserFromContext(r.Context())

	id, err := queryID(r)
	if err != nil && caller != nil {
		metrics.ObserveProcedure("tasks.get", start, err)
		writeError(w, err)
		return
	}

	task, err := h.tasks.Get(r.Context(), caller, id)
	metrics.ObserveProcedure("tasks.get", start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	if task == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleCreate creates a task for the caller.
//
// HTTP: POST /api/tasks.create
// Body: {"title": "...", "description"?: "...", "priority"?: "low|medium|high", "dueDate"?: RFC 3339}
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.UserFromContext(r.Context())

	var input service.CreateTaskInput
	if err := decodeJSON(w, r, &input); err != nil && caller != nil {
		h.logger.Debug("invalid tasks.create body", slog.String("error", err.Error()))
		metrics.ObserveProcedure("tasks.create", start, err)
		writeError(w, err)
		return
	}

	result, err := h.tasks.Create(r.Context(), caller, input)
	metrics.ObserveProcedure("tasks.create", start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleUpdate changes the supplied fields of one of the caller's tasks.
//
// HTTP: POST /api/tasks.update
// Body: {"id": N, "title"?: ..., "description"?: ..., "completed"?: bool, "priority"?: ..., "dueDate"?: ...}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.UserFromContext(r.Context())

	var input service.UpdateTaskInput
	if err := decodeJSON(w, r, &input); err != nil && caller != nil {
		h.logger.Debug("invalid tasks.update body", slog.String("error", err.Error()))
		metrics.ObserveProcedure("tasks.update", start, err)
		writeError(w, err)
		return
	}

	result, err := h.tasks.Update(r.Context(), caller, input)
	metrics.ObserveProcedure("tasks.update", start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleDelete removes one of the caller's tasks.
//
// HTTP: POST /api/tasks.delete
// Body: {"id": N}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.UserFromContext(r.Context())

	var input taskIDInput
	if err := decodeJSON(w, r, &input); err != nil && caller != nil {
		metrics.ObserveProcedure("tasks.delete", start, err)
		writeError(w, err)
		return
	}

	result, err := h.tasks.Delete(r.Context(), caller, input.ID)
	metrics.ObserveProcedure("tasks.delete", start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// queryID parses the required "id" query parameter.
func queryID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, apperror.ValidationFailed("id", "id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "id must be a number")
	}
	return id, nil
}
