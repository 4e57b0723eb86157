package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/auth"
	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/repository"
)

const maxTaskBodyBytes = 1 << 20

type TaskHandler struct {
	taskRepo *repository.TaskRepository
	logger   *zap.Logger
}

func NewTaskHandler(taskRepo *repository.TaskRepository, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// List returns the caller's tasks, newest first. Only order=createdAt.desc is supported.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	if order := r.URL.Query().Get("order"); order != "" && order != "createdAt.desc" {
		writeError(w, http.StatusBadRequest, "unsupported order: "+order)
		return
	}
	owner := auth.ClaimsFromContext(r.Context()).UserID()

	tasks, err := h.taskRepo.ListByOwner(r.Context(), owner)
	if err != nil {
		h.logger.Error("list tasks failed", zap.String("user_id", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to get tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Upsert accepts one task or an array and inserts or replaces by id.
func (h *TaskHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("on_conflict"); key != "" && key != "id" {
		writeError(w, http.StatusBadRequest, "unsupported on_conflict: "+key)
		return
	}
	owner := auth.ClaimsFromContext(r.Context()).UserID()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTaskBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Error trying to read the body: "+err.Error())
		return
	}
	tasks, err := decodeTasks(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "JSON error: "+err.Error())
		return
	}

	for i := range tasks {
		if tasks[i].Owner == "" {
			tasks[i].Owner = owner
		}
		if msg := checkTask(tasks[i]); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	err = h.taskRepo.UpsertMany(r.Context(), owner, tasks)
	if errors.Is(err, repository.ErrForbidden) {
		h.logger.Warn("task write rejected", zap.String("user_id", owner), zap.Error(err))
		writeError(w, http.StatusForbidden, `new row violates row-level security policy for table "tasks"`)
		return
	}
	if err != nil {
		h.logger.Error("upsert tasks failed", zap.String("user_id", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to save tasks")
		return
	}

	if strings.Contains(r.Header.Get("Prefer"), "return=minimal") {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, tasks)
}

// Delete handles id=eq.<id>. Ids that match nothing still succeed.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("id")
	id, ok := strings.CutPrefix(filter, "eq.")
	if !ok || id == "" {
		writeError(w, http.StatusBadRequest, "delete requires an id=eq.<id> filter")
		return
	}
	owner := auth.ClaimsFromContext(r.Context()).UserID()

	if err := h.taskRepo.Delete(r.Context(), owner, id); err != nil {
		h.logger.Error("delete task failed", zap.String("task_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTasks(body []byte) ([]models.Task, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tasks []models.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, err
		}
		return tasks, nil
	}
	var task models.Task
	if err := json.Unmarshal(trimmed, &task); err != nil {
		return nil, err
	}
	return []models.Task{task}, nil
}

func checkTask(t models.Task) string {
	switch {
	case t.ID == "":
		return "task id is required"
	case strings.TrimSpace(t.Title) == "":
		return "task " + t.ID + ": title is required"
	case !t.Status.Valid():
		return "task " + t.ID + ": status is required"
	case !t.Priority.Valid():
		return "task " + t.ID + ": priority is required"
	}
	return ""
}
