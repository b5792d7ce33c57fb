package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/khoitran3172/todo-list/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// addDependencyRequest also accepts the camelCase dependencyId older
// clients send.
type addDependencyRequest struct {
	DependencyID      int64 `json:"dependency_id"`
	DependencyIDCamel int64 `json:"dependencyId"`
}

func (r addDependencyRequest) dependencyID() int64 {
	if r.DependencyID != 0 {
		return r.DependencyID
	}
	return r.DependencyIDCamel
}

type addDependencyResponse struct {
	TaskID       int64 `json:"task_id"`
	DependencyID int64 `json:"dependency_id"`
	Added        bool  `json:"added"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in types.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.svc.CreateTask(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"), "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := types.TaskFilter{
		Status:   types.Status(q.Get("status")),
		Priority: types.Priority(q.Get("priority")),
	}

	result, err := s.svc.ListTasks(r.Context(), page, limit, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.svc.GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if task == nil {
		s.writeError(w, r, fmt.Errorf("%w: %d", types.ErrTaskNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch types.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.svc.UpdateTask(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	deleted, err := s.svc.DeleteTask(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		s.writeError(w, r, fmt.Errorf("%w: %d", types.ErrTaskNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	depID := req.dependencyID()
	if depID <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: dependency_id is required", types.ErrInvalidArgument))
		return
	}

	added, err := s.svc.AddDependency(r.Context(), id, depID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, addDependencyResponse{TaskID: id, DependencyID: depID, Added: added})
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	depID, err := pathID(r, "dependencyId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	removed, err := s.svc.RemoveDependency(r.Context(), id, depID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, r, fmt.Errorf("%w: %d -> %d", types.ErrDependencyNotFound, id, depID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	set, err := s.svc.ListDependencies(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"cache_enabled": s.svc.Cache().Enabled(),
		"cache_entries": s.svc.Cache().Len(),
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrCircularDependency) && !errors.Is(err, types.ErrInvalidArgument):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Printf("Error handling %s %s (request_id=%s): %v", r.Method, r.URL.Path, RequestID(r.Context()), err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", types.ErrInvalidArgument, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", types.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

func optionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", types.ErrInvalidArgument, name, raw)
	}
	return n, nil
}
