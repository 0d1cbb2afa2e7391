package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"todoapp/internal/domain/todo"
	"todoapp/internal/shared/middleware"
)

const maxRowBytes = 64 << 10

// RepositoryProvider returns the todos relation as seen by subject.
type RepositoryProvider func(subject string) todo.Repository

// RestHandler serves the subset of the PostgREST surface the todo client
// uses, for running without a hosted datastore. It must sit behind
// middleware.BearerAuth.
type RestHandler struct {
	repos RepositoryProvider
}

func NewRestHandler(repos RepositoryProvider) *RestHandler {
	return &RestHandler{repos: repos}
}

// pgError mirrors the datastore's error body.
type pgError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

type insertRequest struct {
	Task   string `json:"task"`
	UserID string `json:"user_id"`
}

type updateRequest struct {
	IsComplete *bool `json:"is_complete"`
}

// HandleTodos routes /rest/v1/todos by method.
func (h *RestHandler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writePGError(w, http.StatusUnauthorized, pgError{Code: "PGRST302", Message: "Anonymous access is disabled"})
		return
	}
	repo := h.repos(subject)

	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r, repo)
	case http.MethodPost:
		h.handleInsert(w, r, repo, subject)
	case http.MethodPatch:
		h.handleUpdate(w, r, repo)
	case http.MethodDelete:
		h.handleDelete(w, r, repo)
	default:
		w.Header().Set("Allow", "GET, POST, PATCH, DELETE")
		writePGError(w, http.StatusMethodNotAllowed, pgError{Code: "PGRST117", Message: "Unsupported HTTP method: " + r.Method})
	}
}

func (h *RestHandler) handleList(w http.ResponseWriter, r *http.Request, repo todo.Repository) {
	todos, err := repo.List(r.Context())
	if err != nil {
		h.writeRepoError(w, "listing todos", err)
		return
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *RestHandler) handleInsert(w http.ResponseWriter, r *http.Request, repo todo.Repository, subject string) {
	var req insertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRowBytes)).Decode(&req); err != nil {
		writePGError(w, http.StatusBadRequest, pgError{Code: "PGRST102", Message: "Empty or invalid json"})
		return
	}

	params := todo.CreateParams{Task: req.Task, UserID: req.UserID}
	if err := params.Normalize(); err != nil {
		if errors.Is(err, todo.ErrTaskRequired) {
			h.writeRepoError(w, "inserting todo", err)
			return
		}
		// An absent user_id can never satisfy the ownership check.
		h.writeRepoError(w, "inserting todo", todo.ErrPolicyViolation)
		return
	}
	if params.UserID != subject {
		h.writeRepoError(w, "inserting todo", todo.ErrPolicyViolation)
		return
	}

	created, err := repo.Create(r.Context(), params)
	if err != nil {
		h.writeRepoError(w, "inserting todo", err)
		return
	}
	writeRows(w, r, http.StatusCreated, created)
}

func (h *RestHandler) handleUpdate(w http.ResponseWriter, r *http.Request, repo todo.Repository) {
	id, err := idFilter(r)
	if err != nil {
		writePGError(w, http.StatusBadRequest, pgError{Code: "PGRST100", Message: err.Error()})
		return
	}

	var req updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRowBytes)).Decode(&req); err != nil || req.IsComplete == nil {
		writePGError(w, http.StatusBadRequest, pgError{Code: "PGRST102", Message: "Empty or invalid json"})
		return
	}

	updated, err := repo.SetComplete(r.Context(), id, *req.IsComplete)
	if errors.Is(err, todo.ErrNotFound) {
		writeRows(w, r, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.writeRepoError(w, "updating todo", err)
		return
	}
	writeRows(w, r, http.StatusOK, updated)
}

func (h *RestHandler) handleDelete(w http.ResponseWriter, r *http.Request, repo todo.Repository) {
	id, err := idFilter(r)
	if err != nil {
		writePGError(w, http.StatusBadRequest, pgError{Code: "PGRST100", Message: err.Error()})
		return
	}

	deleted, err := repo.Delete(r.Context(), id)
	if errors.Is(err, todo.ErrNotFound) {
		writeRows(w, r, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.writeRepoError(w, "deleting todo", err)
		return
	}
	writeRows(w, r, http.StatusOK, deleted)
}

func (h *RestHandler) writeRepoError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, todo.ErrPolicyViolation):
		writePGError(w, http.StatusForbidden, pgError{
			Code:    "42501",
			Message: `new row violates row-level security policy for table "todos"`,
		})
	case errors.Is(err, todo.ErrTaskRequired):
		writePGError(w, http.StatusBadRequest, pgError{
			Code:    "23514",
			Message: `new row for relation "todos" violates check constraint "todos_task_check"`,
		})
	default:
		log.Printf("Error %s: %v", action, err)
		writePGError(w, http.StatusInternalServerError, pgError{Code: "XX000", Message: "internal error"})
	}
}

// writeRows honours Prefer: return=representation. Without it the datastore
// answers mutations with an empty body.
func writeRows(w http.ResponseWriter, r *http.Request, status int, row *todo.Todo) {
	if !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		return
	}
	rows := []todo.Todo{}
	if row != nil {
		rows = append(rows, *row)
	}
	writeJSON(w, status, rows)
}

// idFilter parses the only supported row filter, id=eq.<n>.
func idFilter(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	value, ok := strings.CutPrefix(raw, "eq.")
	if !ok {
		return 0, fmt.Errorf("unsupported filter id=%q, want id=eq.<n>", raw)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func writePGError(w http.ResponseWriter, status int, e pgError) {
	writeJSON(w, status, e)
}
