package todo

import (
	"errors"
	"strings"
)

var (
	ErrTaskRequired = errors.New("task is required")
	ErrNotFound     = errors.New("todo not found")

	// ErrPolicyViolation is returned when a write would create or modify a
	// row the caller does not own.
	ErrPolicyViolation = errors.New("row violates ownership policy")
)

// Todo is a single row of the todos relation. UserID always equals the
// subject of the credential that created it; the datastore enforces this.
type Todo struct {
	ID         int64  `json:"id"`
	Task       string `json:"task"`
	IsComplete bool   `json:"is_complete"`
	UserID     string `json:"user_id"`
}

type CreateParams struct {
	Task   string
	UserID string
}

// Normalize trims the task and reports whether anything is left to insert.
func (p *CreateParams) Normalize() error {
	p.Task = strings.TrimSpace(p.Task)
	if p.Task == "" {
		return ErrTaskRequired
	}
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}
