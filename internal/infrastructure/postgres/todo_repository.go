package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"todoapp/internal/domain/todo"
)

const (
	pgInsufficientPrivilege = "42501"
	pgCheckViolation        = "23514"
)

// TodoRepository hands out views of the todos table scoped to one subject.
// Ownership is enforced by the table's row-level policies, not by the
// queries below; see schema.sql.
type TodoRepository struct {
	db *DB
}

func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// ForSubject returns the todos visible to subject.
func (r *TodoRepository) ForSubject(subject string) todo.Repository {
	return &subjectTodos{db: r.db, subject: subject}
}

type subjectTodos struct {
	db      *DB
	subject string
}

// claimsJSON is the claim set exposed to policies through request.jwt.claims.
func claimsJSON(subject string) (string, error) {
	b, err := json.Marshal(map[string]string{
		"sub":  subject,
		"role": "authenticated",
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// inTx runs fn as the authenticated role with the subject's claims set for
// the duration of one transaction.
func (s *subjectTodos) inTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	claims, err := claimsJSON(s.subject)
	if err != nil {
		return fmt.Errorf("failed to encode claims: %w", err)
	}

	tx, ctx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, claims); err != nil {
		return fmt.Errorf("failed to set claims: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SET LOCAL ROLE authenticated`); err != nil {
		return fmt.Errorf("failed to assume role: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *subjectTodos) List(ctx context.Context) ([]todo.Todo, error) {
	query := `
		SELECT id, task, is_complete, user_id
		FROM todos
		ORDER BY id ASC
	`

	var todos []todo.Todo
	err := s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t todo.Todo
			if err := rows.Scan(&t.ID, &t.Task, &t.IsComplete, &t.UserID); err != nil {
				return err
			}
			todos = append(todos, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", mapError(err))
	}

	return todos, nil
}

func (s *subjectTodos) Create(ctx context.Context, params todo.CreateParams) (*todo.Todo, error) {
	if err := params.Normalize(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO todos (task, user_id)
		VALUES ($1, $2)
		RETURNING id, task, is_complete, user_id
	`

	var t todo.Todo
	err := s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.QueryRowContext(ctx, query, params.Task, params.UserID).
			Scan(&t.ID, &t.Task, &t.IsComplete, &t.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", mapError(err))
	}

	return &t, nil
}

func (s *subjectTodos) SetComplete(ctx context.Context, id int64, complete bool) (*todo.Todo, error) {
	query := `
		UPDATE todos
		SET is_complete = $2
		WHERE id = $1
		RETURNING id, task, is_complete, user_id
	`

	var t todo.Todo
	err := s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.QueryRowContext(ctx, query, id, complete).
			Scan(&t.ID, &t.Task, &t.IsComplete, &t.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update todo %d: %w", id, mapError(err))
	}

	return &t, nil
}

func (s *subjectTodos) Delete(ctx context.Context, id int64) (*todo.Todo, error) {
	query := `
		DELETE FROM todos
		WHERE id = $1
		RETURNING id, task, is_complete, user_id
	`

	var t todo.Todo
	err := s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.QueryRowContext(ctx, query, id).
			Scan(&t.ID, &t.Task, &t.IsComplete, &t.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete todo %d: %w", id, mapError(err))
	}

	return &t, nil
}

// mapError translates driver errors into domain errors. Rows hidden by a
// policy surface as sql.ErrNoRows, the same as rows that do not exist.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return todo.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgInsufficientPrivilege:
			return fmt.Errorf("%w: %s", todo.ErrPolicyViolation, pqErr.Message)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", todo.ErrTaskRequired, pqErr.Message)
		}
	}
	return err
}
