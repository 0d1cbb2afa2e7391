package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
)

// recorder is a database/sql driver that logs every statement it is handed,
// including transaction boundaries, and answers queries with canned rows.
type recorder struct {
	mu    sync.Mutex
	stmts []string
	args  [][]any

	// rows answers the first query; later queries get no rows.
	rows [][]driver.Value
	// failOn makes the first statement containing it return failErr.
	failOn  string
	failErr error
}

func newRecorderDB(rec *recorder) *DB {
	return &DB{sql.OpenDB(recorderConnector{rec: rec})}
}

func (r *recorder) record(stmt string, args []driver.NamedValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stmt = strings.Join(strings.Fields(stmt), " ")
	r.stmts = append(r.stmts, stmt)
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	r.args = append(r.args, values)

	if r.failOn != "" && strings.Contains(stmt, r.failOn) {
		r.failOn = ""
		return r.failErr
	}
	return nil
}

func (r *recorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmts...)
}

func (r *recorder) argsFor(prefix string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.stmts {
		if strings.HasPrefix(s, prefix) {
			return r.args[i]
		}
	}
	return nil
}

type recorderConnector struct{ rec *recorder }

func (c recorderConnector) Connect(context.Context) (driver.Conn, error) {
	return &recorderConn{rec: c.rec}, nil
}

func (c recorderConnector) Driver() driver.Driver { return recorderDriver{} }

type recorderDriver struct{}

func (recorderDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("recorder: use sql.OpenDB")
}

type recorderConn struct{ rec *recorder }

func (c *recorderConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("recorder: prepared statements not supported")
}

func (c *recorderConn) Close() error { return nil }

func (c *recorderConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *recorderConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if err := c.rec.record("BEGIN", nil); err != nil {
		return nil, err
	}
	return recorderTx{rec: c.rec}, nil
}

func (c *recorderConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.rec.record(query, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), nil
}

func (c *recorderConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.rec.record(query, args); err != nil {
		return nil, err
	}
	c.rec.mu.Lock()
	rows := c.rec.rows
	c.rec.rows = nil
	c.rec.mu.Unlock()
	return &recorderRows{rows: rows}, nil
}

type recorderTx struct{ rec *recorder }

func (t recorderTx) Commit() error   { return t.rec.record("COMMIT", nil) }
func (t recorderTx) Rollback() error { return t.rec.record("ROLLBACK", nil) }

type recorderRows struct {
	rows [][]driver.Value
}

func (r *recorderRows) Columns() []string {
	return []string{"id", "task", "is_complete", "user_id"}
}

func (r *recorderRows) Close() error { return nil }

func (r *recorderRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}
