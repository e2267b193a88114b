package prompts_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
)

// scriptConnector is a database/sql connector whose connections answer
// statements from a list of substring rules and record every statement
// they receive, including transaction boundaries.
type scriptConnector struct {
	mu    sync.Mutex
	log   []string
	rules []rule
}

type rule struct {
	match   string
	columns []string
	rows    [][]driver.Value
	err     error
}

func (c *scriptConnector) Connect(context.Context) (driver.Conn, error) {
	return &scriptConn{c: c}, nil
}

func (c *scriptConnector) Driver() driver.Driver { return scriptDriver{} }

func (c *scriptConnector) record(stmt string) rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, strings.Join(strings.Fields(stmt), " "))
	for _, r := range c.rules {
		if strings.Contains(stmt, r.match) {
			return r
		}
	}
	return rule{}
}

func (c *scriptConnector) statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.log)
}

type scriptDriver struct{}

func (scriptDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through the connector")
}

type scriptConn struct {
	c *scriptConnector
}

func (s *scriptConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements are not scripted")
}

func (s *scriptConn) Close() error { return nil }

func (s *scriptConn) Begin() (driver.Tx, error) {
	s.c.record("BEGIN")
	return scriptTx{c: s.c}, nil
}

func (s *scriptConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (s *scriptConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	r := s.c.record(query)
	if r.err != nil {
		return nil, r.err
	}
	return driver.RowsAffected(1), nil
}

func (s *scriptConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	r := s.c.record(query)
	if r.err != nil {
		return nil, r.err
	}
	return &scriptRows{columns: r.columns, rows: r.rows}, nil
}

type scriptTx struct {
	c *scriptConnector
}

func (t scriptTx) Commit() error {
	t.c.record("COMMIT")
	return nil
}

func (t scriptTx) Rollback() error {
	t.c.record("ROLLBACK")
	return nil
}

type scriptRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *scriptRows) Columns() []string { return r.columns }

func (r *scriptRows) Close() error { return nil }

func (r *scriptRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}

var (
	storeOwner  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	storePrompt = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	storeModule = uuid.MustParse("cccccccc-0000-0000-0000-000000000003")
)

var promptColumns = []string{
	"id", "owner_id", "workspace_id", "parent_id", "title", "description",
	"content", "prompt_type", "visibility", "tags", "starred", "usage_count",
	"model_settings", "required_variables", "version", "created_at", "updated_at",
}

func promptRow(content string) []driver.Value {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []driver.Value{
		storePrompt.String(), storeOwner.String(), nil, nil, "Support reply", nil,
		content, "standard", "private", []byte(`[]`), false, int64(0),
		nil, []byte(`[]`), int64(1), now, now,
	}
}

func newStore(t *testing.T, rules ...rule) (prompts.System, *scriptConnector) {
	t.Helper()
	conn := &scriptConnector{rules: rules}
	db := sql.OpenDB(conn)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return prompts.New(db, logger, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}), conn
}

// position returns the index of the first statement containing fragment.
func position(t *testing.T, stmts []string, fragment string) int {
	t.Helper()
	i := slices.IndexFunc(stmts, func(s string) bool { return strings.Contains(s, fragment) })
	if i < 0 {
		t.Fatalf("no statement contains %q in %q", fragment, stmts)
	}
	return i
}

func linkRules(content string) []rule {
	return []rule{
		{match: "INSERT INTO prompts", columns: promptColumns, rows: [][]driver.Value{promptRow(content)}},
		{match: "UPDATE prompts", columns: promptColumns, rows: [][]driver.Value{promptRow(content)}},
		{
			match:   "SELECT id, name FROM modules",
			columns: []string{"id", "name"},
			rows:    [][]driver.Value{{storeModule.String(), "greeting"}},
		},
	}
}

func TestWritesHoldLibraryLock(t *testing.T) {
	content := "{{greeting}} Thanks for contacting {{company}}."

	tests := []struct {
		name  string
		write func(prompts.System) error
		reads string
	}{
		{
			name: "create",
			write: func(sys prompts.System) error {
				_, err := sys.Create(context.Background(), storeOwner, prompts.CreateCommand{Title: "Support reply", Content: content})
				return err
			},
			reads: "SELECT id, name FROM modules",
		},
		{
			name: "update",
			write: func(sys prompts.System) error {
				_, err := sys.Update(context.Background(), storeOwner, storePrompt, prompts.UpdateCommand{Title: "Support reply", Content: content})
				return err
			},
			reads: "SELECT id, name FROM modules",
		},
		{
			name: "fork",
			write: func(sys prompts.System) error {
				_, err := sys.Fork(context.Background(), storeOwner, storePrompt)
				return err
			},
			reads: "SELECT $1, module_id, position FROM prompt_modules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, conn := newStore(t, linkRules(content)...)

			if err := tt.write(sys); err != nil {
				t.Fatalf("write: %v", err)
			}

			stmts := conn.statements()
			begin := position(t, stmts, "BEGIN")
			lock := position(t, stmts, "pg_advisory_xact_lock")
			if lock != begin+1 {
				t.Errorf("lock at %d, want first statement after BEGIN at %d: %q", lock, begin+1, stmts)
			}
			if reads := position(t, stmts, tt.reads); reads < lock {
				t.Errorf("module links read at %d before lock at %d", reads, lock)
			}
			if stmts[len(stmts)-1] != "COMMIT" {
				t.Errorf("last statement = %q, want COMMIT", stmts[len(stmts)-1])
			}
		})
	}
}

func TestCreateLinksNamedModules(t *testing.T) {
	sys, conn := newStore(t, linkRules("{{greeting}}")...)

	if _, err := sys.Create(context.Background(), storeOwner, prompts.CreateCommand{Title: "Hello", Content: "{{greeting}}"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stmts := conn.statements()
	cleared := position(t, stmts, "DELETE FROM prompt_modules")
	link := position(t, stmts, "INSERT INTO prompt_modules")
	if link < cleared {
		t.Errorf("link inserted at %d before clearing at %d", link, cleared)
	}
}

func TestCreateRemovedModuleConflicts(t *testing.T) {
	rules := append([]rule{{
		match: "INSERT INTO prompt_modules",
		err:   &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"},
	}}, linkRules("{{greeting}}")...)
	sys, conn := newStore(t, rules...)

	_, err := sys.Create(context.Background(), storeOwner, prompts.CreateCommand{Title: "Hello", Content: "{{greeting}}"})
	if !errors.Is(err, prompts.ErrLinkConflict) {
		t.Fatalf("Create() error = %v, want ErrLinkConflict", err)
	}
	if got := prompts.MapHTTPStatus(err); got != http.StatusConflict {
		t.Errorf("MapHTTPStatus = %d, want 409", got)
	}

	stmts := conn.statements()
	if stmts[len(stmts)-1] != "ROLLBACK" {
		t.Errorf("last statement = %q, want ROLLBACK", stmts[len(stmts)-1])
	}
}

func TestStarSkipsLibraryLock(t *testing.T) {
	sys, conn := newStore(t, linkRules("x")...)

	if _, err := sys.Star(context.Background(), storeOwner, storePrompt); err != nil {
		t.Fatalf("Star: %v", err)
	}

	for _, stmt := range conn.statements() {
		if strings.Contains(stmt, "pg_advisory_xact_lock") {
			t.Errorf("Star took the library lock: %q", stmt)
		}
	}
}
