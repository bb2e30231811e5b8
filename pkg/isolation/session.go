package isolation

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Session is a tenant-scoped database handle. The underlying connection
// has already been pointed at the tenant's data (schema selected, RLS
// variable set, or a per-tenant pool) when the session is handed out.
//
// Close must be called when done: it undoes any connection-level scoping
// before the connection returns to the pool, so the next borrower cannot
// inherit this tenant's state.
type Session struct {
	conn        Conn
	tenantID    string
	tablePrefix string
	resetSQL    []string

	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func newSession(conn Conn, tenantID string, resetSQL ...string) *Session {
	return &Session{conn: conn, tenantID: tenantID, resetSQL: resetSQL}
}

// TenantID returns the tenant this session is scoped to.
func (s *Session) TenantID() string { return s.tenantID }

// TablePrefix returns the per-tenant table prefix, or "" when the strategy
// does not use prefixed tables.
func (s *Session) TablePrefix() string { return s.tablePrefix }

func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.isClosed() {
		return pgconn.CommandTag{}, ErrSessionClosed
	}
	return s.conn.Exec(ctx, sql, args...)
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.conn.Query(ctx, sql, args...)
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.isClosed() {
		return closedRow{}
	}
	return s.conn.QueryRow(ctx, sql, args...)
}

// Close runs the session's reset statements and returns the connection
// to its pool. Idempotent: only the first call does work. When a reset
// statement fails the connection still carries this tenant's scoping, so
// it is destroyed rather than released and the error reports
// ErrDataLeakage.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		var errs []error
		for _, stmt := range s.resetSQL {
			if _, execErr := s.conn.Exec(ctx, stmt); execErr != nil {
				// A connection whose scoping was not undone could serve
				// the next borrower another tenant's data.
				errs = append(errs, ErrDataLeakage, execErr)
			}
		}
		if len(errs) > 0 {
			s.conn.Destroy()
		} else {
			s.conn.Release()
		}
		err = errors.Join(errs...)
	})
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// closedRow satisfies pgx.Row for use after Close.
type closedRow struct{}

func (closedRow) Scan(dest ...any) error { return ErrSessionClosed }
