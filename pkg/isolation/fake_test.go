package isolation_test

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantkit/tenantkit/pkg/isolation"
)

type execRecord struct {
	SQL  string
	Args []any
}

// fakePool records statements and serves canned rows. It satisfies both
// isolation.Pool and, through fakeConn, isolation.Conn.
type fakePool struct {
	mu        sync.Mutex
	execs     []execRecord
	execErr   func(sql string) error
	rowFunc   func(sql string, args []any) fakeRow
	onClose   func()
	acquired  int
	released  int
	destroyed int
	closed    bool
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	p.execs = append(p.execs, execRecord{SQL: sql, Args: args})
	p.mu.Unlock()

	if p.execErr != nil {
		if err := p.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if p.rowFunc != nil {
		return p.rowFunc(sql, args)
	}
	return fakeRow{err: errors.New("no row configured")}
}

func (p *fakePool) Acquire(ctx context.Context) (isolation.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("pool closed")
	}
	p.acquired++
	return &fakeConn{pool: p}, nil
}

func (p *fakePool) Ping(ctx context.Context) error { return nil }

func (p *fakePool) Close() {
	p.mu.Lock()
	p.closed = true
	hook := p.onClose
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (p *fakePool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePool) executed() []execRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]execRecord{}, p.execs...)
}

func (p *fakePool) releasedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *fakePool) destroyedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

type fakeConn struct {
	pool *fakePool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.pool.Exec(ctx, sql, args...)
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.pool.Query(ctx, sql, args...)
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

func (c *fakeConn) Release() {
	c.pool.mu.Lock()
	c.pool.released++
	c.pool.mu.Unlock()
}

func (c *fakeConn) Destroy() {
	c.pool.mu.Lock()
	c.pool.destroyed++
	c.pool.mu.Unlock()
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		switch v := d.(type) {
		case *bool:
			*v = r.vals[i].(bool)
		case *int:
			*v = r.vals[i].(int)
		case *string:
			*v = r.vals[i].(string)
		}
	}
	return nil
}
