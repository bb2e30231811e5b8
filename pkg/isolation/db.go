package isolation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query surface shared by pools and acquired connections.
// The signatures match pgx, so pgx types satisfy it directly.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a single connection checked out of a pool.
type Conn interface {
	DB
	// Release returns the connection to its pool for reuse.
	Release()
	// Destroy closes the underlying connection so the pool discards it
	// instead of handing it to the next borrower.
	Destroy()
}

// Pool is a connection pool. Providers depend on this interface rather
// than *pgxpool.Pool so tests can substitute fakes.
type Pool interface {
	DB
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// PoolFactory opens a pool for a database URL. The database provider uses
// it to create per-tenant pools on demand.
type PoolFactory func(ctx context.Context, url string) (Pool, error)

// pgxPool adapts *pgxpool.Pool to Pool. Only Acquire needs adapting:
// *pgxpool.Conn already satisfies Conn, but Go interfaces are not
// covariant over return types.
type pgxPool struct {
	*pgxpool.Pool
}

// WrapPool adapts a pgx pool to the Pool interface.
func WrapPool(p *pgxpool.Pool) Pool {
	return pgxPool{p}
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxConn{conn}, nil
}

// pgxConn adds the destroy path: pgxpool discards a released connection
// whose underlying *pgx.Conn has been closed.
type pgxConn struct {
	*pgxpool.Conn
}

func (c pgxConn) Destroy() {
	_ = c.Conn.Conn().Close(context.Background())
	c.Conn.Release()
}

// NewPgxPool is the default PoolFactory, backed by pgxpool.
func NewPgxPool(ctx context.Context, url string) (Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	return WrapPool(pool), nil
}
