package infrastructure

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriverState controls what every connection of the stub driver
// returns: a connection error, or the configured result set.
type stubDriverState struct {
	mu      sync.Mutex
	failing bool
	columns []string
	rows    [][]driver.Value
}

func (s *stubDriverState) set(failing bool, columns []string, rows [][]driver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
	s.columns = columns
	s.rows = rows
}

func (s *stubDriverState) snapshot() (bool, []string, [][]driver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing, s.columns, s.rows
}

type stubDriver struct {
	state *stubDriverState
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return &stubConn{state: d.state}, nil
}

type stubConn struct {
	state *stubDriverState
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *stubConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	failing, columns, rows := c.state.snapshot()
	if failing {
		return nil, errors.New("connection refused")
	}
	return &stubRows{columns: columns, rows: rows}, nil
}

type stubRows struct {
	columns []string
	rows    [][]driver.Value
	next    int
}

func (r *stubRows) Columns() []string { return r.columns }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

var catalogStub = &stubDriverState{}

func init() {
	sql.Register("catalogstub", &stubDriver{state: catalogStub})
}

func openStubDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("catalogstub", "stub")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var productColumns = []string{
	"id", "name", "description", "price_amount", "price_currency",
	"category_id", "available", "size", "ingredients", "calories",
}

func productRow(id models.ID, name string) []driver.Value {
	return []driver.Value{
		id.String(), name, "", int64(4500), "MXN",
		models.GenerateUUID().String(), true, nil, nil, nil,
	}
}

func TestPostgresProductRepository_MissingRowLeavesBreakerClosed(t *testing.T) {
	ctx := context.Background()
	catalogStub.set(false, productColumns, nil)

	breaker := circuitbreaker.New("catalog-db-test", 3, 30*time.Second)
	repo := NewPostgresProductRepository(openStubDB(t), breaker, nil)

	// Lookups of unknown products are answers, not database failures:
	// they must never accumulate toward the breaker threshold.
	for i := 0; i < 5; i++ {
		_, err := repo.FindByID(ctx, models.GenerateUUID())
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
	assert.Equal(t, 0, breaker.Stats().FailureCount)
}

func TestPostgresProductRepository_OpenCircuitServesSnapshotAndFailsWrites(t *testing.T) {
	ctx := context.Background()
	catalogStub.set(true, nil, nil)

	breaker := circuitbreaker.New("catalog-db-test", 1, 30*time.Second)
	coffee := seedProduct(t, "Americano")
	repo := NewPostgresProductRepository(openStubDB(t), breaker, []*domain.Product{coffee})

	// The first failure trips the breaker and surfaces the error.
	_, err := repo.FindAll(ctx)
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	// Reads keep working from the last-known snapshot.
	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Americano", products[0].Name)

	found, err := repo.FindByID(ctx, coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, coffee.ID, found.ID)

	_, err = repo.FindByID(ctx, models.GenerateUUID())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// Writes are rejected without touching the database.
	err = repo.Save(ctx, seedProduct(t, "Frappe"))
	var openErr *circuitbreaker.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
}

func TestPostgresProductRepository_SuccessfulReadsRefreshSnapshot(t *testing.T) {
	ctx := context.Background()
	id := models.GenerateUUID()
	catalogStub.set(false, productColumns, [][]driver.Value{productRow(id, "Americano")})

	breaker := circuitbreaker.New("catalog-db-test", 1, 30*time.Second)
	repo := NewPostgresProductRepository(openStubDB(t), breaker, nil)

	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	// Once the database goes down and the breaker opens, reads serve
	// what the last successful query returned.
	catalogStub.set(true, nil, nil)
	_, err = repo.FindAll(ctx)
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	cached, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, id, cached[0].ID)
	assert.Equal(t, "Americano", cached[0].Name)
}
