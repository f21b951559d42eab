package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Item struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

type Repository interface {
	Get(ctx context.Context, productID string) (Item, error)
	SetAvailable(ctx context.Context, productID string, available int) error
	// DecrementIfAvailable atomically decrements stock by qty only if the
	// current stock covers it. It reports whether the decrement happened and
	// the availability observed when it did not.
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, int, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Item, error) {
	var item Item
	row := r.pool.QueryRow(ctx, `SELECT product_id, available FROM inventory_stock WHERE product_id=$1`, productID)
	if err := row.Scan(&item.ProductID, &item.Available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *PostgresRepository) SetAvailable(ctx context.Context, productID string, available int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_stock(product_id, available)
		VALUES($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET available=EXCLUDED.available, updated_at=now()
	`, productID, available)
	return err
}

func (r *PostgresRepository) DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, int, error) {
	if qty < 1 {
		return false, 0, fmt.Errorf("quantity must be positive, got %d", qty)
	}

	// Single conditional update: a read-then-write here would let two
	// concurrent shipments for the same product interleave and drive the
	// stock negative.
	tag, err := r.pool.Exec(ctx, `
		UPDATE inventory_stock
		SET available = available - $2, updated_at=now()
		WHERE product_id=$1 AND available >= $2
	`, productID, qty)
	if err != nil {
		return false, 0, fmt.Errorf("decrement %s: %w", productID, err)
	}
	if tag.RowsAffected() > 0 {
		return true, 0, nil
	}

	// The decrement was refused; report what was available at that point.
	var available int
	err = r.pool.QueryRow(ctx, `SELECT available FROM inventory_stock WHERE product_id=$1`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("read availability for %s: %w", productID, err)
	}
	return false, available, nil
}
