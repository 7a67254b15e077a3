package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const transactionColumns = `id, owner_id, kind, amount, category, description, date, created_at`

// TransactionStore handles financial transaction persistence
type TransactionStore struct {
	db *DB
}

// NewTransactionStore creates a new transaction store
func NewTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create stores a new transaction
func (s *TransactionStore) Create(ctx context.Context, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.OwnerID, t.Kind, t.Amount, t.Category, t.Description,
		t.Date.UTC(), t.CreatedAt,
	)
	return unavailable("create transaction", err)
}

// GetByID returns an owner's transaction
func (s *TransactionStore) GetByID(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFoundOr(err, "transaction", id, "get transaction")
	}
	return t, nil
}

// ListByOwner returns an owner's transactions, newest first
func (s *TransactionStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Transaction, error) {
	return s.list(ctx, `WHERE owner_id = ?`, ownerID)
}

// ListSince returns transactions dated at or after since, newest first
func (s *TransactionStore) ListSince(ctx context.Context, ownerID string, since time.Time) ([]*core.Transaction, error) {
	return s.list(ctx, `WHERE owner_id = ? AND date >= ?`, ownerID, since.UTC())
}

func (s *TransactionStore) list(ctx context.Context, where string, args ...interface{}) ([]*core.Transaction, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions `+where+` ORDER BY date DESC, rowid DESC`, args...)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()

	var txs []*core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, unavailable("scan transaction", err)
		}
		txs = append(txs, t)
	}
	return txs, unavailable("list transactions", rows.Err())
}

// Delete removes an owner's transaction
func (s *TransactionStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return unavailable("delete transaction", err)
	}
	return requireAffected(res, "transaction", id, "delete transaction")
}

// DeleteByOwner removes every transaction of an owner
func (s *TransactionStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "transactions", ownerID)
}

func scanTransaction(row scanner) (*core.Transaction, error) {
	t := &core.Transaction{}
	var category, description sql.NullString

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Kind, &t.Amount, &category, &description,
		&t.Date, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Category = category.String
	t.Description = description.String
	t.Date = t.Date.UTC()
	return t, nil
}
