package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/civistrom/civid/internal/common"
	"github.com/civistrom/civid/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, a *Account) error {
	query := `INSERT INTO accounts (id, encrypted_seed, iv, added_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.EncryptedSeed, a.IV, a.AddedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrDuplicateAccount
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]Account, error) {
	query := `SELECT id, encrypted_seed, iv, added_at FROM accounts ORDER BY added_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}
	defer rows.Close()

	var result []Account
	for rows.Next() {
		var (
			item    Account
			addedAt string
		)
		if err := rows.Scan(&item.ID, &item.EncryptedSeed, &item.IV, &addedAt); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, addedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse added_at for %s: %w", item.ID, err)
		}
		item.AddedAt = ts
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("failed to clear accounts: %w", err)
	}
	return nil
}
