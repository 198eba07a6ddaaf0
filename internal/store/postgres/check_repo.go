package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/coss1333/Qr-market/internal/store"
	"github.com/google/uuid"
)

const checkColumns = 8

// CheckRepo implements store.CheckRepository.
type CheckRepo struct {
	db *DB
}

var _ store.CheckRepository = (*CheckRepo)(nil)

func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

// SaveChecks persists one tick's outcomes in a single transaction.
func (r *CheckRepo) SaveChecks(ctx context.Context, records []store.CheckRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const batchSize = 500
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		query, args := buildCheckInsert(records[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert payment checks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment checks: %w", err)
	}
	return nil
}

func buildCheckInsert(records []store.CheckRecord) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO payment_checks
		(run_id, trigger, lot_id, currency, outcome, reference, applied, checked_at)
		VALUES `)

	args := make([]any, 0, len(records)*checkColumns)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for c := 1; c <= checkColumns; c++ {
			if c > 1 {
				sb.WriteString(",")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*checkColumns + c))
		}
		sb.WriteString(")")
		args = append(args,
			rec.RunID, rec.Trigger, rec.LotID, rec.Currency, rec.Outcome, rec.Reference, rec.Applied, rec.CheckedAt)
	}
	return sb.String(), args
}

func (r *CheckRepo) ListByLot(ctx context.Context, lotID uuid.UUID, limit int) ([]store.CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, trigger, lot_id, currency, outcome, reference, applied, checked_at
		FROM payment_checks
		WHERE lot_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2
	`, lotID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment checks: %w", err)
	}
	defer rows.Close()

	var out []store.CheckRecord
	for rows.Next() {
		var rec store.CheckRecord
		if err := rows.Scan(&rec.RunID, &rec.Trigger, &rec.LotID, &rec.Currency, &rec.Outcome,
			&rec.Reference, &rec.Applied, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan payment check: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
