package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/google/uuid"
)

const lotColumns = `id, title, price, currency, currency_label, token_contract, receive_address,
	artifact_handle, seller, reserved_to, status, created_at, updated_at`

// LotRepo implements store.LotRepository.
type LotRepo struct {
	db *DB
}

var _ store.LotRepository = (*LotRepo)(nil)

func NewLotRepo(db *DB) *LotRepo {
	return &LotRepo{db: db}
}

func (r *LotRepo) Insert(ctx context.Context, lot *model.Lot) (uuid.UUID, error) {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	now := time.Now().UTC()
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = now
	}
	lot.UpdatedAt = lot.CreatedAt

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lots (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
	`,
		lot.ID, lot.Title, lot.Price, lot.Currency, lot.CurrencyLabel, lot.TokenContract, lot.ReceiveAddress,
		lot.ArtifactHandle, lot.Seller, lot.ReservedTo, lot.Status, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert lot: %w", err)
	}
	return lot.ID, nil
}

func (r *LotRepo) Get(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id)
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lot %s: %w", id, err)
	}
	return lot, nil
}

func (r *LotRepo) ListByStatus(ctx context.Context, status model.LotStatus) ([]model.Lot, error) {
	return r.list(ctx, `SELECT `+lotColumns+` FROM lots WHERE status = $1 ORDER BY created_at, id`, status)
}

func (r *LotRepo) ListVisible(ctx context.Context) ([]model.Lot, error) {
	return r.list(ctx, `SELECT `+lotColumns+` FROM lots WHERE status <> $1 ORDER BY created_at DESC, id`, model.LotStatusDeleted)
}

func (r *LotRepo) ConditionalUpdate(ctx context.Context, id uuid.UUID, expected, next model.LotStatus, extra store.LotUpdate) (bool, error) {
	if !model.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, expected, next)
	}

	var reservedTo sql.NullString
	if extra.ReservedTo != nil {
		reservedTo = sql.NullString{String: *extra.ReservedTo, Valid: true}
	}

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE lots
		SET status = $3,
		    reserved_to = COALESCE($4, reserved_to),
		    updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, expected, next, reservedTo)
	if err != nil {
		return false, fmt.Errorf("update lot %s %s -> %s: %w", id, expected, next, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *LotRepo) list(ctx context.Context, query string, args ...any) ([]model.Lot, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()

	var lots []model.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	return lots, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (*model.Lot, error) {
	var (
		lot           model.Lot
		currency      string
		status        string
		tokenContract sql.NullString
		reservedTo    sql.NullString
	)
	if err := row.Scan(
		&lot.ID, &lot.Title, &lot.Price, &currency, &lot.CurrencyLabel, &tokenContract, &lot.ReceiveAddress,
		&lot.ArtifactHandle, &lot.Seller, &reservedTo, &status, &lot.CreatedAt, &lot.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c, err := model.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}
	lot.Currency = c
	lot.Status = model.LotStatus(status)
	lot.TokenContract = tokenContract.String
	lot.ReservedTo = reservedTo.String
	return &lot, nil
}
