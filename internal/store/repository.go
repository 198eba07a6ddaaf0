//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

package store

import (
	"context"
	"time"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/google/uuid"
)

// LotUpdate carries the fields written together with a guarded transition.
// Nil fields are left unchanged.
type LotUpdate struct {
	ReservedTo *string
}

// LotRepository provides access to lot records.
type LotRepository interface {
	Insert(ctx context.Context, lot *model.Lot) (uuid.UUID, error)
	// Get returns nil, nil when the lot does not exist.
	Get(ctx context.Context, id uuid.UUID) (*model.Lot, error)
	ListByStatus(ctx context.Context, status model.LotStatus) ([]model.Lot, error)
	// ListVisible returns every lot that is not DELETED, newest first.
	ListVisible(ctx context.Context) ([]model.Lot, error)
	// ConditionalUpdate moves the lot from expected to next in one atomic
	// compare-and-set, applying extra and bumping updated_at. It returns
	// false without error when the lot is missing or no longer in expected.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expected, next model.LotStatus, extra LotUpdate) (bool, error)
}

// CheckRecord is the persisted outcome of one lot check within a tick.
type CheckRecord struct {
	RunID     uuid.UUID
	Trigger   string
	LotID     uuid.UUID
	Currency  model.Currency
	Outcome   string
	Reference string
	Applied   bool
	CheckedAt time.Time
}

// CheckRepository stores payment check history.
type CheckRepository interface {
	SaveChecks(ctx context.Context, records []CheckRecord) error
	ListByLot(ctx context.Context, lotID uuid.UUID, limit int) ([]CheckRecord, error)
}

// BlobStore is a content-addressed artifact store.
type BlobStore interface {
	Save(ctx context.Context, data []byte) (string, error)
	// Load returns model.ErrNotFound for unknown handles.
	Load(ctx context.Context, handle string) ([]byte, error)
}
