// Package memory provides an in-process implementation of the store
// interfaces for single-node runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/google/uuid"
)

// LotStore keeps lots in a mutex-guarded map. ConditionalUpdate holds the
// write lock for the whole compare-and-set.
type LotStore struct {
	mu   sync.RWMutex
	lots map[uuid.UUID]model.Lot
	now  func() time.Time
}

var _ store.LotRepository = (*LotStore)(nil)

func NewLotStore() *LotStore {
	return &LotStore{
		lots: make(map[uuid.UUID]model.Lot),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *LotStore) Insert(_ context.Context, lot *model.Lot) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	if _, exists := s.lots[lot.ID]; exists {
		return uuid.Nil, fmt.Errorf("insert lot %s: duplicate id", lot.ID)
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = s.now()
	}
	lot.UpdatedAt = lot.CreatedAt
	s.lots[lot.ID] = *lot
	return lot.ID, nil
}

func (s *LotStore) Get(_ context.Context, id uuid.UUID) (*model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

func (s *LotStore) ListByStatus(_ context.Context, status model.LotStatus) ([]model.Lot, error) {
	out := s.filter(func(l model.Lot) bool { return l.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *LotStore) ListVisible(_ context.Context) ([]model.Lot, error) {
	out := s.filter(func(l model.Lot) bool { return l.IsVisible() })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *LotStore) ConditionalUpdate(_ context.Context, id uuid.UUID, expected, next model.LotStatus, extra store.LotUpdate) (bool, error) {
	if !model.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, expected, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[id]
	if !ok || lot.Status != expected {
		return false, nil
	}
	lot.Status = next
	if extra.ReservedTo != nil {
		lot.ReservedTo = *extra.ReservedTo
	}
	lot.UpdatedAt = s.now()
	s.lots[id] = lot
	return true, nil
}

func (s *LotStore) filter(keep func(model.Lot) bool) []model.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Lot, 0, len(s.lots))
	for _, l := range s.lots {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// CheckStore keeps payment check history in memory.
type CheckStore struct {
	mu      sync.Mutex
	records []store.CheckRecord
}

var _ store.CheckRepository = (*CheckStore)(nil)

func NewCheckStore() *CheckStore {
	return &CheckStore{}
}

func (s *CheckStore) SaveChecks(_ context.Context, records []store.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// ListByLot returns the most recent checks for a lot, newest first.
func (s *CheckStore) ListByLot(_ context.Context, lotID uuid.UUID, limit int) ([]store.CheckRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.CheckRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].LotID != lotID {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	return out, nil
}
