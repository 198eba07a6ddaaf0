package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LotStatus string

const (
	LotStatusAvailable       LotStatus = "AVAILABLE"
	LotStatusAwaitingPayment LotStatus = "AWAITING_PAYMENT"
	LotStatusPaid            LotStatus = "PAID"
	LotStatusDeleted         LotStatus = "DELETED"
)

func (s LotStatus) String() string {
	return string(s)
}

// lotTransitions lists every edge of the lot state machine.
var lotTransitions = map[LotStatus][]LotStatus{
	LotStatusAvailable:       {LotStatusAwaitingPayment, LotStatusDeleted},
	LotStatusAwaitingPayment: {LotStatusPaid},
}

// CanTransition reports whether from -> to is an edge of the lot state machine.
func CanTransition(from, to LotStatus) bool {
	for _, next := range lotTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Lot is a scannable-code listing offered for sale.
type Lot struct {
	ID             uuid.UUID
	Title          string
	Price          decimal.Decimal
	Currency       Currency
	CurrencyLabel  string
	TokenContract  string
	ReceiveAddress string
	ArtifactHandle string
	Seller         string
	ReservedTo     string
	Status         LotStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the structural invariants of a lot.
func (l *Lot) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidLot)
	}
	if !l.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidLot)
	}
	if _, err := ParseCurrency(string(l.Currency)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLot, err)
	}
	if l.Currency.IsToken() != (l.TokenContract != "") {
		return fmt.Errorf("%w: token contract must be set iff currency %s is a token", ErrInvalidLot, l.Currency)
	}
	if strings.TrimSpace(l.ReceiveAddress) == "" {
		return fmt.Errorf("%w: receive address is required", ErrInvalidLot)
	}
	if strings.TrimSpace(l.Seller) == "" {
		return fmt.Errorf("%w: seller is required", ErrInvalidLot)
	}
	reserved := l.Status == LotStatusAwaitingPayment || l.Status == LotStatusPaid
	if reserved != (l.ReservedTo != "") {
		return fmt.Errorf("%w: reserved_to must be set iff status is past AVAILABLE", ErrInvalidLot)
	}
	return nil
}

// IsVisible reports whether the lot shows up in listings.
func (l *Lot) IsVisible() bool {
	return l.Status != LotStatusDeleted
}
