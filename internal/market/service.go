// Package market implements the seller and buyer operations on lots:
// listing, reservation, withdrawal and artifact download.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coss1333/Qr-market/internal/artifact"
	"github.com/coss1333/Qr-market/internal/chain/evm"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/metrics"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateLotInput is what a seller submits for a new lot.
type CreateLotInput struct {
	Title          string
	Price          decimal.Decimal
	CurrencyLabel  string
	TokenContract  string
	ReceiveAddress string
	// Artifact is optional; a QR code of the title is generated when empty.
	Artifact []byte
}

// PaymentInstructions tell a buyer how to pay for a reserved lot.
type PaymentInstructions struct {
	LotID         uuid.UUID       `json:"lot_id"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	TokenContract string          `json:"token_contract,omitempty"`
	PayTo         string          `json:"pay_to"`
	Note          string          `json:"note"`
}

// Artifact is a downloaded lot artifact.
type Artifact struct {
	Handle string
	Data   []byte
}

type Service struct {
	lots   store.LotRepository
	blobs  store.BlobStore
	logger *slog.Logger
}

func NewService(lots store.LotRepository, blobs store.BlobStore, logger *slog.Logger) *Service {
	return &Service{
		lots:   lots,
		blobs:  blobs,
		logger: logger.With("component", "market"),
	}
}

// Create resolves the currency variant, normalizes addresses, stores the
// artifact and inserts the lot as AVAILABLE.
func (s *Service) Create(ctx context.Context, seller string, in CreateLotInput) (*model.Lot, error) {
	if strings.TrimSpace(seller) == "" {
		return nil, fmt.Errorf("%w: seller principal is required", model.ErrForbidden)
	}

	currency, err := model.ResolveCurrency(in.CurrencyLabel, in.TokenContract)
	if err != nil {
		return nil, err
	}

	receive, contract, err := normalizeAddresses(currency, in.ReceiveAddress, in.TokenContract)
	if err != nil {
		return nil, err
	}

	lot := &model.Lot{
		Title:          strings.TrimSpace(in.Title),
		Price:          in.Price,
		Currency:       currency,
		CurrencyLabel:  strings.ToUpper(strings.TrimSpace(in.CurrencyLabel)),
		TokenContract:  contract,
		ReceiveAddress: receive,
		Seller:         seller,
		Status:         model.LotStatusAvailable,
	}
	if err := lot.Validate(); err != nil {
		return nil, err
	}

	data := in.Artifact
	if len(data) == 0 {
		data, err = artifact.Generate(lot.Title)
		if err != nil {
			return nil, fmt.Errorf("generate artifact: %w", err)
		}
	}
	lot.ArtifactHandle, err = s.blobs.Save(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	if _, err := s.lots.Insert(ctx, lot); err != nil {
		return nil, err
	}

	s.logger.Info("lot created",
		"lot_id", lot.ID,
		"seller", seller,
		"currency", lot.Currency,
		"price", lot.Price.String(),
	)
	return lot, nil
}

// List returns every lot that is not DELETED, newest first.
func (s *Service) List(ctx context.Context) ([]model.Lot, error) {
	return s.lots.ListVisible(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	lot, err := s.lots.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("%w: lot %s", model.ErrNotFound, id)
	}
	return lot, nil
}

// Reserve moves an AVAILABLE lot to AWAITING_PAYMENT for buyer. A lost race
// fails with model.ErrConflict and is never retried.
func (s *Service) Reserve(ctx context.Context, id uuid.UUID, buyer string) (*PaymentInstructions, error) {
	if strings.TrimSpace(buyer) == "" {
		return nil, fmt.Errorf("%w: buyer principal is required", model.ErrForbidden)
	}

	lot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot.Seller == buyer {
		return nil, fmt.Errorf("%w: seller cannot reserve own lot", model.ErrForbidden)
	}

	ok, err := s.transition(ctx, lot, model.LotStatusAwaitingPayment, store.LotUpdate{ReservedTo: &buyer}, "reserve")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: lot %s is no longer available", model.ErrConflict, id)
	}

	s.logger.Info("lot reserved", "lot_id", id, "buyer", buyer)
	return &PaymentInstructions{
		LotID:         lot.ID,
		Price:         lot.Price,
		Currency:      lot.CurrencyLabel,
		TokenContract: lot.TokenContract,
		PayTo:         lot.ReceiveAddress,
		Note:          fmt.Sprintf("Send exact amount. Optional memo: buy:%s", lot.ID),
	}, nil
}

// Withdraw soft-deletes an AVAILABLE lot on behalf of its seller.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, principal string) error {
	lot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if lot.Seller != principal {
		return fmt.Errorf("%w: only the seller can withdraw lot %s", model.ErrForbidden, id)
	}

	ok, err := s.transition(ctx, lot, model.LotStatusDeleted, store.LotUpdate{}, "withdraw")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: lot %s is not available", model.ErrConflict, id)
	}

	s.logger.Info("lot withdrawn", "lot_id", id, "seller", principal)
	return nil
}

// Artifact returns the stored artifact of a PAID lot to its seller or buyer.
func (s *Service) Artifact(ctx context.Context, id uuid.UUID, principal string) (*Artifact, error) {
	lot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot.Status != model.LotStatusPaid {
		return nil, fmt.Errorf("%w: lot %s is %s", model.ErrNotPaid, id, lot.Status)
	}
	if principal != lot.Seller && principal != lot.ReservedTo {
		return nil, fmt.Errorf("%w: artifact of lot %s", model.ErrForbidden, id)
	}

	data, err := s.blobs.Load(ctx, lot.ArtifactHandle)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	return &Artifact{Handle: lot.ArtifactHandle, Data: data}, nil
}

// transition applies a guarded update starting from AVAILABLE. A lot that
// is already past AVAILABLE is reported as a conflict without touching the store.
func (s *Service) transition(ctx context.Context, lot *model.Lot, next model.LotStatus, extra store.LotUpdate, op string) (bool, error) {
	if lot.Status != model.LotStatusAvailable {
		metrics.LotConflictsTotal.WithLabelValues(op).Inc()
		return false, nil
	}
	ok, err := s.lots.ConditionalUpdate(ctx, lot.ID, model.LotStatusAvailable, next, extra)
	if err != nil {
		return false, err
	}
	if !ok {
		metrics.LotConflictsTotal.WithLabelValues(op).Inc()
		return false, nil
	}
	metrics.LotTransitionsTotal.WithLabelValues(string(model.LotStatusAvailable), string(next)).Inc()
	return true, nil
}

// normalizeAddresses validates BSC addresses and returns them in checksum
// form. Other chains keep the trimmed input.
func normalizeAddresses(currency model.Currency, receive, contract string) (string, string, error) {
	receive = strings.TrimSpace(receive)
	contract = strings.TrimSpace(contract)

	if c, ok := currency.Chain(); !ok || c != model.ChainBSC {
		return receive, contract, nil
	}

	checksummed, ok := evm.ChecksumAddress(receive)
	if !ok {
		return "", "", fmt.Errorf("%w: receive address %q is not a BSC address", model.ErrInvalidLot, receive)
	}
	receive = checksummed

	if contract != "" {
		checksummed, ok = evm.ChecksumAddress(contract)
		if !ok {
			return "", "", fmt.Errorf("%w: token contract %q is not a BSC address", model.ErrInvalidLot, contract)
		}
		contract = checksummed
	}
	return receive, contract, nil
}
