// Package api serves the public marketplace HTTP API.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/market"
	"github.com/coss1333/Qr-market/internal/reconcile"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxRequestBodyBytes = 8 << 20 // artifacts travel base64-encoded in the body

	// PrincipalHeader carries the authenticated principal set by the
	// upstream auth proxy.
	PrincipalHeader = "X-Principal"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// LotService is the lot lifecycle the API exposes.
type LotService interface {
	Create(ctx context.Context, seller string, in market.CreateLotInput) (*model.Lot, error)
	List(ctx context.Context) ([]model.Lot, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Lot, error)
	Reserve(ctx context.Context, id uuid.UUID, buyer string) (*market.PaymentInstructions, error)
	Withdraw(ctx context.Context, id uuid.UUID, principal string) error
	Artifact(ctx context.Context, id uuid.UUID, principal string) (*market.Artifact, error)
}

// PaymentChecker runs on-demand reconciliation ticks.
type PaymentChecker interface {
	Tick(ctx context.Context, trigger reconcile.Trigger) (*reconcile.RunResult, error)
	LastResult() (*reconcile.RunResult, bool)
}

type Server struct {
	lots    LotService
	checker PaymentChecker
	history store.CheckRepository
	logger  *slog.Logger
}

func NewServer(lots LotService, checker PaymentChecker, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		lots:    lots,
		checker: checker,
		logger:  logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the API server.
type ServerOption func(*Server)

// WithCheckHistory enables GET /api/v1/lots/{id}/checks.
func WithCheckHistory(repo store.CheckRepository) ServerOption {
	return func(s *Server) { s.history = repo }
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/lots", s.handleCreateLot)
	mux.HandleFunc("GET /api/v1/lots", s.handleListLots)
	mux.HandleFunc("GET /api/v1/lots/{id}", s.handleGetLot)
	mux.HandleFunc("POST /api/v1/lots/{id}/reserve", s.handleReserve)
	mux.HandleFunc("DELETE /api/v1/lots/{id}", s.handleWithdraw)
	mux.HandleFunc("GET /api/v1/lots/{id}/artifact", s.handleArtifact)
	mux.HandleFunc("GET /api/v1/lots/{id}/checks", s.handleLotChecks)
	mux.HandleFunc("POST /api/v1/payments/check", s.handleCheckPayments)
	mux.HandleFunc("GET /api/v1/payments/last", s.handleLastCheck)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP status codes. Anything unrecognized
// is logged and reported as a 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidLot):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrNotPaid):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErrorMessage(w, status, "internal server error")
		return
	}
	writeErrorMessage(w, status, err.Error())
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requirePrincipal returns the caller's principal or writes 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	if p == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing "+PrincipalHeader+" header")
		return "", false
	}
	return p, true
}

func requireLotID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid lot id")
		return uuid.Nil, false
	}
	return id, true
}

type lotResponse struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	CurrencyKind   model.Currency  `json:"currency_kind"`
	TokenContract  string          `json:"token_contract,omitempty"`
	ReceiveAddress string          `json:"receive_address"`
	Seller         string          `json:"seller"`
	ReservedTo     string          `json:"reserved_to,omitempty"`
	Status         model.LotStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toLotResponse(l *model.Lot) lotResponse {
	return lotResponse{
		ID:             l.ID,
		Title:          l.Title,
		Price:          l.Price,
		Currency:       l.CurrencyLabel,
		CurrencyKind:   l.Currency,
		TokenContract:  l.TokenContract,
		ReceiveAddress: l.ReceiveAddress,
		Seller:         l.Seller,
		ReservedTo:     l.ReservedTo,
		Status:         l.Status,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

type createLotRequest struct {
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	TokenContract  string          `json:"token_contract"`
	ReceiveAddress string          `json:"receive_address"`
	ArtifactB64    string          `json:"artifact_b64"`
}

func (s *Server) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	seller, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createLotRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	var artifact []byte
	if req.ArtifactB64 != "" {
		var err error
		artifact, err = base64.StdEncoding.DecodeString(req.ArtifactB64)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "artifact_b64 is not valid base64")
			return
		}
	}

	lot, err := s.lots.Create(r.Context(), seller, market.CreateLotInput{
		Title:          req.Title,
		Price:          req.Price,
		CurrencyLabel:  req.Currency,
		TokenContract:  req.TokenContract,
		ReceiveAddress: req.ReceiveAddress,
		Artifact:       artifact,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotResponse(lot))
}

func (s *Server) handleListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := s.lots.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]lotResponse, len(lots))
	for i := range lots {
		resp[i] = toLotResponse(&lots[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLot(w http.ResponseWriter, r *http.Request) {
	id, ok := requireLotID(w, r)
	if !ok {
		return
	}
	lot, err := s.lots.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotResponse(lot))
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	buyer, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := requireLotID(w, r)
	if !ok {
		return
	}
	instr, err := s.lots.Reserve(r.Context(), id, buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instr)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := requireLotID(w, r)
	if !ok {
		return
	}
	if err := s.lots.Withdraw(r.Context(), id, principal); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type artifactResponse struct {
	Handle string `json:"handle"`
	B64    string `json:"b64"`
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := requireLotID(w, r)
	if !ok {
		return
	}
	a, err := s.lots.Artifact(r.Context(), id, principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifactResponse{
		Handle: a.Handle,
		B64:    base64.StdEncoding.EncodeToString(a.Data),
	})
}

type checkRecordResponse struct {
	RunID     uuid.UUID `json:"run_id"`
	Trigger   string    `json:"trigger"`
	Outcome   string    `json:"outcome"`
	Reference string    `json:"reference,omitempty"`
	Applied   bool      `json:"applied"`
	CheckedAt time.Time `json:"checked_at"`
}

func (s *Server) handleLotChecks(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "check history not available")
		return
	}
	id, ok := requireLotID(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	records, err := s.history.ListByLot(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]checkRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = checkRecordResponse{
			RunID:     rec.RunID,
			Trigger:   rec.Trigger,
			Outcome:   rec.Outcome,
			Reference: rec.Reference,
			Applied:   rec.Applied,
			CheckedAt: rec.CheckedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckPayments(w http.ResponseWriter, r *http.Request) {
	result, err := s.checker.Tick(r.Context(), reconcile.TriggerManual)
	if err != nil {
		s.logger.Error("manual payment check failed", "error", err)
		writeErrorMessage(w, http.StatusServiceUnavailable, "payment check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLastCheck(w http.ResponseWriter, r *http.Request) {
	result, ok := s.checker.LastResult()
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "no payment check has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
