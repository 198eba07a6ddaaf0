// Package reconcile drives AWAITING_PAYMENT lots to PAID by matching recent
// on-chain transfers against each lot's price.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coss1333/Qr-market/internal/alert"
	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/metrics"
	"github.com/coss1333/Qr-market/internal/payment"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/coss1333/Qr-market/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Trigger names what started a tick.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Outcome tags of a single lot check. Failed checks carry "error:<cause>".
const (
	OutcomePaid            = "paid"
	OutcomeNotPaid         = "not_paid"
	OutcomeUnknownCurrency = "unknown_currency"
	outcomeErrorPrefix     = "error:"
)

const (
	DefaultWorkers    = 4
	DefaultLotTimeout = 2 * time.Minute
)

// LotCheck is the result of checking one lot within a tick.
type LotCheck struct {
	LotID     uuid.UUID      `json:"lot_id"`
	Currency  model.Currency `json:"currency"`
	Outcome   string         `json:"outcome"`
	Reference string         `json:"reference,omitempty"`
	// Applied is true only for the check whose guarded update moved the lot
	// to PAID. A paid outcome with Applied false means another tick won.
	Applied   bool      `json:"applied"`
	CheckedAt time.Time `json:"checked_at"`

	chain       model.Chain
	unavailable bool
}

// IsError reports whether the check failed.
func (c LotCheck) IsError() bool {
	return strings.HasPrefix(c.Outcome, outcomeErrorPrefix)
}

// outcomeClass collapses error causes so metric labels stay bounded.
func (c LotCheck) outcomeClass() string {
	if c.IsError() {
		return "error"
	}
	return c.Outcome
}

// RunResult aggregates one tick.
type RunResult struct {
	RunID           uuid.UUID  `json:"run_id"`
	Trigger         Trigger    `json:"trigger"`
	Total           int        `json:"total"`
	Paid            int        `json:"paid"`
	NotPaid         int        `json:"not_paid"`
	UnknownCurrency int        `json:"unknown_currency"`
	Errors          int        `json:"errors"`
	Checks          []LotCheck `json:"checks"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

type Config struct {
	// Workers bounds how many lots are checked concurrently.
	Workers int
	// LotTimeout bounds the whole check of a single lot.
	LotTimeout time.Duration
}

// Engine runs reconciliation ticks. Tick is safe to call concurrently; the
// guarded AWAITING_PAYMENT -> PAID update is the only mutual exclusion.
type Engine struct {
	lots    store.LotRepository
	readers map[model.Currency]chain.Reader
	matcher *payment.Matcher
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer

	checks  store.CheckRepository
	alerter alert.Alerter
	now     func() time.Time

	mu   sync.RWMutex
	last *RunResult
}

// EngineOption configures optional dependencies for the engine.
type EngineOption func(*Engine)

// WithCheckRepository persists every tick's checks.
func WithCheckRepository(repo store.CheckRepository) EngineOption {
	return func(e *Engine) { e.checks = repo }
}

// WithAlerter sends paid-lot and chain-failure alerts.
func WithAlerter(a alert.Alerter) EngineOption {
	return func(e *Engine) { e.alerter = a }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine that checks each lot with the reader
// registered for its currency. Currencies without a reader yield
// unknown_currency on every tick.
func NewEngine(
	lots store.LotRepository,
	readers map[model.Currency]chain.Reader,
	cfg Config,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.LotTimeout <= 0 {
		cfg.LotTimeout = DefaultLotTimeout
	}
	e := &Engine{
		lots:    lots,
		readers: readers,
		matcher: payment.NewMatcher(),
		cfg:     cfg,
		logger:  logger.With("component", "reconcile"),
		tracer:  tracing.Tracer("github.com/coss1333/Qr-market/internal/reconcile"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick checks every AWAITING_PAYMENT lot once. Per-lot failures become
// outcome tags; only a failure to list pending lots fails the tick.
func (e *Engine) Tick(ctx context.Context, trigger Trigger) (*RunResult, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.tick",
		trace.WithAttributes(attribute.String("trigger", string(trigger))))
	defer span.End()

	started := time.Now()
	result := &RunResult{
		RunID:     uuid.New(),
		Trigger:   trigger,
		StartedAt: e.now(),
	}
	metrics.ReconcileTicksTotal.WithLabelValues(string(trigger)).Inc()
	defer func() {
		metrics.ReconcileTickLatency.WithLabelValues(string(trigger)).Observe(time.Since(started).Seconds())
	}()

	pending, err := e.lots.ListByStatus(ctx, model.LotStatusAwaitingPayment)
	if err != nil {
		metrics.ReconcileTickErrors.WithLabelValues(string(trigger)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pending lots")
		e.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeTickFailed,
			Title:   "Reconciliation tick failed",
			Message: err.Error(),
			Fields:  map[string]string{"trigger": string(trigger), "run_id": result.RunID.String()},
		})
		return nil, fmt.Errorf("list pending lots: %w", err)
	}
	metrics.ReconcilePendingLots.Set(float64(len(pending)))

	result.Checks = make([]LotCheck, len(pending))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, lot := range pending {
		g.Go(func() error {
			result.Checks[i] = e.checkLot(ctx, lot)
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range result.Checks {
		result.Total++
		switch {
		case c.Outcome == OutcomePaid:
			result.Paid++
		case c.Outcome == OutcomeNotPaid:
			result.NotPaid++
		case c.Outcome == OutcomeUnknownCurrency:
			result.UnknownCurrency++
		default:
			result.Errors++
		}
		metrics.ReconcileOutcomesTotal.WithLabelValues(string(c.Currency), c.outcomeClass()).Inc()
	}
	result.FinishedAt = e.now()
	span.SetAttributes(
		attribute.Int("lots", result.Total),
		attribute.Int("paid", result.Paid),
		attribute.Int("errors", result.Errors),
	)

	e.persist(ctx, result)
	e.alertOn(ctx, result)

	e.mu.Lock()
	e.last = result
	e.mu.Unlock()

	e.logger.Info("reconciliation tick completed",
		"run_id", result.RunID,
		"trigger", trigger,
		"total", result.Total,
		"paid", result.Paid,
		"not_paid", result.NotPaid,
		"unknown_currency", result.UnknownCurrency,
		"errors", result.Errors,
		"duration", time.Since(started),
	)
	return result, nil
}

// LastResult returns the most recently completed tick.
func (e *Engine) LastResult() (*RunResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.last != nil
}

func (e *Engine) checkLot(ctx context.Context, lot model.Lot) LotCheck {
	check := LotCheck{LotID: lot.ID, Currency: lot.Currency}
	log := e.logger.With("lot_id", lot.ID, "currency", lot.Currency)

	reader, ok := e.readers[lot.Currency]
	if !ok {
		check.Outcome = OutcomeUnknownCurrency
		check.CheckedAt = e.now()
		log.Warn("no chain reader for lot currency", "error", model.ErrUnsupportedCurrency)
		return check
	}
	check.chain = reader.Chain()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.LotTimeout)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "reconcile.check_lot", trace.WithAttributes(
		attribute.String("lot_id", lot.ID.String()),
		attribute.String("currency", string(lot.Currency)),
		attribute.String("chain", reader.Chain().String()),
	))
	defer span.End()

	fail := func(err error) LotCheck {
		check.Outcome = outcomeErrorPrefix + err.Error()
		check.unavailable = chain.IsUnavailable(err)
		check.CheckedAt = e.now()
		span.RecordError(err)
		span.SetStatus(codes.Error, "check failed")
		log.Warn("lot check failed", "unavailable", check.unavailable, "error", err)
		return check
	}

	evidence := reader.RecentTransfers(ctx, chain.Query{
		Address:       lot.ReceiveAddress,
		TokenContract: lot.TokenContract,
	})
	res, err := e.matcher.Match(evidence, lot.ReceiveAddress, lot.Price, reader.NormalizeAddress)
	if err != nil {
		return fail(err)
	}
	if !res.Paid {
		check.Outcome = OutcomeNotPaid
		check.CheckedAt = e.now()
		log.Debug("payment not observed")
		return check
	}

	check.Reference = res.Evidence.Reference
	applied, err := e.lots.ConditionalUpdate(ctx, lot.ID, model.LotStatusAwaitingPayment, model.LotStatusPaid, store.LotUpdate{})
	if err != nil {
		return fail(fmt.Errorf("mark paid: %w", err))
	}
	check.Outcome = OutcomePaid
	check.Applied = applied
	check.CheckedAt = e.now()
	if applied {
		metrics.LotTransitionsTotal.WithLabelValues(string(model.LotStatusAwaitingPayment), string(model.LotStatusPaid)).Inc()
	}
	log.Info("lot paid",
		"reference", check.Reference,
		"amount", res.Evidence.Amount.String(),
		"applied", applied,
	)
	return check
}

func (e *Engine) persist(ctx context.Context, result *RunResult) {
	if e.checks == nil || len(result.Checks) == 0 {
		return
	}
	records := make([]store.CheckRecord, len(result.Checks))
	for i, c := range result.Checks {
		records[i] = store.CheckRecord{
			RunID:     result.RunID,
			Trigger:   string(result.Trigger),
			LotID:     c.LotID,
			Currency:  c.Currency,
			Outcome:   c.Outcome,
			Reference: c.Reference,
			Applied:   c.Applied,
			CheckedAt: c.CheckedAt,
		}
	}
	if err := e.checks.SaveChecks(ctx, records); err != nil {
		e.logger.Warn("failed to save payment checks", "run_id", result.RunID, "error", err)
	}
}

func (e *Engine) alertOn(ctx context.Context, result *RunResult) {
	if e.alerter == nil {
		return
	}

	paid := map[string]string{}
	unavailable := map[model.Chain][]LotCheck{}
	for _, c := range result.Checks {
		if c.Applied {
			paid[c.LotID.String()] = string(c.Currency)
		}
		if c.unavailable {
			unavailable[c.chain] = append(unavailable[c.chain], c)
		}
	}

	if len(paid) > 0 {
		e.sendAlert(ctx, alert.Alert{
			Type:     alert.AlertTypeLotsPaid,
			DedupKey: result.RunID.String(),
			Title:    "Lots paid",
			Message:  fmt.Sprintf("%d lot(s) marked PAID", len(paid)),
			Fields:   paid,
		})
	}

	chains := make([]model.Chain, 0, len(unavailable))
	for c := range unavailable {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	for _, c := range chains {
		failed := unavailable[c]
		e.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeChainUnavailable,
			Chain:   c.String(),
			Title:   "Chain reads failing",
			Message: fmt.Sprintf("%d lot check(s) could not reach the chain", len(failed)),
			Fields: map[string]string{
				"run_id": result.RunID.String(),
				"cause":  strings.TrimPrefix(failed[0].Outcome, outcomeErrorPrefix),
			},
		})
	}
}

func (e *Engine) sendAlert(ctx context.Context, a alert.Alert) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Send(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("alert send failed", "type", a.Type, "error", err)
	}
}
