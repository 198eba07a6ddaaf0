package chain

import (
	"context"
	"iter"
	"log/slog"

	"github.com/coss1333/Qr-market/internal/circuitbreaker"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/metrics"
)

// GuardedReader short-circuits reads to an *UnavailableError while the
// chain's circuit breaker is open, so a dead endpoint costs one failed check
// per lot instead of one full timeout per lot.
type GuardedReader struct {
	inner   Reader
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

var _ Reader = (*GuardedReader)(nil)

func Guard(inner Reader, breaker *circuitbreaker.Breaker, logger *slog.Logger) *GuardedReader {
	return &GuardedReader{
		inner:   inner,
		breaker: breaker,
		logger:  logger.With("component", "chain_guard", "chain", inner.Chain().String()),
	}
}

func (g *GuardedReader) Chain() model.Chain {
	return g.inner.Chain()
}

func (g *GuardedReader) NormalizeAddress(address string) string {
	return g.inner.NormalizeAddress(address)
}

func (g *GuardedReader) RecentTransfers(ctx context.Context, q Query) iter.Seq2[TransferEvidence, error] {
	return func(yield func(TransferEvidence, error) bool) {
		if err := g.breaker.Allow(); err != nil {
			metrics.ChainUnavailableTotal.WithLabelValues(g.Chain().String()).Inc()
			yield(TransferEvidence{}, &UnavailableError{Chain: g.Chain(), Err: err})
			return
		}

		for item, err := range g.inner.RecentTransfers(ctx, q) {
			if err != nil {
				if IsUnavailable(err) {
					metrics.ChainUnavailableTotal.WithLabelValues(g.Chain().String()).Inc()
					g.breaker.RecordFailure()
				} else {
					g.breaker.RecordSuccess()
				}
				yield(item, err)
				return
			}
			if !yield(item, nil) {
				break
			}
		}
		g.breaker.RecordSuccess()
	}
}

// BreakerStateGauge returns an OnStateChange hook that logs transitions and
// exports them to metrics.ChainBreakerState.
func BreakerStateGauge(c model.Chain, logger *slog.Logger) func(from, to circuitbreaker.State) {
	gauge := metrics.ChainBreakerState.WithLabelValues(c.String())
	return func(from, to circuitbreaker.State) {
		gauge.Set(float64(to))
		logger.Warn("chain circuit breaker state change", "chain", c, "from", from.String(), "to", to.String())
	}
}
