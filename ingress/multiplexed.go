package ingress

// multiplexed.go adapts the original MultiplexedGatewayWatcher
// (multiplexed_gateway_watcher.rs): periodically cross-checks every
// configured settlement-chain RPC endpoint's reported head block against
// the others, flagging one that has fallen behind the highest reported
// head. Only head block numbers are compared, not block hashes, so a
// gateway on a fork at the same height is not flagged. Request pacing per gateway is enforced with
// golang.org/x/time/rate rather than the original's ad hoc retry/backoff
// durations.

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MaxBlockNumberDifference is the largest head-block gap tolerated between
// gateways before one is considered unhealthy.
const MaxBlockNumberDifference = 1

// Gateway pairs one RPC client with its own rate limiter, since providers
// typically cap requests per key independently.
type Gateway struct {
	Name     string
	Client   *ethclient.Client
	Limiter  *rate.Limiter
	healthy  bool
	lastErr  error
}

// MultiplexedGatewayWatcher periodically checks every configured gateway's
// head block for consistency, demoting any outlier.
type MultiplexedGatewayWatcher struct {
	gateways []*Gateway
	log      *logrus.Entry
}

// NewMultiplexedGatewayWatcher constructs a watcher over gateways. Each
// gateway's Limiter should already be configured to its provider's rate
// cap (e.g. rate.NewLimiter(rate.Every(time.Second/10), 10)).
func NewMultiplexedGatewayWatcher(gateways []*Gateway) *MultiplexedGatewayWatcher {
	for _, g := range gateways {
		g.healthy = true
	}
	return &MultiplexedGatewayWatcher{
		gateways: gateways,
		log:      logrus.WithField("component", "multiplexed_gateway_watcher"),
	}
}

// Healthy returns the names of gateways currently considered healthy: in
// the last check they answered and their head was within
// MaxBlockNumberDifference of the highest head reported.
func (w *MultiplexedGatewayWatcher) Healthy() []string {
	var out []string
	for _, g := range w.gateways {
		if g.healthy {
			out = append(out, g.Name)
		}
	}
	return out
}

// CheckOnce fetches every gateway's current head block (respecting each
// one's own rate limiter) and marks any gateway whose head trails the
// highest reported head by more than MaxBlockNumberDifference, or whose
// fetch fails, as unhealthy.
func (w *MultiplexedGatewayWatcher) CheckOnce(ctx context.Context) error {
	heads := make(map[string]*types.Header, len(w.gateways))
	for _, g := range w.gateways {
		if err := g.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("multiplexed gateway watcher: rate limit wait: %w", err)
		}
		hdr, err := g.Client.HeaderByNumber(ctx, nil)
		if err != nil {
			g.healthy = false
			g.lastErr = err
			w.log.WithError(err).WithField("gateway", g.Name).Warn("gateway head fetch failed")
			continue
		}
		heads[g.Name] = hdr
	}
	if len(heads) == 0 {
		return fmt.Errorf("multiplexed gateway watcher: no gateway responded")
	}

	var maxHead uint64
	for _, hdr := range heads {
		if hdr.Number.Uint64() > maxHead {
			maxHead = hdr.Number.Uint64()
		}
	}
	for _, g := range w.gateways {
		hdr, ok := heads[g.Name]
		if !ok {
			continue
		}
		diff := maxHead - hdr.Number.Uint64()
		wasHealthy := g.healthy
		g.healthy = diff <= MaxBlockNumberDifference
		if wasHealthy && !g.healthy {
			w.log.WithField("gateway", g.Name).WithField("lag_blocks", diff).Warn("gateway fell behind consensus head")
		}
	}
	return nil
}

// Run checks on every tick from ticks until ctx is cancelled.
func (w *MultiplexedGatewayWatcher) Run(ctx context.Context, ticks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if err := w.CheckOnce(ctx); err != nil {
				w.log.WithError(err).Error("gateway check failed")
			}
		}
	}
}
