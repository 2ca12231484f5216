package commitqueue

// gasadjuster.go grounded on gas_adjuster/tests.rs: a gas price is never
// sent lower than the last attempt's price scaled up (so a stuck
// transaction's replacement clears the mempool's replace-by-fee floor),
// clamped to a rolling max price that itself scales up over time if the
// network's suggested price keeps exceeding it.

import (
	"context"
	"math/big"
)

// replacementBumpPercent is how much a stuck transaction's gas price must
// increase by on resubmission, matching the original's 15% bump.
const replacementBumpPercent = 115

// gasPriceSamples is how many observed network gas prices are kept to
// decide whether the rolling max price should scale up.
const gasPriceSamples = 15

// maxPriceScalePercent is the factor the rolling max price is scaled by
// when the network price has exceeded it for a full sample window.
const maxPriceScalePercent = 150

// GasPriceOracle reports the settlement chain's currently suggested gas
// price, e.g. *ethclient.Client.SuggestGasPrice.
type GasPriceOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasAdjuster bounds the gas price offered for commit-queue transactions:
// never below a bumped previous attempt, never above a rolling max that
// itself grows if the network price keeps pressing against it.
type GasAdjuster struct {
	maxPrice *big.Int
	samples  []*big.Int
}

// NewGasAdjuster starts an adjuster with the given initial price ceiling
// (typically restored from persisted configuration).
func NewGasAdjuster(initialMaxPrice *big.Int) *GasAdjuster {
	return &GasAdjuster{maxPrice: new(big.Int).Set(initialMaxPrice)}
}

// CurrentMaxPrice returns the adjuster's present price ceiling.
func (a *GasAdjuster) CurrentMaxPrice() *big.Int {
	return new(big.Int).Set(a.maxPrice)
}

// GasPrice returns the price to offer for the next transaction: the
// larger of the oracle's suggestion and the previous attempt's price
// bumped by replacementBumpPercent (previousPrice may be nil for a fresh
// transaction), clamped to CurrentMaxPrice.
func (a *GasAdjuster) GasPrice(ctx context.Context, oracle GasPriceOracle, previousPrice *big.Int) (*big.Int, error) {
	suggested, err := oracle.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	price := new(big.Int).Set(suggested)
	if previousPrice != nil {
		bumped := new(big.Int).Mul(previousPrice, big.NewInt(replacementBumpPercent))
		bumped.Div(bumped, big.NewInt(100))
		if bumped.Cmp(price) > 0 {
			price = bumped
		}
	}
	if price.Cmp(a.maxPrice) > 0 {
		price = new(big.Int).Set(a.maxPrice)
	}
	return price, nil
}

// KeepUpdated samples the oracle's current suggested price and, once
// gasPriceSamples consecutive samples have all exceeded the current max
// price, scales the ceiling up by maxPriceScalePercent so legitimate
// network congestion isn't permanently capped by a stale limit.
func (a *GasAdjuster) KeepUpdated(ctx context.Context, oracle GasPriceOracle) error {
	suggested, err := oracle.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	a.samples = append(a.samples, suggested)
	if len(a.samples) > gasPriceSamples {
		a.samples = a.samples[len(a.samples)-gasPriceSamples:]
	}
	if len(a.samples) < gasPriceSamples {
		return nil
	}
	for _, s := range a.samples {
		if s.Cmp(a.maxPrice) <= 0 {
			return nil
		}
	}
	a.maxPrice.Mul(a.maxPrice, big.NewInt(maxPriceScalePercent))
	a.maxPrice.Div(a.maxPrice, big.NewInt(100))
	a.samples = nil
	return nil
}
