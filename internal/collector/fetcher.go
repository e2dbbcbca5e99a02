package collector

import (
	"context"

	"SignalBacktest/internal/model"
)

// PriceFetcher loads the full price table from one source.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) ([]model.PricePoint, error)
	Name() string
}

// SignalFetcher loads one signal file.
type SignalFetcher interface {
	FetchSignals(ctx context.Context, path string) ([]model.Signal, error)
}
