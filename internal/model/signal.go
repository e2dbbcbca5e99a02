package model

import (
	"strings"
	"time"
)

// SignalKind is the categorical output of the upstream model.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// ParseSignalKind maps a raw feed value to a kind. Unknown and blank values are HOLD.
func ParseSignalKind(s string) SignalKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SignalBuy
	case "SELL":
		return SignalSell
	default:
		return SignalHold
	}
}

// Signal is one row of the signal feed.
type Signal struct {
	Date               time.Time
	Ticker             string
	Kind               SignalKind
	PredictedReturn    float64
	HasPredictedReturn bool
}
