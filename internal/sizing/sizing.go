// Package sizing turns free capital and a fill price into a whole-unit quantity.
package sizing

import (
	"fmt"
	"strings"

	"SignalBacktest/internal/calculator"
)

// Mode selects the sizing policy.
type Mode int

const (
	ModeRisk          Mode = iota // C: risk a fraction of capital per stop distance (default)
	ModeSingle                    // A: all free capital, one position system-wide
	ModeFixedFraction             // B: equal slice of initial capital per ticker
)

// DefaultRiskFraction and DefaultFallbackStopPct apply to ModeRisk when unset.
const (
	DefaultRiskFraction    = 0.01
	DefaultFallbackStopPct = 0.02
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "A"
	case ModeFixedFraction:
		return "B"
	case ModeRisk:
		return "C"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts A|B|C or single|fixed|risk, case-insensitively. Blank is ModeRisk.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "risk":
		return ModeRisk, nil
	case "a", "single":
		return ModeSingle, nil
	case "b", "fixed", "fixed_fraction":
		return ModeFixedFraction, nil
	default:
		return 0, fmt.Errorf("unknown sizing mode %q", s)
	}
}

// MarshalText and UnmarshalText let Mode appear in YAML and JSON as its letter.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Admits reports whether a new position in ticker may open given the current
// open position counts.
func (m Mode) Admits(totalOpen int, openInTicker int) bool {
	switch m {
	case ModeSingle:
		return totalOpen == 0
	case ModeFixedFraction:
		return openInTicker == 0
	default:
		return true
	}
}

// Request carries everything a Sizer may look at.
type Request struct {
	Available  float64 // free cash at the time of entry
	EntryPrice float64 // slippage-adjusted
	// RiskFraction and FallbackStopPct are read by ModeRisk only.
	RiskFraction    float64
	FallbackStopPct float64
	ATR             float64
	HasATR          bool
	// TickerAllocation is read by ModeFixedFraction only.
	TickerAllocation float64
}

// Sizer computes a quantity. Zero means no trade.
type Sizer interface {
	Size(req Request) int64
}

// New returns the Sizer for mode.
func New(mode Mode) Sizer {
	switch mode {
	case ModeSingle:
		return fullCapital{}
	case ModeFixedFraction:
		return fixedFraction{}
	default:
		return riskBased{}
	}
}

type fullCapital struct{}

func (fullCapital) Size(req Request) int64 {
	if req.EntryPrice <= 0 {
		return 0
	}
	return calculator.FloorUnits(req.Available / req.EntryPrice)
}

type fixedFraction struct{}

func (fixedFraction) Size(req Request) int64 {
	if req.EntryPrice <= 0 {
		return 0
	}
	return calculator.FloorUnits(req.TickerAllocation / req.EntryPrice)
}

type riskBased struct{}

func (riskBased) Size(req Request) int64 {
	den := StopDistance(req) * req.EntryPrice
	if den <= 0 {
		return 0
	}
	frac := req.RiskFraction
	if frac <= 0 {
		frac = DefaultRiskFraction
	}
	return calculator.FloorUnits(req.Available * frac / den)
}

// StopDistance is the ATR when present and positive, else a fraction of the entry price.
func StopDistance(req Request) float64 {
	if req.HasATR && req.ATR > 0 {
		return req.ATR
	}
	pct := req.FallbackStopPct
	if pct <= 0 {
		pct = DefaultFallbackStopPct
	}
	return req.EntryPrice * pct
}
