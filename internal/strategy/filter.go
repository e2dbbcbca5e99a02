package strategy

import "SignalBacktest/internal/model"

// Filter decides which signals may open a position. Only BUY is actionable;
// SELL does not open shorts and does not close longs.
type Filter struct {
	// MinPredictedReturn, when set, drops BUY signals whose predicted return is
	// below it. Signals without a predicted return pass.
	MinPredictedReturn *float64
}

// Verdict is the outcome of evaluating one signal.
type Verdict string

const (
	VerdictActionable     Verdict = "actionable"
	VerdictNotBuy         Verdict = "not_buy"
	VerdictBelowThreshold Verdict = "below_threshold"
)

// Evaluate classifies sig.
func (f Filter) Evaluate(sig model.Signal) Verdict {
	if sig.Kind != model.SignalBuy {
		return VerdictNotBuy
	}
	if f.MinPredictedReturn != nil && sig.HasPredictedReturn && sig.PredictedReturn < *f.MinPredictedReturn {
		return VerdictBelowThreshold
	}
	return VerdictActionable
}

// Actionable reports whether sig may open a position.
func (f Filter) Actionable(sig model.Signal) bool {
	return f.Evaluate(sig) == VerdictActionable
}
