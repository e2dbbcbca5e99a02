package strategy

import (
	"testing"

	"SignalBacktest/internal/model"
)

func TestFilter_OnlyBuyIsActionable(t *testing.T) {
	var f Filter
	tests := []struct {
		kind model.SignalKind
		want Verdict
	}{
		{model.SignalBuy, VerdictActionable},
		{model.SignalSell, VerdictNotBuy},
		{model.SignalHold, VerdictNotBuy},
		{model.ParseSignalKind(""), VerdictNotBuy},
		{model.ParseSignalKind("strong buy"), VerdictNotBuy},
	}
	for _, tt := range tests {
		if got := f.Evaluate(model.Signal{Kind: tt.kind}); got != tt.want {
			t.Errorf("kind %q: expected %q, got %q", tt.kind, tt.want, got)
		}
	}
}

func TestFilter_MinPredictedReturn(t *testing.T) {
	thr := 0.005
	f := Filter{MinPredictedReturn: &thr}
	tests := []struct {
		sig  model.Signal
		want bool
	}{
		{model.Signal{Kind: model.SignalBuy, PredictedReturn: 0.01, HasPredictedReturn: true}, true},
		{model.Signal{Kind: model.SignalBuy, PredictedReturn: 0.005, HasPredictedReturn: true}, true},
		{model.Signal{Kind: model.SignalBuy, PredictedReturn: 0.001, HasPredictedReturn: true}, false},
		{model.Signal{Kind: model.SignalBuy}, true},
	}
	for i, tt := range tests {
		if got := f.Actionable(tt.sig); got != tt.want {
			t.Errorf("case %d: expected %v, got %v", i, tt.want, got)
		}
	}
}
