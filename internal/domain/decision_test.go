package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in     string
		want   Action
		wantOK bool
	}{
		{"BUY", ActionBuy, true},
		{"buy", ActionBuy, true},
		{" Sell ", ActionSell, true},
		{"hold", ActionHold, true},
		{"STRONG_BUY", ActionHold, false},
		{"", ActionHold, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAction(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseAction(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFeatureSet_Map(t *testing.T) {
	f := FeatureSet{Return1d: 0.1, SMA5: 105, SMA10: 103, PriceOverSMA5: 1.05}
	m := f.Map()

	if len(m) != 4 {
		t.Fatalf("Expected 4 features, got %d", len(m))
	}
	if m["return_1d"] != 0.1 || m["SMA_5"] != 105 || m["SMA_10"] != 103 || m["price_over_sma5"] != 1.05 {
		t.Errorf("Unexpected feature map: %v", m)
	}
}

func TestBatchResult_Add(t *testing.T) {
	var b BatchResult
	b.Add("AAPL", ExecutionResult{Success: true, Action: ActionBuy, NewCashBalance: decimal.NewFromInt(9000)})
	b.Add("MSFT", ExecutionResult{Success: true, Action: ActionHold, NewCashBalance: decimal.NewFromInt(9000)})
	b.Add("TSLA", ExecutionResult{Success: false, Action: ActionSell, Message: "no position"})
	b.Add("NVDA", ExecutionResult{Success: true, Action: ActionSell, NewCashBalance: decimal.NewFromInt(9500)})

	if b.Bought != 1 || b.Held != 1 || b.Sold != 1 || b.Failed != 1 {
		t.Errorf("Unexpected tallies: buy=%d hold=%d sell=%d failed=%d", b.Bought, b.Held, b.Sold, b.Failed)
	}
	if len(b.Entries) != 4 {
		t.Errorf("Expected 4 entries, got %d", len(b.Entries))
	}
	if !b.Cash.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("Expected cash from last successful cycle, got %s", b.Cash)
	}
}
