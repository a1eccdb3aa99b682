package main

import (
	"bytes"
	"strings"
	"testing"

	"stock_go/internal/domain"
	"stock_go/internal/service"

	"github.com/shopspring/decimal"
)

func TestPrintResult(t *testing.T) {
	t.Run("Sell with P/L", func(t *testing.T) {
		pnl := decimal.RequireFromString("50")
		res := domain.ExecutionResult{
			Success:        true,
			Message:        "Sold 10 AAPL at $105.00, position closed",
			Symbol:         "AAPL",
			Action:         domain.ActionSell,
			Quantity:       10,
			Price:          decimal.RequireFromString("105"),
			NewCashBalance: decimal.RequireFromString("10050"),
			Position:       domain.PositionSummary{Symbol: "AAPL", Closed: true, Changed: true},
			RealizedPnL:    &pnl,
			Decision:       &domain.Decision{Action: domain.ActionSell, Confidence: decimal.RequireFromString("66.5"), Reason: "down", Fallback: true},
			Source:         domain.SourceSimulated,
		}

		var buf bytes.Buffer
		printResult(&buf, res)
		out := buf.String()
		for _, want := range []string{"$105.00 (simulated)", "66.50% (fallback)", "Position:   closed", "P/L:        $50.00"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("Failure", func(t *testing.T) {
		var buf bytes.Buffer
		printResult(&buf, domain.Failed("TSLA", "insufficient cash"))
		if !strings.Contains(buf.String(), "TSLA: insufficient cash") {
			t.Errorf("Unexpected output %q", buf.String())
		}
	})
}

func TestPrintBatch(t *testing.T) {
	var batch domain.BatchResult
	batch.Add("AAPL", domain.ExecutionResult{Success: true, Action: domain.ActionBuy, Quantity: 40, Price: decimal.RequireFromString("50"), NewCashBalance: decimal.RequireFromString("8000")})
	batch.Add("MSFT", domain.Failed("MSFT", "no shares to sell"))

	var buf bytes.Buffer
	printBatch(&buf, batch)
	out := buf.String()
	if !strings.Contains(out, "BUY 1 | SELL 0 | HOLD 0 | failed 1") {
		t.Errorf("Missing tally in output:\n%s", out)
	}
	if !strings.Contains(out, "Cash: $8000.00") {
		t.Errorf("Missing cash in output:\n%s", out)
	}
}

func TestPrintStats(t *testing.T) {
	stats := service.UserStats{
		Total: 3,
		Actions: []service.ActionStat{
			{Action: domain.ActionBuy, Count: 1, Percent: decimal.RequireFromString("33.3")},
			{Action: domain.ActionSell, Count: 0, Percent: decimal.Zero},
			{Action: domain.ActionHold, Count: 2, Percent: decimal.RequireFromString("66.7")},
		},
		BySymbol: []service.SymbolStat{{Symbol: "AAPL", Count: 3}},
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	out := buf.String()
	for _, want := range []string{"Decisions: 3", "(33.3%)", "(0.0%)", "AAPL   3"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}
