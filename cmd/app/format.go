package main

import (
	"fmt"
	"io"
	"strings"

	"stock_go/internal/domain"
	"stock_go/internal/service"
)

func printRegistration(w io.Writer, acc *domain.Account, created bool, symbols []string) {
	if created {
		fmt.Fprintf(w, "Welcome, %s! Your paper account starts with $%s.\n", acc.Username, acc.Cash.StringFixed(2))
	} else {
		fmt.Fprintf(w, "Welcome back, %s. Cash: $%s\n", acc.Username, acc.Cash.StringFixed(2))
	}
	fmt.Fprintf(w, "Supported symbols: %s\n", strings.Join(symbols, ", "))
}

func printResult(w io.Writer, res domain.ExecutionResult) {
	if !res.Success {
		fmt.Fprintf(w, "❌ %s: %s\n", res.Symbol, res.Message)
		if res.Decision != nil {
			fmt.Fprintf(w, "   Decision: %s %d (confidence %s%%)\n",
				res.Decision.Action, res.Decision.Quantity, res.Decision.Confidence.StringFixed(2))
		}
		return
	}

	fmt.Fprintf(w, "✅ %s\n", res.Message)
	fmt.Fprintf(w, "   Symbol:     %s\n", res.Symbol)
	fmt.Fprintf(w, "   Action:     %s\n", res.Action)
	fmt.Fprintf(w, "   Quantity:   %d\n", res.Quantity)
	price := "$" + res.Price.StringFixed(2)
	if res.Source == domain.SourceSimulated {
		price += " (simulated)"
	}
	fmt.Fprintf(w, "   Price:      %s\n", price)
	if d := res.Decision; d != nil {
		origin := ""
		if d.Fallback {
			origin = " (fallback)"
		}
		fmt.Fprintf(w, "   Confidence: %s%%%s\n", d.Confidence.StringFixed(2), origin)
		fmt.Fprintf(w, "   Reason:     %s\n", d.Reason)
	}
	fmt.Fprintf(w, "   Cash:       $%s\n", res.NewCashBalance.StringFixed(2))
	if res.Position.Closed {
		fmt.Fprintf(w, "   Position:   closed\n")
	} else if res.Position.Quantity > 0 {
		fmt.Fprintf(w, "   Position:   %d @ $%s\n", res.Position.Quantity, res.Position.AvgPrice.StringFixed(2))
	}
	if res.RealizedPnL != nil {
		fmt.Fprintf(w, "   P/L:        $%s\n", res.RealizedPnL.StringFixed(2))
	}
}

func printBatch(w io.Writer, batch domain.BatchResult) {
	for _, e := range batch.Entries {
		r := e.Result
		if !r.Success {
			fmt.Fprintf(w, "%-6s ❌ %s\n", e.Symbol, r.Message)
			continue
		}
		fmt.Fprintf(w, "%-6s %-4s %4d @ $%s\n", e.Symbol, r.Action, r.Quantity, r.Price.StringFixed(2))
	}
	fmt.Fprintf(w, "BUY %d | SELL %d | HOLD %d | failed %d\n", batch.Bought, batch.Sold, batch.Held, batch.Failed)
	fmt.Fprintf(w, "Cash: $%s\n", batch.Cash.StringFixed(2))
}

func printPortfolio(w io.Writer, p service.Portfolio) {
	if len(p.Holdings) == 0 {
		fmt.Fprintln(w, "No open positions.")
	}
	for _, h := range p.Holdings {
		fmt.Fprintf(w, "%-6s %6d @ $%s = $%s\n", h.Symbol, h.Quantity, h.AvgPrice.StringFixed(2), h.Value.StringFixed(2))
	}
	fmt.Fprintf(w, "Invested: $%s\n", p.Invested.StringFixed(2))
	fmt.Fprintf(w, "Cash:     $%s\n", p.Cash.StringFixed(2))
	fmt.Fprintf(w, "Total:    $%s\n", p.Total.StringFixed(2))
}

func printHistory(w io.Writer, trades []domain.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades yet.")
		return
	}
	for _, t := range trades {
		fmt.Fprintf(w, "%s  %-4s %-6s %4d @ $%s  total $%s  (%s%%)\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), t.Action, t.Symbol, t.Quantity,
			t.Price.StringFixed(2), t.Total.StringFixed(2), t.Confidence.StringFixed(2))
	}
}

func printStats(w io.Writer, s service.UserStats) {
	fmt.Fprintf(w, "Decisions: %d\n", s.Total)
	for _, a := range s.Actions {
		fmt.Fprintf(w, "  %-4s %4d (%s%%)\n", a.Action, a.Count, a.Percent.StringFixed(1))
	}
	if len(s.BySymbol) > 0 {
		fmt.Fprintln(w, "By symbol:")
		for _, sym := range s.BySymbol {
			fmt.Fprintf(w, "  %-6s %d\n", sym.Symbol, sym.Count)
		}
	}
}
