package tradingview

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/risk"
)

func allowDump() bool {
	// DEBUG_DUMP=1 prints the closed trades as Pine Script on shutdown
	if os.Getenv("DEBUG_DUMP") == "1" {
		slog.Info("DEBUG_DUMP=1, dumping to stdout")
		return true
	}
	return false
}

func DumpPineScript(trades []ledger.Trade) {
	if !allowDump() {
		return
	}
	risk.CalculateTradeStats(trades).Print()
	fmt.Println()
	for _, t := range trades {
		t.Print()
	}
	fmt.Println()
	fmt.Println(GeneratePineScript(trades))
}

// GeneratePineScript renders entry and exit markers for closed trades so they
// can be pasted onto a TradingView chart. Markers are numbered in trade order.
func GeneratePineScript(trades []ledger.Trade) string {
	var sb strings.Builder

	sb.WriteString("// ============================================\n")
	sb.WriteString("// TRADE VALIDATION MARKERS\n")
	sb.WriteString("// ============================================\n\n")

	for i, trade := range trades {
		n := i + 1
		label := shortID(trade.ID)

		// Entry marker
		entryText := fmt.Sprintf("#%d %s %s\\nEntry: %.5f\\nSize: %g",
			n, trade.Symbol, strings.ToUpper(string(trade.Direction)), trade.EntryPrice, trade.Size)

		sb.WriteString(fmt.Sprintf("t%d_entry = time == %s\n", n, formatPineTimestamp(trade.EntryTime)))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_entry, title=\"#%d %s Entry\", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			n, n, label, entryText))

		// Exit marker
		exitColor := "color.green"
		if trade.PnL < 0 {
			exitColor = "color.red"
		}
		exitText := fmt.Sprintf("#%d EXIT\\nExit: %.5f\\nP&L: %.2f\\n%s",
			n, trade.ExitPrice, trade.PnL, trade.ExitReason)

		sb.WriteString(fmt.Sprintf("t%d_exit = time == %s\n", n, formatPineTimestamp(trade.ExitTime)))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_exit, title=\"#%d %s EXIT\", location=location.top, color=%s, style=shape.labeldown, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			n, n, label, exitColor, exitText))
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatPineTimestamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("timestamp(\"UTC\", %d, %d, %d, %d, %d)",
		utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), utc.Minute())
}
