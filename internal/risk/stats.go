package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/types"
)

type TradeStats struct {
	// Basic
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`

	// P&L
	TotalPnL     float64 `json:"totalPnL"`
	GrossProfit  float64 `json:"grossProfit"`
	GrossLoss    float64 `json:"grossLoss"`
	ProfitFactor float64 `json:"profitFactor"`

	// Averages
	AvgWin        float64 `json:"avgWin"`
	AvgLoss       float64 `json:"avgLoss"`
	LargestWin    float64 `json:"largestWin"`
	LargestLoss   float64 `json:"largestLoss"`
	ExpectedValue float64 `json:"expectedValue"`

	// Duration
	AvgTradeDuration time.Duration `json:"avgTradeDuration"`
}

// CalculateTradeStats summarises the closed trades. WinRate is a percentage.
// ProfitFactor stays 0 when there are no losing trades.
func CalculateTradeStats(trades []ledger.Trade) TradeStats {
	stats := TradeStats{
		TotalTrades: len(trades),
	}

	if len(trades) == 0 {
		return stats
	}

	var totalWin, totalLoss, totalPnL float64
	var totalDuration time.Duration

	for _, trade := range trades {
		// Win/Loss counting
		if trade.PnL > 0 {
			stats.WinningTrades++
			totalWin += trade.PnL
			stats.LargestWin = math.Max(stats.LargestWin, trade.PnL)
		} else if trade.PnL < 0 {
			stats.LosingTrades++
			totalLoss += trade.PnL // Already negative
			stats.LargestLoss = math.Min(stats.LargestLoss, trade.PnL)
		}
		totalPnL += trade.PnL

		totalDuration += trade.ExitTime.Sub(trade.EntryTime)
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	stats.GrossProfit = totalWin
	stats.GrossLoss = totalLoss
	stats.TotalPnL = totalPnL

	if totalLoss != 0 {
		stats.ProfitFactor = totalWin / -totalLoss
	}

	if stats.WinningTrades > 0 {
		stats.AvgWin = totalWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = totalLoss / float64(stats.LosingTrades)
	}
	stats.ExpectedValue = stats.TotalPnL / float64(stats.TotalTrades)

	stats.AvgTradeDuration = totalDuration / time.Duration(stats.TotalTrades)

	return stats
}

func (s TradeStats) Print() {
	fmt.Println("\n=== Trade Statistics ===")
	fmt.Printf("Total Trades:     %d\n", s.TotalTrades)
	fmt.Printf("Winning Trades:   %d (%.2f%%)\n", s.WinningTrades, s.WinRate)
	fmt.Printf("Losing Trades:    %d\n\n", s.LosingTrades)

	fmt.Printf("Total P&L:        %.2f\n", s.TotalPnL)
	fmt.Printf("Gross Profit:     %.2f\n", s.GrossProfit)
	fmt.Printf("Gross Loss:       %.2f\n", s.GrossLoss)
	fmt.Printf("Profit Factor:    %.2f\n\n", s.ProfitFactor)

	fmt.Printf("Avg Win:          %.2f\n", s.AvgWin)
	fmt.Printf("Avg Loss:         %.2f\n", s.AvgLoss)
	fmt.Printf("Expected Value:   %.2f per trade\n", s.ExpectedValue)
	fmt.Printf("Avg Duration:     %s\n", s.AvgTradeDuration.Round(time.Minute))
}

// PositionSize returns the quantity that loses riskPercent of balance if
// price moves from entry to stop.
func PositionSize(balance, riskPercent, entry, stop float64) (float64, error) {
	if !(balance > 0) || !(riskPercent > 0) || riskPercent > 100 {
		return 0, fmt.Errorf("balance %v risk %v%%: %w", balance, riskPercent, types.ErrInvalidQuantity)
	}
	if !(entry > 0) || !(stop > 0) {
		return 0, fmt.Errorf("entry %v stop %v: %w", entry, stop, types.ErrInvalidPrice)
	}

	riskAmount := balance * (riskPercent / 100)
	stopDistance := math.Abs(entry - stop)
	if stopDistance == 0 {
		return 0, fmt.Errorf("stop equals entry %v: %w", entry, types.ErrInvalidPrice)
	}

	size := riskAmount / stopDistance
	riskLog.Debug("Calculated position size", "size", size, "riskAmount", riskAmount, "entryPrice", entry, "stopLoss", stop, "stopDistance", stopDistance)
	return size, nil
}
