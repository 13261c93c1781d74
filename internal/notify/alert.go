package notify

import (
	"fmt"
	"strings"

	"github.com/whalewatch/engine/internal/domain"
)

// FormatSignalAlert renders a high-percentile signal as a notification title
// and message. The message is plain markdown shared by all senders.
func FormatSignalAlert(sig domain.SignalResult) (title, message string) {
	market := sig.MarketQuestion
	if market == "" {
		market = sig.EventTitle
	}
	if market == "" {
		market = sig.ConditionID
	}
	if market == "" {
		market = "unknown market"
	}

	title = fmt.Sprintf("Whale signal: %s (%s)", market, sig.Outcome)

	var b strings.Builder
	fmt.Fprintf(&b, "Stance: %s | Percentile: %.1f | Composite: %.3f\n",
		sig.Stance, sig.Percentile, sig.CompositeScore)
	fmt.Fprintf(&b, "Volume: $%.0f (%d trades, $%.0f from %d ranked wallets)\n",
		sig.TotalVolume, sig.TradeCount, sig.RankedVolume, sig.TopWalletCount)
	if sig.BestRank != nil {
		fmt.Fprintf(&b, "Best wallet rank: #%d\n", *sig.BestRank)
	}
	fmt.Fprintf(&b, "Latest price: %.3f", sig.LatestPrice)
	if sig.IsUnusualActivity {
		b.WriteString(" | unusual volume")
	}
	if sig.IsConcentrated {
		b.WriteString(" | concentrated flow")
	}

	return title, b.String()
}
