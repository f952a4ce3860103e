package notifier

import (
	"fmt"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

// NoOpportunitiesMessage is shown when the log is empty.
const NoOpportunitiesMessage = "❌ No recent opportunities to display."

// FormatAlert renders opportunities as a numbered list in the given order.
func FormatAlert(opps []model.Opportunity) string {
	if len(opps) == 0 {
		return NoOpportunitiesMessage
	}

	var b strings.Builder
	b.WriteString("⏰ Hourly Crypto Alert - Top Opportunities:\n\n")
	for i, o := range opps {
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, o.Symbol, o.DetectedAt.Format("15:04:05")))
		b.WriteString(fmt.Sprintf("📈 %.2f%% | 💰 $%.4f | 🎯 %.2f%%\n\n",
			o.PriceChangePct, o.CurrentPrice, o.ConfidenceScore))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatWelcome is the /start reply.
func FormatWelcome(maxOpportunities int, alertInterval time.Duration) string {
	var b strings.Builder
	b.WriteString("🤖 Welcome to the Crypto Tracking Bot!\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("/subscribe - Subscribe to periodic alerts\n")
	b.WriteString("/unsubscribe - Unsubscribe from alerts\n")
	b.WriteString(fmt.Sprintf("/opportunities - View last %d crypto opportunities\n", maxOpportunities))
	b.WriteString("/status - Show tracking status\n\n")
	b.WriteString("Features:\n")
	b.WriteString(fmt.Sprintf("• Tracks last %d significant opportunities\n", maxOpportunities))
	b.WriteString(fmt.Sprintf("• %s alert interval\n", alertInterval))
	b.WriteString("• Real-time price tracking\n")
	b.WriteString("• Volume analysis\n")
	b.WriteString("• Confidence scoring")
	return b.String()
}

// Status is a snapshot of the monitor for the /status command.
type Status struct {
	DataSource     string
	TrackedSymbols int
	Opportunities  int
	Subscribers    int
	Subscribed     bool
	LastAlertAt    time.Time
	NextAlertAt    time.Time
}

// FormatStatus renders the monitor status.
func FormatStatus(s Status) string {
	var b strings.Builder
	b.WriteString("📦 Monitor status\n\n")
	b.WriteString(fmt.Sprintf("Data source: %s\n", s.DataSource))
	b.WriteString(fmt.Sprintf("Tracked symbols: %d\n", s.TrackedSymbols))
	b.WriteString(fmt.Sprintf("Logged opportunities: %d\n", s.Opportunities))
	b.WriteString(fmt.Sprintf("Subscribers: %d\n", s.Subscribers))
	b.WriteString(fmt.Sprintf("This chat subscribed: %v\n", s.Subscribed))
	b.WriteString(fmt.Sprintf("Last alert: %s\n", s.LastAlertAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Next alert window: %s", s.NextAlertAt.Format("2006-01-02 15:04")))
	return b.String()
}
