// Package notify sends best-effort messages about completed decision cycles.
package notify

import (
	"fmt"
	"strings"

	"github.com/vadiminshakov/autotrade/internal/domain"
)

// Notifier dispatches a message without blocking the caller. Delivery failures are
// logged by the implementation and never reported back.
type Notifier interface {
	Notify(text string)
	// Close waits for in-flight messages.
	Close()
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(string) {}
func (Nop) Close()        {}

// FormatDecision renders a cycle event as a chat message.
func FormatDecision(ev domain.DecisionEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", strings.ToUpper(ev.Action), ev.Pair)
	if ev.Action != domain.ActionHold.String() {
		status := "executed"
		if !ev.Executed {
			status = "not executed"
		}
		fmt.Fprintf(&sb, " %d%% (%s)", ev.Percentage, status)
	}
	sb.WriteString("\n")
	if ev.Price != "" {
		fmt.Fprintf(&sb, "price: %s KRW\n", ev.Price)
	}
	if ev.TotalKRW != "" {
		fmt.Fprintf(&sb, "total: %s KRW (KRW %s, BTC %s)\n", ev.TotalKRW, ev.KRWBalance, ev.BTCBalance)
	}
	if ev.Reason != "" {
		sb.WriteString("\n")
		sb.WriteString(ev.Reason)
	}
	return sb.String()
}
