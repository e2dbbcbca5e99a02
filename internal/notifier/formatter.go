package notifier

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/runner"
)

// FormatBatch formats a finished batch into a Telegram message.
func FormatBatch(b *runner.Batch) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📊 <b>Backtest batch</b> | %s\n", b.StartedAt.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("Files: %d | Failed: %d\n\n", len(b.Runs), b.Failed()))

	for _, r := range b.Runs {
		name := html.EscapeString(runner.Stem(r.SignalFile))
		if r.Err != nil {
			sb.WriteString(fmt.Sprintf("❌ %s: %s\n", name, html.EscapeString(r.Err.Error())))
			continue
		}
		rep := r.Report
		sb.WriteString(fmt.Sprintf("• <b>%s</b>\n", name))
		sb.WriteString(fmt.Sprintf("  trades %d | pnl %+.2f | return %+.2f%%\n", rep.NTrades, rep.TotalPnL, rep.TotalReturn*100))
		sb.WriteString(fmt.Sprintf("  win rate %.1f%% | max dd %.2f\n", rep.WinRate*100, rep.MaxDrawdown))
	}
	return sb.String()
}

// FormatRuns formats archived runs, newest first.
func FormatRuns(runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return "No archived runs."
	}
	var sb strings.Builder
	sb.WriteString("🗂 <b>Recent runs</b>\n\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s %s [%s] trades %d pnl %+.2f\n",
			r.StartedAt.Format("2006-01-02 15:04"),
			html.EscapeString(filepath.Base(r.SignalFile)),
			r.Mode, r.NTrades, r.TotalPnL))
	}
	return sb.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Commands:\n• /run run the configured batch now\n• /status last batch summary\n• /last archived runs"
}
