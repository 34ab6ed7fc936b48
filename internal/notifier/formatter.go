package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"TrendScout/internal/collector"
	"TrendScout/internal/scanner"
)

// FormatScanReport renders a scan result as a Telegram HTML message. At
// most maxRows rows of each table are listed; 0 lists them all.
func FormatScanReport(asOf time.Time, res scanner.Result, maxRows int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>TrendScout daily scan</b> | %s\n\n", asOf.Format("2006-01-02")))
	c := res.Counts
	b.WriteString(fmt.Sprintf("Symbols: %d (ok %d, skipped %d, failed %d)\n", c.Symbols, c.Success, c.Skipped, c.Failed))
	b.WriteString(fmt.Sprintf("Buy signals: %d | Uptrend: %d\n", c.Signals, c.TrendMembers))

	if len(res.Signals) > 0 {
		b.WriteString("\n🟢 <b>Buy signals</b>\n")
		for i, s := range res.Signals {
			if maxRows > 0 && i == maxRows {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(res.Signals)-maxRows))
				break
			}
			b.WriteString(fmt.Sprintf("  %s  %.2f  RSI %.2f  %s\n",
				html.EscapeString(s.Symbol), s.Close, s.RSI, s.Date.Format("2006-01-02")))
		}
	}

	if len(res.Trends) > 0 {
		b.WriteString("\n📈 <b>Uptrend</b>\n")
		for i, tr := range res.Trends {
			if maxRows > 0 && i == maxRows {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(res.Trends)-maxRows))
				break
			}
			b.WriteString(fmt.Sprintf("  %s  %.2f  (%.2f / %.2f)\n",
				html.EscapeString(tr.Symbol), tr.Close, tr.SMAShort, tr.SMALong))
		}
	}
	return b.String()
}

// FormatFetchReport renders a fetch summary.
func FormatFetchReport(rep collector.Report) string {
	var b strings.Builder
	b.WriteString("📥 <b>TrendScout fetch</b>\n")
	b.WriteString(fmt.Sprintf("Requested %d, already stored %d\n", rep.Requested, rep.Skipped))
	b.WriteString(fmt.Sprintf("Fetched %d, empty %d, failed %d\n", rep.Fetched, rep.Empty, rep.Failed))
	b.WriteString(fmt.Sprintf("Rows appended %d in %d batches\n", rep.RowsAppended, rep.Batches))
	return b.String()
}

// FormatError renders a fatal stage error.
func FormatError(stage string, err error) string {
	return fmt.Sprintf("⚠️ <b>TrendScout %s failed</b>\n%s", html.EscapeString(stage), html.EscapeString(err.Error()))
}
