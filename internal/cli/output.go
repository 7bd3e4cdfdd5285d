package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/reugn/go-heartbeat"
	"github.com/reugn/go-heartbeat/store"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	keyColor   = color.New(color.FgBlue)
	lowColor   = color.New(color.FgGreen)
	midColor   = color.New(color.FgYellow)
	highColor  = color.New(color.FgRed, color.Bold)
)

// usageColor picks a color for a usage value scaled by 100.
func usageColor(usage uint32) *color.Color {
	switch {
	case usage >= 8000:
		return highColor
	case usage >= 5000:
		return midColor
	default:
		return lowColor
	}
}

func formatValue(key heartbeat.Key, value uint32) string {
	if key.Scale > 1 {
		return fmt.Sprintf("%.2f", key.Scaled(value))
	}
	return fmt.Sprintf("%d", value)
}

func printHeartbeat(w io.Writer, hb store.Heartbeat) {
	titleColor.Fprintf(w, "heartbeat %s - %s\n",
		hb.Start.Format(time.TimeOnly), hb.End.Format(time.TimeOnly))

	for _, m := range hb.Metrics {
		keyColor.Fprintf(w, "  %-30s", m.Key.Name)
		valueColor := lowColor
		if m.Key == heartbeat.CPUUsagePct || m.Key == heartbeat.CPU1UsagePct {
			valueColor = usageColor(m.Value)
		}
		valueColor.Fprintln(w, formatValue(m.Key, m.Value))
	}
}

func printSummary(w io.Writer, metrics *store.Store) {
	names := metrics.Keys()
	if len(names) == 0 {
		return
	}

	titleColor.Fprintln(w, "summary")
	for _, name := range names {
		summary, ok := metrics.Summary(name)
		if !ok {
			continue
		}
		keyColor.Fprintf(w, "  %-30s", name)
		fmt.Fprintf(w, "count=%d min=%d p50=%d p95=%d p99=%d max=%d\n",
			summary.Count, summary.Min, summary.P50, summary.P95, summary.P99, summary.Max)
	}
}
