package stresstest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	noDataText = "no data"
)

// Report is the final output of a successful run
type Report struct {
	Targets               []string
	MessagesPerConnection int
	TotalMessages         int
	Elapsed               time.Duration
	ElapsedMs             int64
	RPS                   float64
	Summary               Summary
}

// NewReport aggregates the result of a run. Throughput is the configured
// number of messages over the wall-clock run time, not the number of samples.
func NewReport(config *RunConfig, result *Result) *Report {
	total := config.TotalMessages()
	return &Report{
		Targets:               config.TargetStrings(),
		MessagesPerConnection: int(config.MessagesPerConnection),
		TotalMessages:         total,
		Elapsed:               result.Elapsed,
		ElapsedMs:             result.Elapsed.Milliseconds(),
		RPS:                   Throughput(total, result.Elapsed),
		Summary:               Summarize(result.Samples),
	}
}

// Throughput returns messages per second, or 0 when no time elapsed
func Throughput(messages int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(messages) / elapsed.Seconds()
}

// Render writes the summary text. It is styled only when w is a terminal.
func (r *Report) Render(w io.Writer) error {
	_, err := io.WriteString(w, r.text(isTerminal(w)))
	return err
}

func (r *Report) text(styled bool) string {
	render := func(style lipgloss.Style, s string) string {
		if styled {
			return style.Render(s)
		}
		return s
	}
	line := func(b *strings.Builder, label, value string) {
		fmt.Fprintf(b, "%s %s\n", render(labelStyle, label+":"), render(valueStyle, value))
	}
	ms := func(v int64) string {
		if !r.Summary.HasData {
			return noDataText
		}
		return fmt.Sprintf("%d ms", v)
	}

	var b strings.Builder
	b.WriteString(render(titleStyle, "Benchmark Report") + "\n\n")
	line(&b, "Targets", fmt.Sprintf("%d", len(r.Targets)))
	line(&b, "Messages per connection", fmt.Sprintf("%d", r.MessagesPerConnection))
	line(&b, "Total messages", fmt.Sprintf("%d", r.TotalMessages))
	line(&b, "Samples", fmt.Sprintf("%d", r.Summary.Count))
	line(&b, "Elapsed", r.Elapsed.Round(time.Millisecond).String())
	b.WriteString("\n")
	line(&b, "RPS", fmt.Sprintf("%.2f", r.RPS))

	b.WriteString("\n" + render(titleStyle, "Percentiles:") + "\n")
	if !r.Summary.HasData {
		b.WriteString(noDataText + "\n")
	} else {
		line(&b, "p50", ms(r.Summary.P50Ms))
		line(&b, "p90", ms(r.Summary.P90Ms))
		line(&b, "p99", ms(r.Summary.P99Ms))
		line(&b, "p999", ms(r.Summary.P999Ms))
	}

	b.WriteString("\n")
	line(&b, "Minimum", ms(r.Summary.MinMs))
	line(&b, "Maximum", ms(r.Summary.MaxMs))
	if r.Summary.HasData {
		line(&b, "Mean", fmt.Sprintf("%.2f ms", r.Summary.MeanMs))
	} else {
		line(&b, "Mean", noDataText)
	}

	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Report rebuilds the report of a stored run. When the latency distribution
// was stored, the summary is recomputed from it.
func (r *Run) Report(buckets []Bucket) *Report {
	summary := r.Summary
	if len(buckets) > 0 {
		d := NewDistribution(nil)
		for _, b := range buckets {
			d.AddCount(b.LatencyMs, b.Count)
		}
		summary = d.Summary()
	}

	elapsed := time.Duration(r.ElapsedMs) * time.Millisecond
	return &Report{
		Targets:               r.Targets,
		MessagesPerConnection: r.MessagesPerConnection,
		TotalMessages:         r.MessagesPerConnection * len(r.Targets),
		Elapsed:               elapsed,
		ElapsedMs:             r.ElapsedMs,
		RPS:                   r.RPS,
		Summary:               summary,
	}
}
