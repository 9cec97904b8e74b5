package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/studiowebux/proxybench/internal/config"
	"github.com/studiowebux/proxybench/internal/stresstest"
	"gopkg.in/yaml.v3"
)

// List formats accepted by the history command
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidateOutputFormat checks a history --output value
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (use table, json or yaml)", format)
	}
}

// HistoryOptions contains options for the history commands
type HistoryOptions struct {
	DBPath       string
	Limit        int
	OutputFormat string // history listing only
	AssumeYes    bool
	Stdin        io.Reader
	Stdout       io.Writer
}

func (o *HistoryOptions) open() (*stresstest.Manager, error) {
	dbPath := o.DBPath
	if dbPath == "" {
		dbPath = config.DatabasePath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no history database configured")
	}
	return stresstest.NewManager(dbPath)
}

func (o *HistoryOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o *HistoryOptions) stdin() io.Reader {
	if o.Stdin == nil {
		return os.Stdin
	}
	return o.Stdin
}

// ListHistory prints the most recent runs
func ListHistory(opts HistoryOptions) error {
	if err := ValidateOutputFormat(opts.OutputFormat); err != nil {
		return err
	}

	manager, err := opts.open()
	if err != nil {
		return err
	}
	defer manager.Close()

	runs, err := manager.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := opts.stdout()
	switch strings.ToLower(opts.OutputFormat) {
	case FormatJSON:
		if runs == nil {
			runs = []*stresstest.Run{}
		}
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(runs)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-5s %-19s %-10s %7s %6s %10s %8s %8s\n",
		"ID", "STARTED", "STATUS", "TARGETS", "MSGS", "RPS", "P50", "P99")
	for _, run := range runs {
		p50, p99 := "-", "-"
		if run.Summary.HasData {
			p50 = fmt.Sprintf("%dms", run.Summary.P50Ms)
			p99 = fmt.Sprintf("%dms", run.Summary.P99Ms)
		}
		fmt.Fprintf(w, "%-5d %-19s %-10s %7d %6d %10.2f %8s %8s\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), run.Status,
			len(run.Targets), run.MessagesPerConnection, run.RPS, p50, p99)
		if run.ErrorMessage != "" {
			fmt.Fprintf(w, "      error: %s\n", run.ErrorMessage)
		}
	}
	return nil
}

// ShowRun prints the report of a stored run. With id 0 on a terminal the run
// is picked interactively.
func ShowRun(opts HistoryOptions, id int64) error {
	manager, err := opts.open()
	if err != nil {
		return err
	}
	defer manager.Close()

	if id == 0 {
		if !isInteractive(opts.stdin()) {
			return fmt.Errorf("run id is required (non-interactive mode)")
		}
		runs, err := manager.ListRuns(opts.Limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if id, err = promptForRun(runs); err != nil {
			return err
		}
	}

	run, err := manager.GetRun(id)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", id, err)
	}
	if run.Status != stresstest.StatusCompleted {
		return fmt.Errorf("run %d has no report (status: %s): %s", id, run.Status, run.ErrorMessage)
	}

	buckets, err := manager.GetBuckets(id)
	if err != nil {
		return fmt.Errorf("failed to load latency distribution of run %d: %w", id, err)
	}

	return run.Report(buckets).Render(opts.stdout())
}

// DeleteRun removes a stored run after confirmation
func DeleteRun(opts HistoryOptions, id int64) error {
	manager, err := opts.open()
	if err != nil {
		return err
	}
	defer manager.Close()

	if !opts.AssumeYes {
		fmt.Fprintf(opts.stdout(), "Delete run %d? [y/N]: ", id)
		response, _ := bufio.NewReader(opts.stdin()).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			return fmt.Errorf("deletion cancelled by user")
		}
	}

	if err := manager.DeleteRun(id); err != nil {
		return err
	}
	fmt.Fprintf(opts.stdout(), "Deleted run %d\n", id)
	return nil
}

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
