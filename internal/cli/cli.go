package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/studiowebux/proxybench/internal/config"
	"github.com/studiowebux/proxybench/internal/logging"
	"github.com/studiowebux/proxybench/internal/stresstest"
)

// Usage is printed when the positional arguments are ambiguous
const Usage = `must specify two positional arguments
1 - config file path                      (default: ./config.json)
2 - no of messages to send per connection (default: 10)

example usage: proxybench config.json 50
`

// RunOptions contains options for running a benchmark in CLI mode
type RunOptions struct {
	ConfigPath            string
	MessagesPerConnection uint16
	LogLevel              string // debug, info, error
	DialTimeout           time.Duration
	IOTimeout             time.Duration
	DBPath                string // empty initializes the data directory
	NoHistory             bool
	Stdout                io.Writer
	Stderr                io.Writer
}

// ParseArgs resolves the positional arguments. A single argument is
// ambiguous and asks for usage to be shown. A missing or unparsable message
// count falls back to the default.
func ParseArgs(args []string) (configPath string, messages uint16, showUsage bool) {
	if len(args) == 1 {
		return "", 0, true
	}

	configPath = config.DefaultConfigPath
	messages = stresstest.DefaultMessagesPerConnection

	if len(args) > 0 && args[0] != "" {
		configPath = args[0]
	}
	if len(args) > 1 {
		if n, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 16); err == nil {
			messages = uint16(n)
		}
	}
	return configPath, messages, false
}

// Run loads the targets, runs the benchmark and prints the summary text. A
// failed run returns its error and prints nothing on stdout.
func Run(ctx context.Context, opts RunOptions) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	logger, err := logging.New(stderr, opts.LogLevel)
	if err != nil {
		return err
	}

	targets, err := config.LoadTargets(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger.Info("using config file", "path", opts.ConfigPath)
	logger.Info("messages to send per connection", "count", opts.MessagesPerConnection)

	runConfig := &stresstest.RunConfig{
		Targets:               targets,
		MessagesPerConnection: opts.MessagesPerConnection,
		DialTimeout:           opts.DialTimeout,
		IOTimeout:             opts.IOTimeout,
	}

	var manager *stresstest.Manager
	if !opts.NoHistory {
		manager = openHistory(opts.DBPath, logger)
		if manager != nil {
			defer manager.Close()
		}
	}

	executor, err := stresstest.NewExecutor(&stresstest.ExecutionConfig{
		Config:     runConfig,
		ConfigPath: opts.ConfigPath,
	}, manager, logger)
	if err != nil {
		return err
	}

	report, err := executor.Run(ctx)
	if err != nil {
		return err
	}

	return report.Render(stdout)
}

// openHistory opens the run history. History is optional, so failures are
// logged and the benchmark runs without it.
func openHistory(dbPath string, logger *slog.Logger) *stresstest.Manager {
	if dbPath == "" {
		if err := config.Initialize(); err != nil {
			logger.Error("run history disabled", "error", err)
			return nil
		}
		dbPath = config.DatabasePath
	}

	manager, err := stresstest.NewManager(dbPath)
	if err != nil {
		logger.Error("failed to open run history", "path", dbPath, "error", err)
		return nil
	}
	return manager
}
