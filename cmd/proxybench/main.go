package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/studiowebux/proxybench/internal/cli"
	"github.com/studiowebux/proxybench/internal/config"
	"github.com/studiowebux/proxybench/internal/echo"
	"github.com/studiowebux/proxybench/internal/logging"
	"github.com/studiowebux/proxybench/internal/stresstest"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proxybench [config] [messages-per-connection]",
	Short: "proxybench - concurrent TCP round-trip benchmark",
	Long: `proxybench opens one connection per configured target, sends a fixed
probe message a number of times on each, and reports throughput and latency
percentiles for the whole run.

Any connection or transfer failure aborts the whole run.

Examples:
  proxybench                           # ./config.json, 10 messages per connection
  proxybench config.json 50            # 50 messages per connection
  proxybench targets.yaml 100          # YAML target file
  proxybench history                   # List previous runs
  proxybench history -o json           # List previous runs as JSON`,
	Version:       version,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, messages, showUsage := cli.ParseArgs(args)
		if showUsage {
			fmt.Fprint(cmd.OutOrStdout(), cli.Usage)
			return nil
		}

		return cli.Run(cmd.Context(), cli.RunOptions{
			ConfigPath:            configPath,
			MessagesPerConnection: messages,
			LogLevel:              flagLogLevel,
			DialTimeout:           flagDialTimeout,
			IOTimeout:             flagIOTimeout,
			DBPath:                flagDBPath,
			NoHistory:             flagNoHistory,
			Stdout:                cmd.OutOrStdout(),
			Stderr:                cmd.ErrOrStderr(),
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous benchmark runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := historyOptions(cmd)
		if err != nil {
			return err
		}
		return cli.ListHistory(opts)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the report of a previous run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := historyOptions(cmd)
		if err != nil {
			return err
		}
		var id int64
		if len(args) == 1 {
			if id, err = parseRunID(args[0]); err != nil {
				return err
			}
		}
		return cli.ShowRun(opts, id)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a previous run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := historyOptions(cmd)
		if err != nil {
			return err
		}
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return cli.DeleteRun(opts, id)
	},
}

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run a TCP echo server to benchmark against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(cmd.ErrOrStderr(), flagLogLevel)
		if err != nil {
			return err
		}
		server := echo.NewServer(echo.Options{
			CloseAfter: flagEchoCloseAfter,
			Delay:      flagEchoDelay,
		}, logger)
		return server.ListenAndServe(cmd.Context(), flagEchoListen)
	},
}

// Flags for root command
var (
	flagLogLevel    string
	flagDialTimeout time.Duration
	flagIOTimeout   time.Duration
	flagDBPath      string
	flagNoHistory   bool
)

// Flags for history
var (
	flagOutput       string
	flagHistoryLimit int
	flagAssumeYes    bool
)

// Flags for echo
var (
	flagEchoListen     string
	flagEchoCloseAfter int
	flagEchoDelay      time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug/info/error)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Run history database (default ~/.proxybench/proxybench.db)")
	rootCmd.Flags().DurationVar(&flagDialTimeout, "dial-timeout", stresstest.TCPDialTimeout, "Timeout for establishing each connection")
	rootCmd.Flags().DurationVar(&flagIOTimeout, "io-timeout", 0, "Deadline for each write and read, 0 disables it")
	rootCmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record the run")

	historyCmd.Flags().StringVarP(&flagOutput, "output", "o", cli.FormatTable, "List format (table/json/yaml)")
	historyCmd.PersistentFlags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum number of runs to list, 0 for all")
	historyDeleteCmd.Flags().BoolVarP(&flagAssumeYes, "yes", "y", false, "Do not ask for confirmation")

	echoCmd.Flags().StringVarP(&flagEchoListen, "listen", "l", "127.0.0.1:9000", "Address to listen on")
	echoCmd.Flags().IntVar(&flagEchoCloseAfter, "close-after", 0, "Close each connection after this many echoes, 0 means never")
	echoCmd.Flags().DurationVar(&flagEchoDelay, "delay", 0, "Delay before each echo")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(echoCmd)
}

// historyOptions initializes the config directory unless --db is given
func historyOptions(cmd *cobra.Command) (cli.HistoryOptions, error) {
	if flagDBPath == "" {
		if err := config.Initialize(); err != nil {
			return cli.HistoryOptions{}, fmt.Errorf("failed to initialize config: %w", err)
		}
	}
	return cli.HistoryOptions{
		DBPath:       flagDBPath,
		Limit:        flagHistoryLimit,
		OutputFormat: flagOutput,
		AssumeYes:    flagAssumeYes,
		Stdin:        cmd.InOrStdin(),
		Stdout:       cmd.OutOrStdout(),
	}, nil
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id: %s", s)
	}
	return id, nil
}
