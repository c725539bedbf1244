package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/studiowebux/checkoutload/internal/cli"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "checkoutload",
	Short: "Checkout load runner for bookstore style shops",
	Long: `checkoutload drives virtual users through the add to cart then place order
flow of a shop and reports check pass rates and iteration latency.

Two protocol shapes are supported:
  form   POST /buy then POST /orders, session in the SESSION cookie
  rest   POST /api/cart/items then POST /api/orders, session in BOOKSTORE_SESSION

Examples:
  checkoutload run                                   # 10 VUs for 30s against http://localhost:8080
  checkoutload run --shape rest --vus 50 -d 2m       # REST API shape
  BASE_URL=http://shop:8080 checkoutload run         # Target from environment
  checkoutload run -c scenario.yaml --iterations 500 # Scenario file with a fixed budget
  checkoutload runs                                  # List persisted runs
  checkoutload show 3                                # Summary of run 3`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfig      string
	flagBaseURL     string
	flagShape       string
	flagVUs         int
	flagDuration    string
	flagIterations  int
	flagSeed        uint64
	flagDB          string
	flagNoStore     bool
	flagMetricsAddr string
	flagLogLevel    string
	flagLogFormat   string
	flagQuiet       bool
	flagLimit       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a checkout load test",
	Args:  cobra.NoArgs,
	RunE:  runLoadTest,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted load test runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(cli.ListOptions{DBPath: flagDB, Limit: flagLimit, Out: cmd.OutOrStdout()})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the summary of a persisted run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Errorf("invalid run id %q", args[0])
		}
		return cli.ShowRun(cli.ShowOptions{DBPath: flagDB, ID: id, Out: cmd.OutOrStdout()})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default ~/.checkoutload/checkoutload.db)")

	runCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Scenario file (.yaml, .toml, .json, .jsonc)")
	runCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Target base URL (overrides BASE_URL)")
	runCmd.Flags().StringVar(&flagShape, "shape", "", "Protocol shape (form/rest)")
	runCmd.Flags().IntVar(&flagVUs, "vus", 0, "Number of virtual users")
	runCmd.Flags().StringVarP(&flagDuration, "duration", "d", "", "Run duration (e.g. 30s, 2m)")
	runCmd.Flags().IntVarP(&flagIterations, "iterations", "n", 0, "Total iterations shared by all virtual users (0 = unbounded)")
	runCmd.Flags().Uint64Var(&flagSeed, "seed", 0, "Seed for product selection (0 = time based)")
	runCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "Do not persist the run")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	runCmd.Flags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text/json)")
	runCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Do not print live progress")

	runsCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum number of runs to list (0 = all)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	logger, err := cli.NewLogger(flagLogLevel, flagLogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := cli.RunOptions{
		ConfigPath:  flagConfig,
		DBPath:      flagDB,
		NoStore:     flagNoStore,
		MetricsAddr: flagMetricsAddr,
		Quiet:       flagQuiet,
		Logger:      logger,
		Out:         cmd.OutOrStdout(),
		Err:         cmd.ErrOrStderr(),
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		opts.BaseURL = &flagBaseURL
	}
	if flags.Changed("shape") {
		opts.Shape = &flagShape
	}
	if flags.Changed("vus") {
		opts.VUs = &flagVUs
	}
	if flags.Changed("duration") {
		d, err := parseDuration(flagDuration)
		if err != nil {
			return err
		}
		opts.Duration = &d
	}
	if flags.Changed("iterations") {
		opts.Iterations = &flagIterations
	}
	if flags.Changed("seed") {
		opts.Seed = &flagSeed
	}

	_, err = cli.Run(context.Background(), opts)
	return err
}
