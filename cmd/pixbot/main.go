package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/pixbot/internal/activity"
	"github.com/stellarlinkco/pixbot/internal/burn"
	"github.com/stellarlinkco/pixbot/internal/config"
	"github.com/stellarlinkco/pixbot/internal/gateway"
)

// Checker probes the upstream services (allows mocking in tests)
type Checker interface {
	TestIndexer(ctx context.Context) bool
	TestContract(ctx context.Context) bool
}

type upstreamChecker struct {
	indexer *activity.Client
	tracker *burn.Tracker
}

func (c *upstreamChecker) TestIndexer(ctx context.Context) bool {
	return c.indexer.TestConnection(ctx)
}

func (c *upstreamChecker) TestContract(ctx context.Context) bool {
	return c.tracker.TestConnectivity(ctx)
}

// CheckerFactory creates a Checker from configuration
type CheckerFactory func(cfg *config.Config) Checker

// DefaultCheckerFactory talks to the configured indexer and RPC endpoints
func DefaultCheckerFactory(cfg *config.Config) Checker {
	supply := burn.NewRPCSupplyReader(cfg.Seed.ContractAddress, cfg.Seed.RPCEndpoints(), cfg.Seed.RPCMaxTries, nil)
	return &upstreamChecker{
		indexer: activity.NewClient(cfg.Indexer.URL, nil),
		tracker: burn.NewTracker(supply, cfg.Seed.TotalSupply),
	}
}

var rootCmd = &cobra.Command{
	Use:           "pixbot",
	Short:         "pixbot - Pixotchi activity and SEED burn reports for Telegram",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (telegram + both report schedulers)",
	RunE:  runBot,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test indexer and SEED contract connectivity",
	RunE:  runCheck,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show effective configuration",
	RunE:  runStatus,
}

var timeoutFlag time.Duration

func init() {
	checkCmd.Flags().DurationVarP(&timeoutFlag, "timeout", "t", 30*time.Second, "Overall timeout for the connectivity checks")
	rootCmd.AddCommand(runCmd, checkCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging points the global logger at w using the named level,
// falling back to info for unknown levels.
func setupLogging(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel, os.Stderr)

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel, os.Stderr)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return checkWithOptions(ctx, cfg, DefaultCheckerFactory, cmd.OutOrStdout())
}

// checkWithOptions runs both probes and prints the outcome. It returns an
// error when either probe fails so the exit status reflects it.
func checkWithOptions(ctx context.Context, cfg *config.Config, factory CheckerFactory, out io.Writer) error {
	c := factory(cfg)

	indexer := c.TestIndexer(ctx)
	contract := c.TestContract(ctx)

	fmt.Fprintf(out, "Indexer (%s): %s\n", cfg.Indexer.URL, okLabel(indexer))
	fmt.Fprintf(out, "SEED contract (%s): %s\n", cfg.Seed.ContractAddress, okLabel(contract))

	if !indexer || !contract {
		return fmt.Errorf("connectivity check failed")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Config: error (%v)\n", err)
		return nil
	}
	printStatus(cfg, cmd.OutOrStdout())
	return nil
}

func printStatus(cfg *config.Config, out io.Writer) {
	fmt.Fprintf(out, "Telegram token: %s\n", config.MaskSecret(cfg.Telegram.Token))
	if cfg.Telegram.Proxy != "" {
		fmt.Fprintf(out, "Telegram proxy: %s\n", cfg.Telegram.Proxy)
	}
	fmt.Fprintf(out, "Target chat: %d\n", cfg.Telegram.TargetChatID)
	fmt.Fprintf(out, "Admins: %s\n", joinIDs(cfg.Telegram.Admins))
	fmt.Fprintf(out, "Activity interval: %dm\n", cfg.Reports.ActivityIntervalMinutes)
	fmt.Fprintf(out, "SEED burn interval: %dm\n", cfg.Reports.BurnIntervalMinutes)
	fmt.Fprintf(out, "Indexer: %s\n", cfg.Indexer.URL)
	fmt.Fprintf(out, "SEED contract: %s\n", cfg.Seed.ContractAddress)
	fmt.Fprintf(out, "RPC endpoints: %s\n", strings.Join(cfg.Seed.RPCEndpoints(), ", "))
	if cfg.HTTPAddr != "" {
		fmt.Fprintf(out, "Status API: %s\n", cfg.HTTPAddr)
	} else {
		fmt.Fprintln(out, "Status API: disabled")
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}
