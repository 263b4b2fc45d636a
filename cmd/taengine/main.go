/*
main.go - Application entry point

PURPOSE:
  The taengine command runs the TA allocation engine: the HTTP API, payroll
  exports from the command line, and the version banner.

COMMANDS:
  serve                    Start the HTTP API
  export payroll <posting> Write the next payroll batch CSV
  export report <posting>  Write the allocation workbook
  seed <scenario>...       Load demo postings, offerings and contracts
  version                  Print the version

CONFIGURATION:
  --config points at a YAML file; otherwise ./config/config.yaml or
  ./config.yaml is used when present. TAENGINE_* environment variables
  override both (TAENGINE_DB_PATH, TAENGINE_SERVER_PORT, TAENGINE_LOG_LEVEL).

SEE ALSO:
  - config/config.go: Keys and defaults
  - serve.go: Server startup and graceful shutdown
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/config"
	"github.com/warp/ta-engine/engine"
	"github.com/warp/ta-engine/logger"
	"github.com/warp/ta-engine/notify"
	"github.com/warp/ta-engine/store/sqlite"
)

var (
	cfgFile string
	version = "dev"

	// Set by initConfig before any subcommand runs.
	cfg *config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:               "taengine",
		Short:             "TA base-unit allocation and contract compensation engine",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path, overrides db.path (\":memory:\" for in-memory)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DB.Path = db
	}

	log, err = logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

// openService opens the store and wires the contract service with the
// log-backed notifier and document generator.
func openService() (*sqlite.Store, *engine.ContractService, error) {
	store, err := sqlite.New(cfg.DB.Path, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	service := engine.NewContractService(store, notify.NewLogNotifier(log), notify.NewLogDocuments(log), log)
	service.OfferURL = func(id engine.ContractID) string {
		return cfg.Server.BaseURL + "/offers/" + string(id)
	}
	return store, service, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taengine %s\n", version)
		},
	}
}
