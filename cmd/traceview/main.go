// Command traceview stores workflow traces and serves their reconstructed
// execution trees.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/traceview/internal/config"
	"github.com/xiaot623/gogo/traceview/internal/repository"
	"github.com/xiaot623/gogo/traceview/internal/service"
	"github.com/xiaot623/gogo/traceview/policy"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	databaseURL string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "traceview",
	Short: "Reconstruct and navigate workflow execution traces",
	Long: `traceview stores the raw events of workflow runs and rebuilds them into a
navigable execution tree: model calls with the tool calls they caused,
nested spans, and the path to the first failure.

Configuration is read from TRACEVIEW_CONFIG (YAML) and the environment.`,
	Version:      fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", "", "Database DSN (overrides DATABASE_URL)")
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	return cfg
}

// newService opens the store and the status policy named by cfg.
func newService(ctx context.Context, cfg *config.Config) (*service.Service, func(), error) {
	policyContent := policy.DefaultPolicy
	if cfg.StatusPolicyFile != "" {
		data, err := os.ReadFile(cfg.StatusPolicyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read status policy: %w", err)
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.Printf("WARN: failed to close store: %v", err)
		}
	}
	return service.New(db, cfg, policyEngine), closeFn, nil
}
