package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/traceview/internal/adapter/orchestrator"
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/service"
)

var (
	importSpanID string
	importFrom   string
)

var treeCmd = &cobra.Command{
	Use:   "tree <run_id>",
	Short: "Print the reconstructed execution tree of a run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

var importCmd = &cobra.Command{
	Use:   "import <run_id> [events.json]",
	Short: "Import orchestrator run events into a span",
	Long: `Import orchestrator run events into one span of a run, either from a JSON
array in a file or straight from a running orchestrator with --from.

The run and span are created when they do not exist yet. Events that were
imported before are skipped, so a run can be imported again as it grows.

Examples:
  traceview import run_1 events.json
  traceview import run_1 --from http://localhost:8080`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importSpanID, "span", "", "Span to import the events into (default <run_id>-main)")
	importCmd.Flags().StringVar(&importFrom, "from", "", "Orchestrator base URL to fetch the events from")

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(importCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, closeStore, err := newService(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer closeStore()

	view, err := svc.GetTraceView(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := args[0]
	events, err := loadRunEvents(ctx, runID, args[1:])
	if err != nil {
		return err
	}

	svc, closeStore, err := newService(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = svc.GetRun(ctx, runID)
	if errors.Is(err, service.ErrRunNotFound) {
		_, err = svc.CreateRun(ctx, domain.CreateRunRequest{RunID: runID})
	}
	if err != nil {
		return err
	}
	spanID := importSpanID
	if spanID == "" {
		spanID = runID + "-main"
	}
	if err := svc.EnsureSpan(ctx, runID, spanID, "main"); err != nil {
		return err
	}

	resp, err := svc.ImportRunEvents(ctx, runID, domain.ImportEventsRequest{SpanID: spanID, Events: events})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d events into span %s of run %s, skipped %d already imported\n",
		len(resp.EventIDs), spanID, runID, resp.Skipped)
	return nil
}

func loadRunEvents(ctx context.Context, runID string, args []string) ([]domain.RunEvent, error) {
	if importFrom != "" {
		return orchestrator.NewClient(importFrom, 30*time.Second).GetRunEvents(ctx, runID)
	}
	if len(args) == 0 {
		return nil, errors.New("either an events file or --from is required")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	var events []domain.RunEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events %s: %w", args[0], err)
	}
	return events, nil
}
