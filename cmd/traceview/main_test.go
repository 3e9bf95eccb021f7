package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/traceview/internal/service"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

func TestImportThenTree(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACEVIEW_CONFIG", "")
	t.Setenv("STATUS_POLICY_FILE", "")

	eventsPath := filepath.Join(dir, "events.json")
	events := `[
		{"event_id":"e1","run_id":"r1","ts":1,"type":"llm_call_started","payload":{"request_id":"q1"}},
		{"event_id":"e2","run_id":"r1","ts":2,"type":"tool_result","payload":{"llm_request_id":"q1","status":"FAILED"}},
		{"event_id":"e3","run_id":"r1","ts":3,"type":"llm_call_done","payload":{"request_id":"q1"}}
	]`
	require.NoError(t, os.WriteFile(eventsPath, []byte(events), 0o644))
	db := filepath.Join(dir, "traceview.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"import", "r1", eventsPath, "--db", db})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "imported 3 events into span r1-main of run r1, skipped 0")

	out.Reset()
	rootCmd.SetArgs([]string{"import", "r1", eventsPath, "--db", db})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "imported 0 events into span r1-main of run r1, skipped 3")

	out.Reset()
	rootCmd.SetArgs([]string{"tree", "r1", "--db", db})
	require.NoError(t, rootCmd.Execute())

	var view service.TraceView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	require.Len(t, view.Roots, 1)
	assert.Equal(t, tree.NodeID("span:r1-main"), view.Roots[0].ID)
	assert.Equal(t, tree.NodeID("e2"), view.FirstError)

	rootCmd.SetArgs([]string{"tree", "missing", "--db", db})
	assert.Error(t, rootCmd.Execute())
}
