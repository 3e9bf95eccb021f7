package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/traceview/internal/config"
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/navigator"
	"github.com/xiaot623/gogo/traceview/internal/tree"
	"github.com/xiaot623/gogo/traceview/policy"
	"github.com/xiaot623/gogo/traceview/tests/helpers"
)

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	if cfg == nil {
		cfg = config.Default()
	}
	return New(helpers.NewTestSQLiteStore(t), cfg, engine)
}

// seedFailingRun records one model call whose tool call failed, followed by
// an unrelated event.
func seedFailingRun(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)
	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{SpanID: "s1", Name: "agent", StartedAt: 1})
	require.NoError(t, err)

	_, err = svc.RecordEvents(ctx, "r1", domain.RecordEventsRequest{
		SpanID: "s1",
		Events: []domain.RawEvent{
			{EventID: "m1", Kind: domain.EventKindModelCallBegin, Timestamp: 10, CorrelationID: "c1"},
			{EventID: "t1", Kind: domain.EventKindToolCall, Timestamp: 20, CorrelationID: "c1", Payload: json.RawMessage(`{"error":"boom"}`)},
			{EventID: "m1e", Kind: domain.EventKindModelCallEnd, Timestamp: 30, CorrelationID: "c1"},
			{EventID: "o1", Kind: "artifact", Timestamp: 40},
		},
	})
	require.NoError(t, err)
}

func rowIDs(rows []navigator.VisibleRow) []tree.NodeID {
	ids := make([]tree.NodeID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	run, err := svc.CreateRun(ctx, domain.CreateRunRequest{})
	require.NoError(t, err)
	assert.Contains(t, run.RunID, "run_")
	assert.Equal(t, domain.TraceStatusRunning, run.Status)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{RunID: run.RunID})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := svc.UpdateRunStatus(ctx, run.RunID, domain.UpdateRunRequest{Status: "error"})
	require.NoError(t, err)
	assert.Equal(t, domain.TraceStatusError, updated.Status)
	assert.NotNil(t, updated.EndedAt)

	_, err = svc.UpdateRunStatus(ctx, "missing", domain.UpdateRunRequest{Status: "error"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCreateSpanValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.CreateSpan(ctx, "missing", domain.CreateSpanRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)

	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{Name: "x", Status: "weird"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{Name: "x", ParentSpanID: "nope"})
	assert.ErrorIs(t, err, ErrSpanNotFound)

	span, err := svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{Name: "root"})
	require.NoError(t, err)
	assert.Contains(t, span.SpanID, "span_")

	_, err = svc.RecordEvents(ctx, "r1", domain.RecordEventsRequest{SpanID: "nope"})
	assert.ErrorIs(t, err, ErrSpanNotFound)
}

func TestRecordEventsClassifiesStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	seedFailingRun(t, svc)

	events, err := svc.GetRunEvents(ctx, "r1", 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	byID := make(map[string]domain.RawEvent)
	for _, ev := range events {
		byID[ev.EventID] = ev
	}
	assert.Equal(t, domain.StatusUnspecified, byID["m1"].Status)
	assert.Equal(t, domain.StatusError, byID["t1"].Status)
	assert.Equal(t, domain.StatusSuccess, byID["m1e"].Status)
	assert.Equal(t, domain.EventKind("artifact"), byID["o1"].Kind)
}

func TestRecordEventsGeneratesIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)
	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{SpanID: "s1", Name: "agent"})
	require.NoError(t, err)

	resp, err := svc.RecordEvents(ctx, "r1", domain.RecordEventsRequest{
		SpanID: "s1",
		Events: []domain.RawEvent{{Timestamp: 1, Status: "bogus"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.EventIDs, 1)
	assert.Contains(t, resp.EventIDs[0], "evt_")

	events, err := svc.GetRunEvents(ctx, "r1", 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventKindOther, events[0].Kind)
	assert.Equal(t, domain.StatusUnspecified, events[0].Status)
}

func TestGetTraceView(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	seedFailingRun(t, svc)

	view, err := svc.GetTraceView(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, view.Roots, 1)

	span := view.Roots[0]
	assert.Equal(t, tree.NodeID("span:s1"), span.ID)
	require.Len(t, span.Children, 2)
	assert.Equal(t, tree.NodeID("m1"), span.Children[0].ID)
	assert.Equal(t, tree.NodeID("o1"), span.Children[1].ID)
	assert.Equal(t, domain.StatusSuccess, span.Children[0].Status)

	assert.Equal(t, []tree.NodeID{"m1", "span:s1", "t1"}, view.ErrorPath.Sorted())
	assert.Equal(t, tree.NodeID("t1"), view.FirstError)

	_, err = svc.GetTraceView(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetTraceTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.MaxEventsPerRun = 2
	svc := newTestService(t, cfg)
	seedFailingRun(t, svc)

	_, err := svc.GetTrace(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrTraceTooLarge)
}

func TestImportRunEvents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)
	_, err = svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{SpanID: "s1", Name: "agent"})
	require.NoError(t, err)

	_, err = svc.ImportRunEvents(ctx, "r1", domain.ImportEventsRequest{
		SpanID: "s1",
		Events: []domain.RunEvent{
			{EventID: "e1", RunID: "r1", Ts: 1, Type: "llm_call_started", Payload: json.RawMessage(`{"request_id":"req1"}`)},
			{EventID: "e2", RunID: "r1", Ts: 2, Type: "tool_result", Payload: json.RawMessage(`{"llm_request_id":"req1","status":"FAILED"}`)},
			{EventID: "e3", RunID: "r1", Ts: 3, Type: "llm_call_done", Payload: json.RawMessage(`{"request_id":"req1"}`)},
		},
	})
	require.NoError(t, err)

	view, err := svc.GetTraceView(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, view.Roots[0].Children, 1)

	call := view.Roots[0].Children[0]
	assert.Equal(t, tree.KindModelCall, call.Kind)
	assert.Equal(t, "model call #1", call.Label)
	require.Len(t, call.Children, 1)
	assert.Equal(t, tree.NodeID("e2"), call.Children[0].ID)
	assert.Equal(t, tree.NodeID("e2"), view.FirstError)
}

func TestDuplicateIDsConflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	seedFailingRun(t, svc)

	_, err := svc.CreateSpan(ctx, "r1", domain.CreateSpanRequest{SpanID: "s1", Name: "again"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.RecordEvents(ctx, "r1", domain.RecordEventsRequest{
		SpanID: "s1",
		Events: []domain.RawEvent{
			{EventID: "fresh", Kind: domain.EventKindOther, Timestamp: 50},
			{EventID: "t1", Kind: domain.EventKindToolCall, Timestamp: 60},
		},
	})
	assert.ErrorIs(t, err, ErrConflict)

	events, err := svc.GetRunEvents(ctx, "r1", 0, nil, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4, "a rejected batch stores nothing")
}

func TestImportRunEventsTwice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)
	require.NoError(t, svc.EnsureSpan(ctx, "r1", "s1", "main"))

	first := []domain.RunEvent{
		{EventID: "e1", RunID: "r1", Ts: 1, Type: "llm_call_started", Payload: json.RawMessage(`{"request_id":"req1"}`)},
		{EventID: "e2", RunID: "r1", Ts: 2, Type: "llm_call_done", Payload: json.RawMessage(`{"request_id":"req1"}`)},
	}
	resp, err := svc.ImportRunEvents(ctx, "r1", domain.ImportEventsRequest{SpanID: "s1", Events: first})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, resp.EventIDs)
	assert.Zero(t, resp.Skipped)

	grown := append(first, domain.RunEvent{EventID: "e3", RunID: "r1", Ts: 3, Type: "run_completed"})
	resp, err = svc.ImportRunEvents(ctx, "r1", domain.ImportEventsRequest{SpanID: "s1", Events: grown})
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, resp.EventIDs)
	assert.Equal(t, 2, resp.Skipped)

	events, err := svc.GetRunEvents(ctx, "r1", 0, nil, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestNavigatorSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	seedFailingRun(t, svc)

	opened, err := svc.OpenNavigator(ctx, "r1")
	require.NoError(t, err)
	assert.Contains(t, opened.SessionID, "nav_")
	assert.Equal(t, []tree.NodeID{"m1", "span:s1"}, opened.Expanded)
	assert.Equal(t, []tree.NodeID{"span:s1", "m1", "t1", "o1"}, rowIDs(opened.Rows))

	view, err := svc.ApplyNavigator(opened.SessionID, navigator.Command{Action: navigator.ActionNext})
	require.NoError(t, err)
	assert.Equal(t, tree.NodeID("span:s1"), view.Focused)

	view, err = svc.ApplyNavigator(opened.SessionID, navigator.Command{Action: navigator.ActionJumpToError})
	require.NoError(t, err)
	assert.Equal(t, tree.NodeID("t1"), view.Focused)

	view, err = svc.ApplyNavigator(opened.SessionID, navigator.Command{Action: navigator.ActionToggle, NodeID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, tree.NodeID("m1"), view.Focused)
	assert.Equal(t, []tree.NodeID{"span:s1", "m1", "o1"}, rowIDs(view.Rows))

	_, err = svc.ApplyNavigator(opened.SessionID, navigator.Command{Action: "fly"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	got, err := svc.GetNavigator(opened.SessionID)
	require.NoError(t, err)
	assert.Equal(t, view.State, got.State)

	require.NoError(t, svc.CloseNavigator(opened.SessionID))
	_, err = svc.GetNavigator(opened.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.CloseNavigator(opened.SessionID), ErrSessionNotFound)
}

func TestReloadNavigator(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	seedFailingRun(t, svc)

	opened, err := svc.OpenNavigator(ctx, "r1")
	require.NoError(t, err)
	_, err = svc.ApplyNavigator(opened.SessionID, navigator.Command{Action: navigator.ActionExpandAll})
	require.NoError(t, err)

	_, err = svc.RecordEvents(ctx, "r1", domain.RecordEventsRequest{
		SpanID: "s1",
		Events: []domain.RawEvent{{EventID: "o2", Kind: domain.EventKindOther, Timestamp: 50}},
	})
	require.NoError(t, err)

	view, err := svc.ReloadNavigator(ctx, opened.SessionID, "")
	require.NoError(t, err)
	assert.Equal(t, "r1", view.RunID)
	assert.Empty(t, view.Focused)
	assert.Equal(t, []tree.NodeID{"m1", "span:s1"}, view.Expanded)
	assert.Equal(t, []tree.NodeID{"span:s1", "m1", "t1", "o1", "o2"}, rowIDs(view.Rows))

	_, err = svc.ReloadNavigator(ctx, opened.SessionID, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSweepIdleSessions(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SessionIdleTimeout = 50 * time.Millisecond
	svc := newTestService(t, cfg)
	seedFailingRun(t, svc)

	opened, err := svc.OpenNavigator(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.sweepIdleSessions(time.Now()))
	assert.Equal(t, 1, svc.sweepIdleSessions(time.Now().Add(time.Second)))

	_, err = svc.GetNavigator(opened.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepIdleSessionsHonorsLogLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	for _, level := range []string{"info", "warn"} {
		buf.Reset()
		cfg := config.Default()
		cfg.LogLevel = level
		cfg.SessionIdleTimeout = time.Millisecond
		svc := newTestService(t, cfg)
		seedFailingRun(t, svc)

		_, err := svc.OpenNavigator(context.Background(), "r1")
		require.NoError(t, err)
		require.Equal(t, 1, svc.sweepIdleSessions(time.Now().Add(time.Second)))

		if level == "info" {
			assert.Contains(t, buf.String(), "INFO: navigator session")
		} else {
			assert.NotContains(t, buf.String(), "INFO:")
		}
	}
}

func TestEnsureSpan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.CreateRun(ctx, domain.CreateRunRequest{RunID: "r1"})
	require.NoError(t, err)

	require.NoError(t, svc.EnsureSpan(ctx, "r1", "r1-main", "main"))
	require.NoError(t, svc.EnsureSpan(ctx, "r1", "r1-main", "main"))

	trace, err := svc.GetTrace(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, trace.Spans, 1)
	assert.Equal(t, "main", trace.Spans[0].Name)

	assert.ErrorIs(t, svc.EnsureSpan(ctx, "missing", "missing-main", "main"), ErrRunNotFound)
}
