package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/ingest"
)

// RecordEvents stores raw events for a span. Missing event ids are
// generated, and events without a status are classified by the status
// policy. Unknown kinds are stored as given and read back as other events.
// An event id that is already stored rejects the whole batch.
func (s *Service) RecordEvents(ctx context.Context, runID string, req domain.RecordEventsRequest) (*domain.RecordEventsResponse, error) {
	events, err := s.prepareEvents(ctx, runID, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateEvents(ctx, runID, req.SpanID, events); err != nil {
		return nil, storeError("record events", err)
	}

	resp := &domain.RecordEventsResponse{EventIDs: make([]string, 0, len(events))}
	for _, ev := range events {
		resp.EventIDs = append(resp.EventIDs, ev.EventID)
	}
	return resp, nil
}

// ImportRunEvents normalizes orchestrator run events and records them.
// Events already imported are skipped, so importing a run again only adds
// what is new.
func (s *Service) ImportRunEvents(ctx context.Context, runID string, req domain.ImportEventsRequest) (*domain.RecordEventsResponse, error) {
	events, err := s.prepareEvents(ctx, runID, domain.RecordEventsRequest{
		SpanID: req.SpanID,
		Events: ingest.Normalize(req.Events),
	})
	if err != nil {
		return nil, err
	}

	inserted, err := s.store.CreateEventsIfAbsent(ctx, runID, req.SpanID, events)
	if err != nil {
		return nil, storeError("import events", err)
	}
	return &domain.RecordEventsResponse{
		EventIDs: inserted,
		Skipped:  len(events) - len(inserted),
	}, nil
}

func (s *Service) prepareEvents(ctx context.Context, runID string, req domain.RecordEventsRequest) ([]domain.RawEvent, error) {
	if req.SpanID == "" {
		return nil, fmt.Errorf("%w: span_id is required", ErrInvalidRequest)
	}
	if _, err := s.getSpan(ctx, runID, req.SpanID); err != nil {
		return nil, err
	}

	events := make([]domain.RawEvent, len(req.Events))
	for i, ev := range req.Events {
		if ev.EventID == "" {
			ev.EventID = "evt_" + uuid.New().String()[:8]
		}
		if ev.Kind == "" {
			ev.Kind = domain.EventKindOther
		}
		if !ev.Status.Valid() {
			log.Printf("WARN: event %s has unknown status %q, clearing it", ev.EventID, ev.Status)
			ev.Status = domain.StatusUnspecified
		}
		if s.policyEngine != nil {
			status, err := s.policyEngine.Classify(ctx, ev)
			if err != nil {
				log.Printf("WARN: failed to classify event %s: %v", ev.EventID, err)
			} else {
				ev.Status = status
			}
		}
		events[i] = ev
	}
	return events, nil
}

// GetRunEvents returns the stored raw events of a run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, kinds []string, limit int) ([]domain.RawEvent, error) {
	events, err := s.store.GetEvents(ctx, runID, afterTs, kinds, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}
