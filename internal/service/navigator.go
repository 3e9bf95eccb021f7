package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/traceview/internal/navigator"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

// session is a navigator owned by the service. The mutex serializes
// requests for the same session.
type session struct {
	mu       sync.Mutex
	runID    string
	nav      *navigator.Navigator
	lastUsed time.Time
}

// NavigatorView is the view of one navigator session.
type NavigatorView struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	navigator.View
}

// NewNavigator builds a navigator over the current tree of a run. The
// caller owns it exclusively.
func (s *Service) NewNavigator(ctx context.Context, runID string) (*navigator.Navigator, error) {
	roots, err := s.BuildTree(ctx, runID)
	if err != nil {
		return nil, err
	}
	return navigator.New(roots), nil
}

// OpenNavigator starts a navigator session for a run.
func (s *Service) OpenNavigator(ctx context.Context, runID string) (*NavigatorView, error) {
	nav, err := s.NewNavigator(ctx, runID)
	if err != nil {
		return nil, err
	}
	sess := &session{runID: runID, nav: nav, lastUsed: time.Now()}
	id := "nav_" + uuid.New().String()[:8]

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return &NavigatorView{SessionID: id, RunID: runID, View: nav.View()}, nil
}

// GetNavigator returns the current view of a session.
func (s *Service) GetNavigator(sessionID string) (*NavigatorView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &NavigatorView{SessionID: sessionID, RunID: sess.runID, View: sess.nav.View()}, nil
}

// ApplyNavigator runs one action on a session.
func (s *Service) ApplyNavigator(sessionID string, cmd navigator.Command) (*NavigatorView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.nav.Apply(cmd) {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, cmd.Action)
	}
	return &NavigatorView{SessionID: sessionID, RunID: sess.runID, View: sess.nav.View()}, nil
}

// ReloadNavigator rebuilds the session's tree from the store, optionally
// switching to another run. Expansion is reseeded and focus cleared.
func (s *Service) ReloadNavigator(ctx context.Context, sessionID, runID string) (*NavigatorView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if runID == "" {
		runID = sess.runID
	}
	roots, err := s.BuildTree(ctx, runID)
	if err != nil {
		return nil, err
	}
	sess.runID = runID
	sess.nav.Reset(roots)
	return &NavigatorView{SessionID: sessionID, RunID: runID, View: sess.nav.View()}, nil
}

// CloseNavigator drops a session.
func (s *Service) CloseNavigator(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Service) session(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.lastUsed = time.Now()
	return sess, nil
}

// BuildTree rebuilds the execution tree of a run.
func (s *Service) BuildTree(ctx context.Context, runID string) ([]*tree.Node, error) {
	trace, err := s.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}
	return tree.Build(*trace), nil
}
