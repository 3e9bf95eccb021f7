package service

import (
	"context"
	"time"
)

// RunSessionExpiryMonitor drops idle navigator sessions until ctx is done.
func (s *Service) RunSessionExpiryMonitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepIdleSessions(now)
		}
	}
}

func (s *Service) sweepIdleSessions(now time.Time) int {
	if s.config == nil || s.config.SessionIdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.config.SessionIdleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			s.infof("navigator session %s expired (run %s)", id, sess.runID)
			dropped++
		}
	}
	return dropped
}
