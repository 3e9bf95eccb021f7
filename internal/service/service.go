package service

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/xiaot623/gogo/traceview/internal/config"
	"github.com/xiaot623/gogo/traceview/internal/repository"
	"github.com/xiaot623/gogo/traceview/policy"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrRunNotFound     = errors.New("run not found")
	ErrSpanNotFound    = errors.New("span not found")
	ErrSessionNotFound = errors.New("navigator session not found")
	ErrTraceTooLarge   = errors.New("trace too large")
	ErrConflict        = errors.New("conflict")
)

// storeError wraps a store failure, reporting taken ids as ErrConflict.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: failed to %s: %w", ErrConflict, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

type Service struct {
	store        repository.Store
	config       *config.Config
	policyEngine *policy.Engine

	mu       sync.Mutex
	sessions map[string]*session
}

func New(store repository.Store, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        store,
		config:       cfg,
		policyEngine: policyEngine,
		sessions:     make(map[string]*session),
	}
}

// infof logs an INFO line unless the configured level is above info.
func (s *Service) infof(format string, args ...interface{}) {
	if s.config != nil && !s.config.InfoEnabled() {
		return
	}
	log.Printf("INFO: "+format, args...)
}
