// Package monitor periodically writes a status snapshot of a running
// session: recorder counters, storage backlog and metric totals.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fpsframework/firearm/internal/dispatcher"
	"github.com/fpsframework/firearm/internal/recorder"
	"github.com/fpsframework/firearm/pkg/core"
)

const defaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger  *slog.Logger
	Session func() *core.Session
	Stats   func() recorder.Stats
	// Pending reports rows waiting for a database write. Optional.
	Pending func() int
	// Topics reports dispatcher outcomes per topic. Optional.
	Topics func() map[string]dispatcher.TopicStats
	// Metrics returns metric totals. Optional.
	Metrics func() map[string]float64

	StatusPath string
	Interval   time.Duration
}

// Status is one snapshot.
type Status struct {
	Time     time.Time                        `json:"time"`
	Session  string                           `json:"session"`
	Stats    recorder.Stats                   `json:"stats"`
	Pending  int                              `json:"pendingWrites"`
	Accuracy float64                          `json:"accuracy"`
	Topics   map[string]dispatcher.TopicStats `json:"topics,omitempty"`
	Metrics  map[string]float64               `json:"metrics,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	log       *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps: deps,
		log:  logger.With("component", "monitor"),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus builds a snapshot from the dependencies.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now().UTC()}
	if s.deps.Session != nil {
		if sess := s.deps.Session(); sess != nil {
			st.Session = sess.Name
		}
	}
	if s.deps.Stats != nil {
		st.Stats = s.deps.Stats()
		if st.Stats.Shots > 0 {
			st.Accuracy = float64(st.Stats.Hits) / float64(st.Stats.Shots)
		}
	}
	if s.deps.Pending != nil {
		st.Pending = s.deps.Pending()
	}
	if s.deps.Topics != nil {
		st.Topics = s.deps.Topics()
	}
	if s.deps.Metrics != nil {
		st.Metrics = s.deps.Metrics()
	}
	return st
}

// WriteStatus writes the current snapshot to StatusPath, replacing the
// previous one.
func (s *Service) WriteStatus() error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusPath), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.log.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				s.log.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and writes a final snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	if err := s.WriteStatus(); err != nil {
		s.log.Error("Error writing final status file", "error", err)
	}
}
