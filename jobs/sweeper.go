package jobs

import (
	"log"
	"sync"
	"time"
)

// Sweeper runs a cleanup function on a fixed interval until stopped.
type Sweeper struct {
	name     string
	interval time.Duration
	sweep    func() int
	stopChan chan struct{}
	doneChan chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewSweeper creates a sweeper. sweep returns how many entries it removed.
func NewSweeper(name string, interval time.Duration, sweep func() int) *Sweeper {
	return &Sweeper{
		name:     name,
		interval: interval,
		sweep:    sweep,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. Calls after the first, or after Stop, do nothing.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.run()
	log.Printf("jobs: %s sweeper started (every %v)", s.name, s.interval)
}

// Stop ends the loop and waits for a running sweep to finish. It returns at once
// when the sweeper never started and is safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopChan)
	s.mu.Unlock()

	if started {
		<-s.doneChan
	}
	log.Printf("jobs: %s sweeper stopped", s.name)
}

func (s *Sweeper) run() {
	defer close(s.doneChan)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				log.Printf("jobs: %s sweeper removed %d entries", s.name, removed)
			}
		case <-s.stopChan:
			return
		}
	}
}
