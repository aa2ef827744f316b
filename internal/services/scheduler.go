package services

import (
	"strings"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/metrics"
)

// Scheduler runs delayed tasks that can be cancelled by key. Several tasks may
// share a key; cancelling the key cancels all of them.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	Cancel(key string)
	// CancelPrefix cancels every task whose key starts with prefix.
	CancelPrefix(prefix string)
	CancelAll()
}

type timerEntry struct {
	id    uint64
	timer *time.Timer
}

// TimerScheduler backs Scheduler with time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	nextID uint64
	tasks  map[string][]timerEntry
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{tasks: make(map[string][]timerEntry)}
}

func (s *TimerScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	t := time.AfterFunc(delay, func() {
		if !s.take(key, id) {
			return
		}
		fn()
	})
	s.tasks[key] = append(s.tasks[key], timerEntry{id: id, timer: t})
}

// take removes the entry and reports whether it was still live.
func (s *TimerScheduler) take(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.tasks[key]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(s.tasks, key)
		} else {
			s.tasks[key] = entries
		}
		return true
	}
	return false
}

func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(key)
}

func (s *TimerScheduler) CancelPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			s.stopLocked(key)
		}
	}
}

func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.tasks {
		s.stopLocked(key)
	}
}

func (s *TimerScheduler) stopLocked(key string) {
	for _, e := range s.tasks[key] {
		if e.timer.Stop() {
			metrics.CancelledTransitions.Inc()
		}
	}
	delete(s.tasks, key)
}

// Pending returns the number of tasks not yet fired or cancelled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entries := range s.tasks {
		n += len(entries)
	}
	return n
}
