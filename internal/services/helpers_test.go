package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/types"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type manualTask struct {
	seq       int
	key       string
	due       time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

// manualScheduler fires tasks only when the test advances its clock.
type manualScheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	seq     int
	tasks   []*manualTask
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (m *manualScheduler) Schedule(key string, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks = append(m.tasks, &manualTask{seq: m.seq, key: key, due: m.elapsed + delay, fn: fn})
}

func (m *manualScheduler) cancelWhere(match func(string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if !t.fired && match(t.key) {
			t.cancelled = true
		}
	}
}

func (m *manualScheduler) Cancel(key string) {
	m.cancelWhere(func(k string) bool { return k == key })
}

func (m *manualScheduler) CancelPrefix(prefix string) {
	m.cancelWhere(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

func (m *manualScheduler) CancelAll() {
	m.cancelWhere(func(string) bool { return true })
}

// Advance moves the clock forward by d and runs every task that became due,
// in due order.
func (m *manualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.elapsed += d
	var due []*manualTask
	for _, t := range m.tasks {
		if !t.fired && !t.cancelled && t.due <= m.elapsed {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.ChatEvent
}

func (r *recordingNotifier) Publish(_ context.Context, _ string, event types.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) Types() []types.ChatEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ChatEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingNotifier) Statuses() []types.MessageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.MessageStatus
	for _, e := range r.events {
		if e.Type == types.EventMessageStatus {
			out = append(out, e.Status)
		}
	}
	return out
}
