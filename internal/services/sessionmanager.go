package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

// SessionManager holds one Session per user over a shared kv backend.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store        kv.Store
	notifier     Notifier
	timings      StatusTimings
	newScheduler func() Scheduler
	log          *logger.Logger
	now          func() time.Time
}

type SessionManagerConfig struct {
	Store    kv.Store
	Notifier Notifier
	Timings  StatusTimings
	// NewScheduler builds the scheduler of each new session.
	NewScheduler func() Scheduler
	Log          *logger.Logger
	Now          func() time.Time
}

func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.NewScheduler == nil {
		cfg.NewScheduler = func() Scheduler { return NewTimerScheduler() }
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	return &SessionManager{
		sessions:     make(map[string]*Session),
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		timings:      cfg.Timings,
		newScheduler: cfg.NewScheduler,
		log:          cfg.Log.With("service", "SessionManager"),
		now:          cfg.Now,
	}
}

// Get returns the ready session of the user, creating and initializing it on
// first use.
func (sm *SessionManager) Get(ctx context.Context, user types.User) (*Session, error) {
	if user.ID == "" {
		return nil, fmt.Errorf("session for anonymous user: %w", ErrSessionNotReady)
	}
	sm.mu.Lock()
	sess, ok := sm.sessions[user.ID]
	if !ok || sess.State() == StateClosed {
		sess = NewSession(SessionConfig{
			User:      user,
			Store:     kv.Namespaced(sm.store, kv.UserNamespace(user.ID)),
			Scheduler: sm.newScheduler(),
			Notifier:  sm.notifier,
			Timings:   sm.timings,
			Log:       sm.log,
			Now:       sm.now,
		})
		sm.sessions[user.ID] = sess
		metrics.ActiveSessions.Set(float64(len(sm.sessions)))
		sm.log.Debug("created session", "userID", user.ID)
	}
	sm.mu.Unlock()

	if err := sess.Init(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lookup returns the session only if it already exists.
func (sm *SessionManager) Lookup(userID string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sess, ok := sm.sessions[userID]
	return sess, ok
}

// Drop closes and forgets the session of the user. Stored data is kept.
func (sm *SessionManager) Drop(userID string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[userID]
	delete(sm.sessions, userID)
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()
	if ok {
		sess.Close()
		sm.log.Info("dropped session", "userID", userID)
	}
}

func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	sm.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
