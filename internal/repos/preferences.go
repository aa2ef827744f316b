package repos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
)

const (
	RecentSearchesKey      = "chat-recent-searches"
	OnboardingCompletedKey = "chat-onboarding-completed"
)

// PreferencesRepo holds small per-user UI state: recent searches and the
// onboarding flag.
type PreferencesRepo interface {
	LoadRecentSearches(ctx context.Context) []string
	SaveRecentSearches(ctx context.Context, terms []string)
	OnboardingCompleted(ctx context.Context) bool
	SetOnboardingCompleted(ctx context.Context, done bool)
}

type preferencesRepo struct {
	store kv.Store
	log   *logger.Logger
}

func NewPreferencesRepo(store kv.Store, baseLog *logger.Logger) PreferencesRepo {
	return &preferencesRepo{
		store: store,
		log:   baseLog.With("repo", "PreferencesRepo"),
	}
}

func (pr *preferencesRepo) LoadRecentSearches(ctx context.Context) []string {
	data, ok, err := pr.store.Get(ctx, RecentSearchesKey)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("load").Inc()
		pr.log.Error("failed to load recent searches", "error", err)
		return []string{}
	}
	if !ok {
		return []string{}
	}
	items, _, err := decodeEnvelope(data)
	if err != nil {
		pr.log.Warn("stored recent searches are corrupt, treating as empty", "error", err)
		return []string{}
	}
	terms := make([]string, 0, len(items))
	for _, raw := range items {
		var t string
		if err := json.Unmarshal(raw, &t); err != nil || strings.TrimSpace(t) == "" {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

func (pr *preferencesRepo) SaveRecentSearches(ctx context.Context, terms []string) {
	if terms == nil {
		terms = []string{}
	}
	data, err := encodeEnvelope(terms)
	if err != nil {
		pr.log.Error("failed to encode recent searches", "error", err)
		return
	}
	if err := pr.store.Set(ctx, RecentSearchesKey, data); err != nil {
		metrics.StorageFailures.WithLabelValues("save").Inc()
		pr.log.Error("failed to save recent searches", "error", err)
	}
}

func (pr *preferencesRepo) OnboardingCompleted(ctx context.Context) bool {
	data, ok, err := pr.store.Get(ctx, OnboardingCompletedKey)
	if err != nil {
		metrics.StorageFailures.WithLabelValues("load").Inc()
		pr.log.Error("failed to load onboarding flag", "error", err)
		return false
	}
	if !ok {
		return false
	}
	var done bool
	if err := json.Unmarshal(data, &done); err != nil {
		// Older clients stored the bare string "true".
		return strings.Trim(strings.TrimSpace(string(data)), `"`) == "true"
	}
	return done
}

func (pr *preferencesRepo) SetOnboardingCompleted(ctx context.Context, done bool) {
	var err error
	if done {
		err = pr.store.Set(ctx, OnboardingCompletedKey, []byte("true"))
	} else {
		err = pr.store.Delete(ctx, OnboardingCompletedKey)
	}
	if err != nil {
		metrics.StorageFailures.WithLabelValues("save").Inc()
		pr.log.Error("failed to save onboarding flag", "done", done, "error", err)
	}
}
