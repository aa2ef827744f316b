package services

import (
	"context"
	"strings"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/repos"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const (
	MaxSuggestedChats = 8
	MaxRecentSearches = 5
)

// DeepMatch is a chat found only through the content of its messages.
type DeepMatch struct {
	Chat     types.Chat      `json:"chat"`
	Messages []types.Message `json:"messages"`
}

// Suggestions is the search dropdown. Selectable is the list a Cursor walks.
type Suggestions struct {
	Query       string           `json:"query"`
	Recent      []string         `json:"recent"`
	Chats       []types.Chat     `json:"chats"`
	DeepMatches []DeepMatch      `json:"deepMatches"`
	NoResults   bool             `json:"noResults"`
	Selectable  []SuggestionItem `json:"items"`
}

// Items returns the keyboard-selectable entries in display order: recent
// searches for a blank query, suggested chats otherwise.
func (s Suggestions) Items() []SuggestionItem {
	var items []SuggestionItem
	if strings.TrimSpace(s.Query) == "" {
		for _, term := range s.Recent {
			items = append(items, SuggestionItem{Kind: SuggestionRecent, Term: term})
		}
		return items
	}
	for i := range s.Chats {
		c := s.Chats[i]
		items = append(items, SuggestionItem{Kind: SuggestionChat, Chat: &c})
	}
	return items
}

type SuggestionKind string

const (
	SuggestionRecent SuggestionKind = "recent"
	SuggestionChat   SuggestionKind = "chat"
)

type SuggestionItem struct {
	Kind SuggestionKind `json:"kind"`
	Term string         `json:"term,omitempty"`
	Chat *types.Chat    `json:"chat,omitempty"`
}

// SearchIndex answers autocomplete queries over one user's chats.
type SearchIndex struct {
	registry ChatRegistry
	messages repos.MessageRepo
	prefs    repos.PreferencesRepo
	log      *logger.Logger
}

func NewSearchIndex(registry ChatRegistry, messages repos.MessageRepo, prefs repos.PreferencesRepo, baseLog *logger.Logger) *SearchIndex {
	return &SearchIndex{
		registry: registry,
		messages: messages,
		prefs:    prefs,
		log:      baseLog.With("service", "SearchIndex"),
	}
}

func matchesPreview(c types.Chat, needle string) bool {
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.LastMessage), needle)
}

// FilterChats returns every chat whose name or last message contains query.
// A blank query returns the whole list.
func (si *SearchIndex) FilterChats(ctx context.Context, query string) []types.Chat {
	chats := si.registry.List(ctx)
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return chats
	}
	out := make([]types.Chat, 0, len(chats))
	for _, c := range chats {
		if matchesPreview(c, needle) {
			out = append(out, c)
		}
	}
	return out
}

func (si *SearchIndex) Suggest(ctx context.Context, query string) Suggestions {
	s := Suggestions{
		Query:       query,
		Recent:      si.prefs.LoadRecentSearches(ctx),
		Chats:       []types.Chat{},
		DeepMatches: []DeepMatch{},
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		s.Selectable = s.Items()
		return s
	}
	metrics.SearchQueries.Inc()

	chats := si.registry.List(ctx)
	matched := make(map[string]struct{})
	for _, c := range chats {
		if !matchesPreview(c, needle) {
			continue
		}
		matched[c.ID] = struct{}{}
		if len(s.Chats) < MaxSuggestedChats {
			s.Chats = append(s.Chats, c)
		}
	}

	deep := si.messages.Search(ctx, needle)
	for _, c := range chats {
		if _, ok := matched[c.ID]; ok {
			continue
		}
		if msgs, ok := deep[c.ID]; ok {
			s.DeepMatches = append(s.DeepMatches, DeepMatch{Chat: c, Messages: msgs})
		}
	}
	s.NoResults = len(s.Chats) == 0 && len(s.DeepMatches) == 0
	s.Selectable = s.Items()
	si.log.Debug("search", "query", query, "chats", len(s.Chats), "deep", len(s.DeepMatches))
	return s
}

// ChatHasMatch reports whether any message of the chat contains query.
func (si *SearchIndex) ChatHasMatch(ctx context.Context, chatID, query string) bool {
	return si.messages.ChatHasMatch(ctx, chatID, query)
}

func (si *SearchIndex) RecentSearches(ctx context.Context) []string {
	return si.prefs.LoadRecentSearches(ctx)
}

// RecordSearch moves term to the front of the recent list, keeping at most
// five distinct entries.
func (si *SearchIndex) RecordSearch(ctx context.Context, term string) []string {
	term = strings.TrimSpace(term)
	current := si.prefs.LoadRecentSearches(ctx)
	if term == "" {
		return current
	}
	updated := make([]string, 0, MaxRecentSearches)
	updated = append(updated, term)
	for _, t := range current {
		if t == term {
			continue
		}
		if len(updated) == MaxRecentSearches {
			break
		}
		updated = append(updated, t)
	}
	si.prefs.SaveRecentSearches(ctx, updated)
	return updated
}

func (si *SearchIndex) ClearRecentSearches(ctx context.Context) {
	si.prefs.SaveRecentSearches(ctx, nil)
}

// Cursor is the keyboard selection over a suggestion list. -1 means nothing
// is selected.
type Cursor struct {
	items []SuggestionItem
	index int
}

func NewCursor(items []SuggestionItem) *Cursor {
	return &Cursor{items: items, index: -1}
}

// Reset replaces the items, as when the query changes, and clears the selection.
func (c *Cursor) Reset(items []SuggestionItem) {
	c.items = items
	c.index = -1
}

func (c *Cursor) Next() {
	if len(c.items) == 0 {
		return
	}
	c.index = (c.index + 1) % len(c.items)
}

func (c *Cursor) Prev() {
	if len(c.items) == 0 {
		return
	}
	if c.index <= 0 {
		c.index = len(c.items) - 1
		return
	}
	c.index--
}

func (c *Cursor) Index() int {
	return c.index
}

func (c *Cursor) Selected() (SuggestionItem, bool) {
	if c.index < 0 || c.index >= len(c.items) {
		return SuggestionItem{}, false
	}
	return c.items[c.index], true
}
