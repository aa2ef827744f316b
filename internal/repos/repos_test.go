package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func userMessage(id, chatID, content string) types.Message {
	return types.Message{
		ID:        id,
		ChatID:    chatID,
		UserID:    "usr_123",
		Content:   content,
		Role:      types.RoleUser,
		Timestamp: types.FormatTimestamp(fixedNow),
		Status:    types.StatusPtr(types.StatusSending),
	}
}

func TestMessageRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(kv.NewMemoryStore(), logger.Nop())

	edited := types.FormatTimestamp(fixedNow.Add(time.Minute))
	msgs := []types.Message{
		userMessage("m1", "c1", "Quais os sintomas?"),
		{
			ID:        "m2",
			ChatID:    "c1",
			UserID:    types.AssistantUserID,
			Content:   "Febre alta e dor no corpo.",
			Role:      types.RoleAssistant,
			Timestamp: types.FormatTimestamp(fixedNow),
			EditedAt:  &edited,
		},
	}
	repo.Save(ctx, "c1", msgs)
	assert.Equal(t, msgs, repo.Load(ctx, "c1"))
	assert.Empty(t, repo.Load(ctx, "unknown"))
}

func TestMessageRepo_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(kv.NewMemoryStore(), logger.Nop())

	repo.Save(ctx, "c1", []types.Message{userMessage("m1", "c1", "oi")})
	repo.Clear(ctx, "c1")
	assert.Empty(t, repo.Load(ctx, "c1"))
	repo.Clear(ctx, "c1")
	assert.Empty(t, repo.Load(ctx, "c1"))
	assert.Empty(t, repo.ListChatIDsWithMessages(ctx))
}

func TestMessageRepo_ClearAll(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewMessageRepo(store, logger.Nop())

	repo.Save(ctx, "b", []types.Message{userMessage("m1", "b", "x")})
	repo.Save(ctx, "a", []types.Message{userMessage("m2", "a", "y")})
	require.NoError(t, store.Set(ctx, RegistryKey, []byte(`[]`)))

	assert.Equal(t, []string{"a", "b"}, repo.ListChatIDsWithMessages(ctx))
	repo.ClearAll(ctx)
	assert.Empty(t, repo.ListChatIDsWithMessages(ctx))

	_, ok, err := store.Get(ctx, RegistryKey)
	require.NoError(t, err)
	assert.True(t, ok, "ClearAll must only touch message keys")
}

func TestMessageRepo_CorruptAndLegacyData(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewMessageRepo(store, logger.Nop())

	require.NoError(t, store.Set(ctx, MessagesKeyPrefix+"broken", []byte("{not json")))
	assert.Empty(t, repo.Load(ctx, "broken"))

	require.NoError(t, store.Set(ctx, MessagesKeyPrefix+"future", []byte(`{"v":99,"items":[]}`)))
	assert.Empty(t, repo.Load(ctx, "future"))

	legacy := `[
		{"id":"m1","content":"oi","role":"user","timestamp":"2025-03-01T12:00:00.000Z","status":"bogus"},
		{"id":"m2","content":"olá","role":"assistant","timestamp":"2025-03-01T12:00:01.000Z","status":"bogus","editedAt":""},
		{"id":"","content":"no id","role":"user","timestamp":"2025-03-01T12:00:00.000Z"},
		{"id":"m3","content":"bad role","role":"system","timestamp":"2025-03-01T12:00:00.000Z"},
		{"id":"m4","content":"bad ts","role":"user","timestamp":"yesterday"},
		42
	]`
	require.NoError(t, store.Set(ctx, MessagesKeyPrefix+"legacy", []byte(legacy)))

	got := repo.Load(ctx, "legacy")
	require.Len(t, got, 2)
	assert.Equal(t, "legacy", got[0].ChatID)
	assert.Equal(t, types.StatusSent, got[0].CurrentStatus())
	assert.Nil(t, got[1].Status)
	assert.Nil(t, got[1].EditedAt)
}

func TestMessageRepo_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(kv.NewMemoryStore(), logger.Nop())

	repo.Save(ctx, "c1", []types.Message{
		userMessage("m1", "c1", "Quais os SINTOMAS da dengue?"),
		userMessage("m2", "c1", "E o tratamento?"),
	})
	repo.Save(ctx, "c2", []types.Message{userMessage("m3", "c2", "Onde fica o posto?")})

	res := repo.Search(ctx, "  sintomas ")
	require.Len(t, res, 1)
	require.Len(t, res["c1"], 1)
	assert.Equal(t, "m1", res["c1"][0].ID)

	assert.Empty(t, repo.Search(ctx, "   "))
	assert.True(t, repo.ChatHasMatch(ctx, "c2", "POSTO"))
	assert.False(t, repo.ChatHasMatch(ctx, "c2", "sintomas"))
	assert.False(t, repo.ChatHasMatch(ctx, "c2", ""))
}

func TestRegistryRepo_RoundTripAndCleanup(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewRegistryRepo(store, logger.Nop())

	assert.Nil(t, repo.Load(ctx))

	chats := []types.Chat{types.AssistantChat(fixedNow), types.NewChat(fixedNow)}
	chats[1].IsTyping = true
	repo.Save(ctx, chats)

	got := repo.Load(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, types.AssistantChatID, got[0].ID)
	assert.False(t, got[1].IsTyping, "typing is never persisted")

	raw := `[{"id":"a","name":""},{"id":"a","name":"dup"},{"name":"no id"},{"id":"b","name":"Dengue"}]`
	require.NoError(t, store.Set(ctx, RegistryKey, []byte(raw)))
	got = repo.Load(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, types.DefaultChatName, got[0].Name)
	assert.Equal(t, "Dengue", got[1].Name)

	repo.Clear(ctx)
	repo.Clear(ctx)
	assert.Nil(t, repo.Load(ctx))
}

func TestPreferencesRepo(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewPreferencesRepo(store, logger.Nop())

	assert.Empty(t, repo.LoadRecentSearches(ctx))
	repo.SaveRecentSearches(ctx, []string{"febre", "vacina"})
	assert.Equal(t, []string{"febre", "vacina"}, repo.LoadRecentSearches(ctx))

	assert.False(t, repo.OnboardingCompleted(ctx))
	repo.SetOnboardingCompleted(ctx, true)
	assert.True(t, repo.OnboardingCompleted(ctx))

	raw, ok, err := store.Get(ctx, OnboardingCompletedKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", string(raw))

	repo.SetOnboardingCompleted(ctx, false)
	assert.False(t, repo.OnboardingCompleted(ctx))

	require.NoError(t, store.Set(ctx, OnboardingCompletedKey, []byte(`"true"`)))
	assert.True(t, repo.OnboardingCompleted(ctx))
}
