package service

import (
	"context"
	"errors"
	"testing"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/llm"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigEnv(t *testing.T) (*testEnv, *ConfigService) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewConfigService(env.storage, env.emitter)
}

func TestConfig_DefaultsAreValid(t *testing.T) {
	_, cfgSvc := newConfigEnv(t)
	cfg, err := cfgSvc.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, "local-draft", cfg.General.DefaultModelID)
	assert.NotNil(t, cfg.FindShortcut("summarize"))
}

func TestConfig_SetValidatesAndEmits(t *testing.T) {
	env, cfgSvc := newConfigEnv(t)
	ctx := context.Background()
	changed := 0
	env.emitter.On(event.ConfigChanged, func(event.Event) { changed++ })

	cfg, _ := cfgSvc.Get(ctx)
	cfg.Models = append(cfg.Models, models.LanguageModel{ID: "bad", Label: "Bad", Provider: "mystery"})
	_, err := cfgSvc.Set(ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg, _ = cfgSvc.Get(ctx)
	cfg.Models = append(cfg.Models, cfg.Models[0])
	_, err = cfgSvc.Set(ctx, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "duplicate model ids")

	cfg, _ = cfgSvc.Get(ctx)
	cfg.General.DefaultModelID = "ghost"
	_, err = cfgSvc.Set(ctx, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "unknown default model")

	assert.Equal(t, 0, changed)

	cfg, _ = cfgSvc.Get(ctx)
	cfg.General.SystemPrompt = "Answer in French."
	cfg.Blacklist = []string{"*.bank.com"}
	saved, err := cfgSvc.Set(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Answer in French.", saved.General.SystemPrompt)
	assert.Equal(t, 1, changed)

	reset, err := cfgSvc.Reset(ctx)
	require.NoError(t, err)
	assert.Empty(t, reset.General.SystemPrompt)
	assert.Empty(t, reset.Blacklist)
	assert.Equal(t, 2, changed)
}

func TestConfig_ResetKeepsConversations(t *testing.T) {
	env, cfgSvc := newConfigEnv(t)
	ctx := context.Background()
	conv, err := env.convs.Ensure(ctx, models.ConversationInit{Title: "keep me"})
	require.NoError(t, err)

	_, err = cfgSvc.Reset(ctx)
	require.NoError(t, err)

	got, err := env.convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Title)
}

func TestModelService_CRUD(t *testing.T) {
	_, cfgSvc := newConfigEnv(t)
	svc := NewModelService(cfgSvc, llm.NewFactory())
	ctx := context.Background()

	added, err := svc.Add(ctx, models.LanguageModel{
		ID: "gpt", Label: "GPT", Provider: " OpenAI ", Model: "gpt-4o-mini", APIKey: "sk-1234567890abcdef",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", added.Provider)
	assert.Equal(t, "sk-1***********cdef", added.APIKey)

	_, err = svc.Add(ctx, models.LanguageModel{ID: "gpt", Label: "Again", Provider: "openai"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = svc.Add(ctx, models.LanguageModel{Label: "Bad", Provider: "nope"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	// echoing the masked key back keeps the stored secret
	edit := *added
	edit.Label = "GPT mini"
	_, err = svc.Update(ctx, "gpt", edit)
	require.NoError(t, err)
	cfg, _ := cfgSvc.Get(ctx)
	assert.Equal(t, "sk-1234567890abcdef", cfg.FindModel("gpt").APIKey)
	assert.Equal(t, "GPT mini", cfg.FindModel("gpt").Label)

	disabled, err := svc.SetEnabled(ctx, "gpt", false)
	require.NoError(t, err)
	assert.True(t, disabled.Disabled)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.NotEqual(t, "sk-1234567890abcdef", m.APIKey)
	}

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.Update(ctx, "missing", models.LanguageModel{Label: "x", Provider: "openai"})
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestModelService_DeleteDropsReferences(t *testing.T) {
	_, cfgSvc := newConfigEnv(t)
	svc := NewModelService(cfgSvc, llm.NewFactory())
	shortcuts := NewShortcutService(cfgSvc)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.LanguageModel{ID: "extra", Label: "Extra", Provider: models.ProviderDeterministic})
	require.NoError(t, err)
	sc, err := shortcuts.Create(ctx, &models.CreateShortcutRequest{Label: "Both", ModelIDs: []string{"local-draft", "extra"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "local-draft"))
	cfg, _ := cfgSvc.Get(ctx)
	assert.Nil(t, cfg.FindModel("local-draft"))
	assert.Equal(t, "extra", cfg.General.DefaultModelID)
	assert.Equal(t, []string{"extra"}, cfg.FindShortcut(sc.ID).ModelIDs)

	assert.True(t, errors.Is(svc.Delete(ctx, "local-draft"), ErrNotFound))
}

func TestModelService_Test(t *testing.T) {
	_, cfgSvc := newConfigEnv(t)
	svc := NewModelService(cfgSvc, llm.NewFactory())
	ctx := context.Background()

	res := svc.Test(ctx, models.LanguageModel{ID: "local-draft", Label: "Local", Provider: models.ProviderDeterministic})
	assert.True(t, res.Success)
	assert.Contains(t, res.Sample, "Model Local (deterministic) response")

	res = svc.Test(ctx, models.LanguageModel{ID: "x", Label: "X", Provider: models.ProviderOpenAI, Model: "gpt-4o"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "incomplete")

	assert.NotEmpty(t, svc.Presets())
}

func TestShortcutService(t *testing.T) {
	_, cfgSvc := newConfigEnv(t)
	svc := NewShortcutService(cfgSvc)
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.CreateShortcutRequest{Label: " Translate ", Prompt: "Translate to English."})
	require.NoError(t, err)
	assert.Equal(t, "Translate", created.Label)

	_, err = svc.Create(ctx, &models.CreateShortcutRequest{Label: "x", ModelIDs: []string{"ghost"}})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	prompt := "Translate to German."
	updated, err := svc.Update(ctx, created.ID, &models.UpdateShortcutRequest{Prompt: &prompt})
	require.NoError(t, err)
	assert.Equal(t, "Translate to German.", updated.Prompt)
	assert.Equal(t, "Translate", updated.Label)

	list, err := svc.Reorder(ctx, []string{created.ID, "explain"})
	require.NoError(t, err)
	var ids []string
	for _, sc := range list {
		ids = append(ids, sc.ID)
	}
	assert.Equal(t, []string{created.ID, "explain", "summarize"}, ids)

	_, err = svc.Reorder(ctx, []string{"ghost"})
	assert.True(t, errors.Is(err, ErrShortcutNotFound))

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, created.ID), ErrNotFound))
}

func TestIsBlacklisted(t *testing.T) {
	patterns := []string{"*.bank.com", "https://mail.example.org/*", "  ", "intranet"}
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://www.bank.com/login", true},
		{"https://WWW.BANK.COM/", true},
		{"https://bank.com.evil.net/", false},
		{"https://mail.example.org/inbox", true},
		{"https://example.org/", false},
		{"http://intranet/wiki", true},
		{"https://docs.go.dev/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBlacklisted(patterns, tt.url))
		})
	}
}
