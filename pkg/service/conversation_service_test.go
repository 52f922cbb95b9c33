package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "thinkbot:config:v1"

type fakeClock struct {
	ms int64
}

func (c *fakeClock) now() time.Time { return time.UnixMilli(c.ms) }

type testEnv struct {
	mem     *store.MemoryStore
	storage *StorageService
	convs   *ConversationService
	emitter *event.Emitter
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	emitter := event.NewEmitter()
	storage := NewStorageService(mem, testKey)
	convs := NewConversationService(storage, emitter)
	clock := &fakeClock{ms: 1700000000000}
	convs.SetClock(clock.now)
	return &testEnv{mem: mem, storage: storage, convs: convs, emitter: emitter, clock: clock}
}

func TestEnsure_CreatesWithDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convs.Ensure(ctx, models.ConversationInit{URL: " https://example.com "})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, models.DefaultConversationTitle, conv.Title)
	assert.Equal(t, models.NoTab, conv.TabID)
	assert.Equal(t, "https://example.com", conv.URL)
	assert.Equal(t, int64(1700000000000), conv.CreatedAt)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
	assert.Empty(t, conv.Messages)

	reads, writes := env.mem.Stats()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)
}

func TestEnsure_ExistingIsUnchangedAndNotWritten(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := 3

	created, err := env.convs.Ensure(ctx, models.ConversationInit{TabID: &tab, Title: "Notes"})
	require.NoError(t, err)
	env.clock.ms += 5000

	readsBefore, writesBefore := env.mem.Stats()
	again, err := env.convs.Ensure(ctx, models.ConversationInit{ConversationID: created.ID, Title: "Ignored"})
	require.NoError(t, err)
	reads, writes := env.mem.Stats()

	assert.Equal(t, created, again)
	assert.Equal(t, readsBefore+1, reads)
	assert.Equal(t, writesBefore, writes)
}

func TestEnsure_UsesSuppliedID(t *testing.T) {
	env := newTestEnv(t)
	conv, err := env.convs.Ensure(context.Background(), models.ConversationInit{ConversationID: "c-42"})
	require.NoError(t, err)
	assert.Equal(t, "c-42", conv.ID)
}

func TestAppendMessage_OrderAndMonotonicUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, err := env.convs.Ensure(ctx, models.ConversationInit{})
	require.NoError(t, err)

	stamps := []int64{1700000000500, 1700000000100, 0, 1700000002000}
	prev := conv.UpdatedAt
	var last *models.Conversation
	for i, ts := range stamps {
		env.clock.ms += 10
		last, err = env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{
			Role:      models.RoleUser,
			Content:   string(rune('a' + i)),
			CreatedAt: ts,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, last.UpdatedAt, prev)
		prev = last.UpdatedAt
	}

	require.Len(t, last.Messages, 4)
	for i, m := range last.Messages {
		assert.Equal(t, string(rune('a'+i)), m.Content)
		assert.NotEmpty(t, m.ID)
		assert.NotNil(t, m.Attachments)
	}
	assert.Equal(t, env.clock.ms-10, last.Messages[2].CreatedAt)
	assert.Equal(t, int64(1700000002000), last.UpdatedAt)
}

func TestAppendMessage_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.convs.AppendMessage(context.Background(), "missing", models.ConversationMessage{Role: models.RoleUser})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	_, writes := env.mem.Stats()
	assert.Equal(t, 0, writes)
}

func TestUpdateMessage_MergesFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{})
	conv, err := env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{
		ID: "m1", Role: models.RoleAssistant, ModelID: "gpt", IsStreaming: true, Error: "old",
	})
	require.NoError(t, err)

	env.clock.ms += 1000
	content, streaming, cleared := "done", false, ""
	updated, err := env.convs.UpdateMessage(ctx, conv.ID, "m1", models.MessagePatch{
		Content: &content, IsStreaming: &streaming, Error: &cleared,
	})
	require.NoError(t, err)

	m := updated.Messages[0]
	assert.Equal(t, "done", m.Content)
	assert.False(t, m.IsStreaming)
	assert.Empty(t, m.Error)
	assert.Equal(t, "gpt", m.ModelID)
	assert.Equal(t, env.clock.ms, updated.UpdatedAt)

	_, err = env.convs.UpdateMessage(ctx, conv.ID, "nope", models.MessagePatch{Content: &content})
	assert.True(t, errors.Is(err, ErrMessageNotFound))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateMeta_StrictlyIncreasesWithinSameMillisecond(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "Draft"})

	title := " Renamed Conversation  "
	first, err := env.convs.UpdateMeta(ctx, conv.ID, models.MetaPatch{Title: &title})
	require.NoError(t, err)
	second, err := env.convs.UpdateMeta(ctx, conv.ID, models.MetaPatch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "Renamed Conversation", first.Title)
	assert.Greater(t, first.UpdatedAt, conv.UpdatedAt)
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt)

	// a clock that went backwards still moves forward
	env.clock.ms -= 60000
	third, err := env.convs.UpdateMeta(ctx, conv.ID, models.MetaPatch{})
	require.NoError(t, err)
	assert.Equal(t, second.UpdatedAt+1, third.UpdatedAt)
}

func TestClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{})
	_, err := env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{Role: models.RoleUser, Content: "x"})
	require.NoError(t, err)

	env.clock.ms += 100
	cleared, err := env.convs.Clear(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Messages)
	assert.Equal(t, env.clock.ms, cleared.UpdatedAt)
}

func TestRemove_ThenListExcludes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "A"})
	b, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "B"})

	require.NoError(t, env.convs.Remove(ctx, a.ID))
	require.NoError(t, env.convs.Remove(ctx, a.ID))

	list, err := env.convs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	_, err = env.convs.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList_OrdersByUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "First"})
	env.clock.ms += 10
	second, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "Second"})
	env.clock.ms += 10
	_, err := env.convs.AppendMessage(ctx, first.ID, models.ConversationMessage{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)

	list, err := env.convs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestExportMarkdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{Title: "Research Notes", URL: "https://example.com/post"})
	_, err := env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{
		Role:      models.RoleUser,
		Content:   "  What are\r\nthe findings?  ",
		ModelID:   "m1",
		CreatedAt: 1700000001000,
		Attachments: []models.Attachment{
			{Type: models.AttachmentTypeImage, MimeType: "image/png", DataURL: "data:image/png;base64,AAAA"},
		},
	})
	require.NoError(t, err)

	md, err := env.convs.ExportMarkdown(ctx, conv.ID)
	require.NoError(t, err)

	expected := "# Research Notes\n" +
		"[Source](https://example.com/post)\n" +
		"- Created: 2023-11-14T22:13:20.000Z\n" +
		"- Updated: 2023-11-14T22:13:21.000Z\n" +
		"\n" +
		"## USER · m1\n" +
		"_2023-11-14T22:13:21.000Z_\n" +
		"\n" +
		"What are\n" +
		"the findings?\n" +
		"![attachment-1](data:image/png;base64,AAAA)\n"
	assert.Equal(t, expected, md)

	_, err = env.convs.ExportMarkdown(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExport_FailedBranchAndFileName(t *testing.T) {
	conv := &models.Conversation{
		Title: "Hello, World!",
		Messages: []models.ConversationMessage{
			{Role: models.RoleAssistant, ModelID: "broken", Error: "boom"},
		},
	}
	md := ConversationToMarkdown(conv)
	assert.Contains(t, md, "## ASSISTANT · broken\n")
	assert.Contains(t, md, "> Error: boom\n")
	assert.Equal(t, "hello-world.md", ExportFileName(conv))
	assert.Equal(t, "conversation.md", ExportFileName(&models.Conversation{}))
	assert.Contains(t, ConversationToMarkdown(&models.Conversation{}), "# Conversation\n")
}

func TestMutations_SurfacePersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{})

	env.mem.SetHook = func(string, []byte) error { return errors.New("disk full") }
	_, err := env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{Role: models.RoleUser})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Contains(t, err.Error(), "disk full")
}

func TestMutations_EmitEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var names []string
	env.emitter.OnAny(func(ev event.Event) { names = append(names, ev.EventName()) })

	conv, _ := env.convs.Ensure(ctx, models.ConversationInit{})
	_, _ = env.convs.Ensure(ctx, models.ConversationInit{ConversationID: conv.ID})
	_, _ = env.convs.Clear(ctx, conv.ID)
	_ = env.convs.Remove(ctx, conv.ID)

	assert.Equal(t, []string{event.ConversationChanged, event.ConversationChanged, event.ConversationDeleted}, names)
}
