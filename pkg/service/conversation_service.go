package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/google/uuid"
)

// ConversationService is the conversation repository. Every mutation is one
// read-modify-write of the snapshot through StorageService.Update.
type ConversationService struct {
	storage *StorageService
	emitter *event.Emitter
	now     func() time.Time
	logger  *slog.Logger
}

func NewConversationService(storage *StorageService, emitter *event.Emitter) *ConversationService {
	if emitter == nil {
		emitter = event.Global()
	}
	return &ConversationService{
		storage: storage,
		emitter: emitter,
		now:     time.Now,
		logger:  utils.GetLogger(),
	}
}

// SetClock overrides the time source.
func (s *ConversationService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ConversationService) nowMillis() int64 {
	return s.now().UnixMilli()
}

func lookup(snap *models.StoredSnapshot, id string) (*models.Conversation, error) {
	conv, ok := snap.Conversations[id]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv, nil
}

// Ensure returns the conversation named by init.ConversationID unchanged, or
// creates one. An existing conversation costs one read and no write.
func (s *ConversationService) Ensure(ctx context.Context, init models.ConversationInit) (*models.Conversation, error) {
	var result *models.Conversation
	created := false
	_, err := s.storage.Update(ctx, func(snap *models.StoredSnapshot) (bool, error) {
		if init.ConversationID != "" {
			if existing, ok := snap.Conversations[init.ConversationID]; ok {
				result = existing.Clone()
				return false, nil
			}
		}

		id := init.ConversationID
		if id == "" {
			id = uuid.New().String()
		}
		tabID := models.NoTab
		if init.TabID != nil {
			tabID = *init.TabID
		}
		title := strings.TrimSpace(init.Title)
		if title == "" {
			title = models.DefaultConversationTitle
		}
		now := s.nowMillis()
		conv := &models.Conversation{
			ID:         id,
			TabID:      tabID,
			Title:      title,
			URL:        strings.TrimSpace(init.URL),
			ShortcutID: strings.TrimSpace(init.ShortcutID),
			CreatedAt:  now,
			UpdatedAt:  now,
			Messages:   []models.ConversationMessage{},
		}
		snap.Conversations[id] = conv
		result = conv.Clone()
		created = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Debug("Created conversation", "conversationID", result.ID, "tabID", result.TabID)
		s.emitter.Emit(event.ConversationChangedEvent{ConversationID: result.ID})
	}
	return result, nil
}

// Get returns a copy of one conversation.
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	snap, err := s.storage.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := lookup(snap, id)
	if err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

// List returns all conversations, most recently updated first. Ties are
// ordered by creation time, then id, so the order is stable.
func (s *ConversationService) List(ctx context.Context) ([]*models.Conversation, error) {
	snap, err := s.storage.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Conversation, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID < b.ID
	})
	return out, nil
}

// mutate runs fn against an existing conversation inside one snapshot update
// and emits a change notification on success.
func (s *ConversationService) mutate(ctx context.Context, id string, fn func(conv *models.Conversation) error) (*models.Conversation, error) {
	var result *models.Conversation
	_, err := s.storage.Update(ctx, func(snap *models.StoredSnapshot) (bool, error) {
		conv, err := lookup(snap, id)
		if err != nil {
			return false, err
		}
		if err := fn(conv); err != nil {
			return false, err
		}
		result = conv.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(event.ConversationChangedEvent{ConversationID: id})
	return result, nil
}

// AppendMessage appends msg, assigning an id and timestamp when absent.
// UpdatedAt moves to the message timestamp but never backwards.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, msg models.ConversationMessage) (*models.Conversation, error) {
	return s.mutate(ctx, conversationID, func(conv *models.Conversation) error {
		entry := msg.Clone()
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.CreatedAt == 0 {
			entry.CreatedAt = s.nowMillis()
		}
		if entry.Attachments == nil {
			entry.Attachments = []models.Attachment{}
		}
		conv.Messages = append(conv.Messages, entry)
		conv.UpdatedAt = max(entry.CreatedAt, conv.UpdatedAt)
		return nil
	})
}

// UpdateMessage merges patch onto one message and bumps UpdatedAt.
func (s *ConversationService) UpdateMessage(ctx context.Context, conversationID, messageID string, patch models.MessagePatch) (*models.Conversation, error) {
	return s.mutate(ctx, conversationID, func(conv *models.Conversation) error {
		idx := conv.MessageIndex(messageID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		m := &conv.Messages[idx]
		if patch.Content != nil {
			m.Content = *patch.Content
		}
		if patch.ModelID != nil {
			m.ModelID = *patch.ModelID
		}
		if patch.BranchID != nil {
			m.BranchID = *patch.BranchID
		}
		if patch.IsStreaming != nil {
			m.IsStreaming = *patch.IsStreaming
		}
		if patch.Error != nil {
			m.Error = *patch.Error
		}
		if patch.Attachments != nil {
			m.Attachments = append([]models.Attachment{}, (*patch.Attachments)...)
		}
		conv.UpdatedAt = max(s.nowMillis(), conv.UpdatedAt)
		return nil
	})
}

// UpdateMeta trims and applies metadata. UpdatedAt strictly increases, even
// for edits within the same millisecond.
func (s *ConversationService) UpdateMeta(ctx context.Context, conversationID string, patch models.MetaPatch) (*models.Conversation, error) {
	return s.mutate(ctx, conversationID, func(conv *models.Conversation) error {
		if patch.Title != nil {
			conv.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.URL != nil {
			conv.URL = strings.TrimSpace(*patch.URL)
		}
		if patch.ShortcutID != nil {
			conv.ShortcutID = strings.TrimSpace(*patch.ShortcutID)
		}
		conv.UpdatedAt = max(s.nowMillis(), conv.UpdatedAt+1)
		return nil
	})
}

// Clear drops all messages.
func (s *ConversationService) Clear(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return s.mutate(ctx, conversationID, func(conv *models.Conversation) error {
		conv.Messages = []models.ConversationMessage{}
		conv.UpdatedAt = max(s.nowMillis(), conv.UpdatedAt)
		return nil
	})
}

// Remove deletes a conversation. Removing an unknown id is not an error.
func (s *ConversationService) Remove(ctx context.Context, conversationID string) error {
	removed := false
	_, err := s.storage.Update(ctx, func(snap *models.StoredSnapshot) (bool, error) {
		if _, ok := snap.Conversations[conversationID]; !ok {
			return false, nil
		}
		delete(snap.Conversations, conversationID)
		removed = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if removed {
		s.logger.Debug("Removed conversation", "conversationID", conversationID)
		s.emitter.Emit(event.ConversationDeletedEvent{ConversationID: conversationID})
	}
	return nil
}

// ExportMarkdown renders one conversation as Markdown.
func (s *ConversationService) ExportMarkdown(ctx context.Context, conversationID string) (string, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return ConversationToMarkdown(conv), nil
}

// Export wraps ExportMarkdown with a suggested file name.
func (s *ConversationService) Export(ctx context.Context, conversationID string) (*models.ConversationExport, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &models.ConversationExport{
		Format:   "markdown",
		FileName: ExportFileName(conv),
		Content:  ConversationToMarkdown(conv),
	}, nil
}
