package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/llm"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Branch statuses reported through event.BranchStatusEvent.
const (
	BranchPending   = "pending"
	BranchStreaming = "streaming"
	BranchCompleted = "completed"
	BranchFailed    = "failed"
)

var branchNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("thinkbot:branch"))

// BranchID identifies one model's answer to one user message.
func BranchID(modelID, messageID string) string {
	return uuid.NewSHA1(branchNamespace, []byte(modelID+":"+messageID)).String()
}

// ProviderFactory turns a model record into a provider. It must never fail.
type ProviderFactory interface {
	NewProvider(ctx context.Context, m *models.LanguageModel) llm.Provider
}

// ChatOptions tunes how a turn is executed.
type ChatOptions struct {
	// ParallelBranches streams all branches at once. Writes stay serialized.
	ParallelBranches bool
	MaxParallel      int
	HistoryTokens    int
	ContextTokens    int
}

// Fragment is one piece of streamed assistant text.
type Fragment struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	BranchID       string `json:"branchId"`
	ModelID        string `json:"modelId"`
	Text           string `json:"text"`
}

// ChatService runs conversation turns: it appends the user message, then
// one assistant branch per resolved model.
type ChatService struct {
	storage       *StorageService
	conversations *ConversationService
	pages         *PageStateService
	factory       ProviderFactory
	emitter       *event.Emitter
	opts          ChatOptions
	counter       TokenCounter
	logger        *slog.Logger
}

func NewChatService(storage *StorageService, conversations *ConversationService, pages *PageStateService,
	factory ProviderFactory, emitter *event.Emitter, opts ChatOptions) *ChatService {
	if emitter == nil {
		emitter = event.Global()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	return &ChatService{
		storage:       storage,
		conversations: conversations,
		pages:         pages,
		factory:       factory,
		emitter:       emitter,
		opts:          opts,
		logger:        utils.GetLogger(),
	}
}

// SetTokenCounter overrides the counter used for prompt budgeting.
func (s *ChatService) SetTokenCounter(c TokenCounter) {
	s.counter = c
}

func (s *ChatService) tokenCounter() TokenCounter {
	if s.counter == nil {
		return DefaultTokenCounter()
	}
	return s.counter
}

// ResolveModels maps the requested ids to enabled model records, in order and
// without duplicates. When none of the candidates resolve, the request's own
// model id is tried alone.
func ResolveModels(cfg *models.ConfigDocument, req *models.AppendRequest) []*models.LanguageModel {
	primary := strings.TrimSpace(req.ModelID)
	if primary == "" {
		primary = cfg.General.DefaultModelID
	}

	candidates := req.ModelIDs
	if len(candidates) == 0 {
		if sc := cfg.FindShortcut(req.ShortcutID); sc != nil && len(sc.ModelIDs) > 0 {
			candidates = sc.ModelIDs
		}
	}
	if len(candidates) == 0 {
		candidates = []string{primary}
	}

	resolve := func(ids []string) []*models.LanguageModel {
		seen := make(map[string]bool)
		var out []*models.LanguageModel
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if m := cfg.FindModel(id); m.Enabled() {
				cp := *m
				out = append(out, &cp)
			}
		}
		return out
	}

	resolved := resolve(candidates)
	if len(resolved) == 0 && primary != "" {
		resolved = resolve([]string{primary})
	}
	return resolved
}

// AppendTurn appends a user message and streams one assistant branch per
// resolved model. onFragment, when not nil, receives every fragment as it
// arrives.
//
// The turn runs on a context detached from ctx's cancellation: a caller that
// goes away does not stop terminal writes, so a later edit by another caller
// may be overwritten when a slow branch finishes.
func (s *ChatService) AppendTurn(ctx context.Context, req *models.AppendRequest, onFragment func(Fragment)) (*models.Conversation, error) {
	ctx = context.WithoutCancel(ctx)

	cfg, err := s.storage.ReadConfig(ctx)
	if err != nil {
		return nil, err
	}
	resolved := ResolveModels(cfg, req)
	if len(resolved) == 0 {
		return nil, fmt.Errorf("%w: requested %q", ErrNoModelAvailable, requestedIDs(req))
	}
	primary := resolved[0]
	shortcut := cfg.FindShortcut(req.ShortcutID)

	conv, err := s.conversations.Ensure(ctx, models.ConversationInit{
		ConversationID: req.ConversationID,
		TabID:          req.TabID,
		Title:          req.Title,
		URL:            req.URL,
		ShortcutID:     req.ShortcutID,
	})
	if err != nil {
		return nil, err
	}
	if req.ShortcutID != "" && req.ShortcutID != conv.ShortcutID {
		shortcutID := req.ShortcutID
		if _, err := s.conversations.UpdateMeta(ctx, conv.ID, models.MetaPatch{ShortcutID: &shortcutID}); err != nil {
			return nil, err
		}
	}

	counter := s.tokenCounter()
	history := TrimHistory(counter, historyFrom(conv.Messages), s.opts.HistoryTokens)

	userMsg := models.ConversationMessage{
		ID:          uuid.New().String(),
		Role:        models.RoleUser,
		Content:     req.Message,
		ModelID:     primary.ID,
		Attachments: append([]models.Attachment{}, req.Attachments...),
	}
	if _, err := s.conversations.AppendMessage(ctx, conv.ID, userMsg); err != nil {
		return nil, err
	}

	tabID := models.NoTab
	if req.TabID != nil {
		tabID = *req.TabID
	} else if conv.TabID != models.NoTab {
		tabID = conv.TabID
	}

	base := llm.Request{
		Prompt:       req.Message,
		SystemPrompt: systemPrompt(cfg, shortcut),
		Context:      TrimContext(counter, s.pageContext(cfg, req, tabID), s.opts.ContextTokens),
		History:      history,
		Attachments:  req.Attachments,
	}

	s.logger.Info("Appending turn",
		"conversationID", conv.ID, "models", len(resolved), "parallel", s.opts.ParallelBranches)

	if s.opts.ParallelBranches && len(resolved) > 1 {
		err = s.runParallel(ctx, conv.ID, userMsg.ID, resolved, base, onFragment)
	} else {
		for _, m := range resolved {
			if err = s.runBranch(ctx, conv.ID, userMsg.ID, m, base, onFragment); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if tabID != models.NoTab {
		s.pages.SetConversation(tabID, conv.ID)
	}
	return s.conversations.Get(ctx, conv.ID)
}

func requestedIDs(req *models.AppendRequest) []string {
	if len(req.ModelIDs) > 0 {
		return req.ModelIDs
	}
	return []string{req.ModelID}
}

func (s *ChatService) pageContext(cfg *models.ConfigDocument, req *models.AppendRequest, tabID int) string {
	if req.Context != nil {
		return *req.Context
	}
	if !cfg.General.AttachPageContent || tabID == models.NoTab || s.pages == nil {
		return ""
	}
	ps, ok := s.pages.Get(tabID)
	if !ok || ps.Extraction.Result == nil {
		return ""
	}
	return ps.Extraction.Result.Content
}

// runParallel streams branches concurrently, bounded by MaxParallel.
func (s *ChatService) runParallel(ctx context.Context, conversationID, userMessageID string,
	resolved []*models.LanguageModel, base llm.Request, onFragment func(Fragment)) error {
	sem := semaphore.NewWeighted(int64(s.opts.MaxParallel))

	var mu sync.Mutex
	var firstErr error
	forward := onFragment
	if onFragment != nil {
		forward = func(f Fragment) {
			mu.Lock()
			defer mu.Unlock()
			onFragment(f)
		}
	}

	var wg sync.WaitGroup
	for _, m := range resolved {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(m *models.LanguageModel) {
			defer wg.Done()
			defer sem.Release(1)
			if err := s.runBranch(ctx, conversationID, userMessageID, m, base, forward); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(m)
	}
	wg.Wait()
	return firstErr
}

// runBranch writes the placeholder, streams the model and writes the
// terminal state. Provider failures end up on the message; only
// persistence failures are returned.
func (s *ChatService) runBranch(ctx context.Context, conversationID, userMessageID string,
	m *models.LanguageModel, base llm.Request, onFragment func(Fragment)) error {
	branchID := BranchID(m.ID, userMessageID)
	placeholder := models.ConversationMessage{
		ID:          uuid.New().String(),
		Role:        models.RoleAssistant,
		ModelID:     m.ID,
		BranchID:    branchID,
		IsStreaming: true,
		Attachments: []models.Attachment{},
	}
	status := event.BranchStatusEvent{
		ConversationID: conversationID,
		MessageID:      placeholder.ID,
		BranchID:       branchID,
		ModelID:        m.ID,
	}

	if _, err := s.conversations.AppendMessage(ctx, conversationID, placeholder); err != nil {
		return err
	}
	status.Status = BranchPending
	s.emitter.Emit(status)

	req := base
	req.Model = m.Model
	asm := llm.NewAssembler()
	streamed := false
	aggregate, streamErr := s.stream(ctx, m, &req, asm, func(chunk string) {
		if !streamed {
			streamed = true
			status.Status = BranchStreaming
			s.emitter.Emit(status)
		}
		if onFragment != nil {
			onFragment(Fragment{
				ConversationID: conversationID,
				MessageID:      placeholder.ID,
				BranchID:       branchID,
				ModelID:        m.ID,
				Text:           chunk,
			})
		}
	})

	content := asm.Complete()
	if content == "" {
		content = aggregate
	}
	if streamErr == nil && content == "" {
		streamErr = ErrEmptyResponse
	}

	notStreaming := false
	patch := models.MessagePatch{IsStreaming: &notStreaming}
	if streamErr != nil {
		msg := streamErr.Error()
		patch.Error = &msg
		status.Status, status.Error = BranchFailed, msg
		s.logger.Warn("Branch failed", "conversationID", conversationID, "modelID", m.ID, "error", streamErr)
	} else {
		cleared := ""
		patch.Content = &content
		patch.Error = &cleared
		status.Status = BranchCompleted
	}

	if _, err := s.conversations.UpdateMessage(ctx, conversationID, placeholder.ID, patch); err != nil {
		return err
	}
	s.emitter.Emit(status)
	return nil
}

// stream builds a fresh provider for m and drives it to completion. A panic
// inside the provider is reported as a branch failure.
func (s *ChatService) stream(ctx context.Context, m *models.LanguageModel, req *llm.Request,
	asm *llm.Assembler, onChunk func(string)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Provider panicked", "modelID", m.ID, "panic", r)
			err = fmt.Errorf("provider %s panicked: %v", m.ID, r)
		}
	}()
	provider := s.factory.NewProvider(ctx, m)
	return llm.Run(ctx, provider, req, asm, onChunk)
}
