package service

import (
	"sync"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/models"
)

// PageStateService tracks extraction and conversation correlation per browser
// tab. State lives for the lifetime of the process only.
type PageStateService struct {
	mu      sync.RWMutex
	pages   map[int]*models.PageState
	emitter *event.Emitter
}

func NewPageStateService(emitter *event.Emitter) *PageStateService {
	if emitter == nil {
		emitter = event.Global()
	}
	return &PageStateService{
		pages:   make(map[int]*models.PageState),
		emitter: emitter,
	}
}

func copyPageState(ps *models.PageState) *models.PageState {
	cp := *ps
	if ps.Extraction.Result != nil {
		r := *ps.Extraction.Result
		cp.Extraction.Result = &r
	}
	cp.Conversation = ps.Conversation.Clone()
	return &cp
}

// Get returns a copy of the tab's state. Unknown tabs report false.
func (s *PageStateService) Get(tabID int) (*models.PageState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.pages[tabID]
	if !ok {
		return nil, false
	}
	return copyPageState(ps), true
}

// Ensure returns the tab's state, creating an idle entry in the given mode.
func (s *PageStateService) Ensure(tabID int, mode string) *models.PageState {
	s.mu.Lock()
	ps, ok := s.pages[tabID]
	if !ok {
		ps = &models.PageState{
			TabID:      tabID,
			Extraction: models.PageExtractionState{Status: models.ExtractionIdle, Mode: mode},
		}
		s.pages[tabID] = ps
	}
	out := copyPageState(ps)
	s.mu.Unlock()

	if !ok {
		s.emitter.Emit(event.PageStateChangedEvent{TabID: tabID})
	}
	return out
}

// SetExtraction merges patch into the tab's extraction state. The mode is kept
// unless the patch names one. Unknown tabs are left alone.
func (s *PageStateService) SetExtraction(tabID int, patch models.ExtractionPatch) (*models.PageState, bool) {
	s.mu.Lock()
	ps, ok := s.pages[tabID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	ex := &ps.Extraction
	if patch.Status != nil {
		ex.Status = *patch.Status
	}
	if patch.Mode != nil && *patch.Mode != "" {
		ex.Mode = *patch.Mode
	}
	if patch.FetchedAt != nil {
		ex.FetchedAt = *patch.FetchedAt
	}
	if patch.Result != nil {
		r := *patch.Result
		ex.Result = &r
	}
	if patch.Error != nil {
		ex.Error = *patch.Error
	}
	out := copyPageState(ps)
	s.mu.Unlock()

	s.emitter.Emit(event.PageStateChangedEvent{TabID: tabID})
	return out, true
}

// SetConversation links the tab to a conversation. An empty id unlinks it.
func (s *PageStateService) SetConversation(tabID int, conversationID string) (*models.PageState, bool) {
	s.mu.Lock()
	ps, ok := s.pages[tabID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	ps.ConversationID = conversationID
	out := copyPageState(ps)
	s.mu.Unlock()

	s.emitter.Emit(event.PageStateChangedEvent{TabID: tabID})
	return out, true
}

// Clear forgets one tab.
func (s *PageStateService) Clear(tabID int) {
	s.mu.Lock()
	delete(s.pages, tabID)
	s.mu.Unlock()
}

// ClearAll forgets every tab.
func (s *PageStateService) ClearAll() {
	s.mu.Lock()
	s.pages = make(map[int]*models.PageState)
	s.mu.Unlock()
}
