package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	ConversationChanged = "conversation.changed"
	ConversationDeleted = "conversation.deleted"
	BranchStatus        = "branch.status"
	PageStateChanged    = "pageState.changed"
	SyncCompleted       = "sync.completed"
	ConfigChanged       = "system.configChanged"
)

// Events tied to one conversation or one tab implement these so that
// subscribers can filter on them.
type conversationScoped interface{ conversationScope() string }
type tabScoped interface{ tabScope() int }

// ============================================================================
// Conversation Events
// ============================================================================

// ConversationChangedEvent is emitted after any write touching a conversation.
type ConversationChangedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (e ConversationChangedEvent) EventName() string { return ConversationChanged }
func (e ConversationChangedEvent) conversationScope() string { return e.ConversationID }

// ConversationDeletedEvent is emitted when a conversation is removed.
type ConversationDeletedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (e ConversationDeletedEvent) EventName() string { return ConversationDeleted }
func (e ConversationDeletedEvent) conversationScope() string { return e.ConversationID }

// BranchStatusEvent tracks one model's answer to a turn.
type BranchStatusEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	BranchID       string `json:"branchId,omitempty"`
	ModelID        string `json:"modelId"`
	Status         string `json:"status"` // "pending", "streaming", "completed", "failed"
	Error          string `json:"error,omitempty"`
}

func (e BranchStatusEvent) EventName() string { return BranchStatus }
func (e BranchStatusEvent) conversationScope() string { return e.ConversationID }

// ============================================================================
// Page State Events
// ============================================================================

// PageStateChangedEvent is emitted when a tab's extraction or conversation pointer changes.
type PageStateChangedEvent struct {
	TabID int `json:"tabId"`
}

func (e PageStateChangedEvent) EventName() string { return PageStateChanged }
func (e PageStateChangedEvent) tabScope() int { return e.TabID }

// ============================================================================
// System Events
// ============================================================================

// SyncCompletedEvent is emitted after a successful remote sync.
type SyncCompletedEvent struct {
	Provider    string `json:"provider"`
	CompletedAt int64  `json:"completedAt"`
}

func (e SyncCompletedEvent) EventName() string { return SyncCompleted }

// ConfigChangedEvent is emitted when the configuration document changes.
type ConfigChangedEvent struct{}

func (e ConfigChangedEvent) EventName() string { return ConfigChanged }
