package models

// Extraction statuses
const (
	ExtractionIdle    = "idle"
	ExtractionLoading = "loading"
	ExtractionReady   = "ready"
	ExtractionError   = "error"
)

// ExtractionResult is what the extraction collaborator returns for a tab.
type ExtractionResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"` // extraction mode that produced it
	URL     string `json:"url,omitempty"`
}

type PageExtractionState struct {
	Status    string            `json:"status"`
	Mode      string            `json:"mode"`
	FetchedAt int64             `json:"fetchedAt,omitempty"` // Unix ms
	Result    *ExtractionResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// PageState is the process-lifetime state of one browser tab.
type PageState struct {
	TabID          int                 `json:"tabId"`
	ConversationID string              `json:"conversationId,omitempty"`
	Extraction     PageExtractionState `json:"extraction"`
	Conversation   *Conversation       `json:"conversation,omitempty"`
}

// ExtractionPatch is applied to a tab's extraction state. Nil fields are left untouched.
type ExtractionPatch struct {
	Status    *string           `json:"status,omitempty"`
	Mode      *string           `json:"mode,omitempty"`
	FetchedAt *int64            `json:"fetchedAt,omitempty"`
	Result    *ExtractionResult `json:"result,omitempty"`
	Error     *string           `json:"error,omitempty"`
}
