package models

// Role of a conversation message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultConversationTitle is used when a conversation is created without a title.
const DefaultConversationTitle = "Untitled conversation"

// NoTab marks a conversation that did not originate from a browser tab.
const NoTab = -1

// AttachmentTypeImage is the only attachment type currently produced by the extension.
const AttachmentTypeImage = "image"

// Attachment is inline binary content carried by a message.
type Attachment struct {
	Type     string `json:"type" validate:"oneof=image"`
	MimeType string `json:"mimeType"`
	DataURL  string `json:"dataUrl"`
}

// ConversationMessage is one entry of a conversation.
//
// A message is either terminal (IsStreaming=false, Content or Error set) or
// in flight (IsStreaming=true, Error empty).
type ConversationMessage struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	CreatedAt   int64        `json:"createdAt"` // Unix ms
	ModelID     string       `json:"modelId,omitempty"`
	BranchID    string       `json:"branchId,omitempty"`
	IsStreaming bool         `json:"isStreaming"`
	Error       string       `json:"error,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Conversation is owned by the conversation repository and mutated only through it.
type Conversation struct {
	ID         string                `json:"id"`
	TabID      int                   `json:"tabId"`
	Title      string                `json:"title"`
	URL        string                `json:"url,omitempty"`
	ShortcutID string                `json:"shortcutId,omitempty"`
	CreatedAt  int64                 `json:"createdAt"` // Unix ms
	UpdatedAt  int64                 `json:"updatedAt"` // Unix ms, never decreases
	Messages   []ConversationMessage `json:"messages"`
}

// Clone returns a deep copy so callers cannot alias snapshot state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cc := *c
	cc.Messages = make([]ConversationMessage, len(c.Messages))
	for i, m := range c.Messages {
		cc.Messages[i] = m.Clone()
	}
	return &cc
}

// Clone returns a copy with its own attachment slice.
func (m ConversationMessage) Clone() ConversationMessage {
	mm := m
	mm.Attachments = append([]Attachment{}, m.Attachments...)
	return mm
}

// MessageIndex returns the position of messageID or -1.
func (c *Conversation) MessageIndex(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// ConversationInit describes the conversation ensure should find or create.
type ConversationInit struct {
	ConversationID string `json:"conversationId,omitempty"`
	TabID          *int   `json:"tabId,omitempty"`
	Title          string `json:"title,omitempty"`
	URL            string `json:"url,omitempty"`
	ShortcutID     string `json:"shortcutId,omitempty"`
}

// MessagePatch is merged field by field onto an existing message. Nil fields are left untouched;
// a non-nil empty Error clears the error.
type MessagePatch struct {
	Content     *string       `json:"content,omitempty"`
	ModelID     *string       `json:"modelId,omitempty"`
	BranchID    *string       `json:"branchId,omitempty"`
	IsStreaming *bool         `json:"isStreaming,omitempty"`
	Error       *string       `json:"error,omitempty"`
	Attachments *[]Attachment `json:"attachments,omitempty"`
}

// MetaPatch updates conversation metadata. Nil fields are left untouched.
type MetaPatch struct {
	Title      *string `json:"title,omitempty"`
	URL        *string `json:"url,omitempty"`
	ShortcutID *string `json:"shortcutId,omitempty"`
}

// ConversationExport is returned by the export operation.
type ConversationExport struct {
	Format   string `json:"format"`
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}
