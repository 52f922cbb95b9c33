package models

import "encoding/json"

// Message envelope types understood by POST /api/messages.
const (
	MsgConfigGet          = "config:get"
	MsgConfigSet          = "config:set"
	MsgConfigReset        = "config:reset"
	MsgPageStateGet       = "page-state:get"
	MsgExtractRun         = "extract:run"
	MsgConversationList   = "conversation:list"
	MsgConversationGet    = "conversation:get"
	MsgConversationAppend = "conversation:append"
	MsgConversationUpdate = "conversation:update"
	MsgConversationClear  = "conversation:clear"
	MsgConversationDelete = "conversation:delete"
	MsgConversationExport = "conversation:export"
	MsgSyncRun            = "sync:run"
)

// Envelope is one request from an extension surface.
type Envelope struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnvelopeResponse mirrors the extension's messaging response shape.
type EnvelopeResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AppendRequest is the payload of conversation:append.
type AppendRequest struct {
	ConversationID string       `json:"conversationId,omitempty"`
	TabID          *int         `json:"tabId,omitempty"`
	Title          string       `json:"title,omitempty"`
	URL            string       `json:"url,omitempty"`
	Message        string       `json:"message"`
	ModelID        string       `json:"modelId"`
	ModelIDs       []string     `json:"modelIds,omitempty"`
	ShortcutID     string       `json:"shortcutId,omitempty"`
	Context        *string      `json:"context,omitempty"` // nil means "use the tab's extraction"
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// ConversationRef is the payload of the single-conversation message types.
type ConversationRef struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Format         string `json:"format,omitempty"`
}

// UpdateConversationRequest is the payload of conversation:update.
type UpdateConversationRequest struct {
	ConversationID string  `json:"conversationId"`
	Title          *string `json:"title,omitempty"`
	URL            *string `json:"url,omitempty"`
	ShortcutID     *string `json:"shortcutId,omitempty"`
}

// PageStateRequest is the payload of page-state:get.
type PageStateRequest struct {
	TabID *int `json:"tabId,omitempty"`
}

// ExtractRequest is the payload of extract:run.
type ExtractRequest struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url" binding:"required"`
	Mode  string `json:"mode,omitempty"`
}

// SyncResult is returned by sync:run.
type SyncResult struct {
	Provider    string `json:"provider"`
	Skipped     bool   `json:"skipped"`
	CompletedAt int64  `json:"completedAt"`
}

// Response is the envelope used by the REST handlers.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
