// Package llm turns configured model records into text fragment streams.
package llm

import (
	"context"
	"strings"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/cloudwego/eino/schema"
)

// HistoryEntry is one prior message handed to a provider.
type HistoryEntry struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Request is what a provider answers. Only Prompt is required.
type Request struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Context      string
	History      []HistoryEntry
	Attachments  []models.Attachment
}

// Provider produces a finite, single-consumption stream of text fragments.
// A retry needs a fresh CreateStream call.
type Provider interface {
	ID() string
	CreateStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error)
}

// BuildMessages converts a request into eino chat messages.
// Image attachments are only sent to models that accept them.
func BuildMessages(model *models.LanguageModel, req *Request) []*schema.Message {
	var msgs []*schema.Message

	var system strings.Builder
	system.WriteString(strings.TrimSpace(req.SystemPrompt))
	if ctxText := strings.TrimSpace(req.Context); ctxText != "" {
		if system.Len() > 0 {
			system.WriteString("\n\n")
		}
		system.WriteString("Page context:\n")
		system.WriteString(ctxText)
	}
	if system.Len() > 0 {
		msgs = append(msgs, schema.SystemMessage(system.String()))
	}

	for _, h := range req.History {
		switch h.Role {
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(h.Content, nil))
		case models.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(h.Content))
		default:
			msgs = append(msgs, schema.UserMessage(h.Content))
		}
	}

	var images []models.Attachment
	if model != nil && model.SupportsImages {
		for _, a := range req.Attachments {
			if a.Type == models.AttachmentTypeImage && a.DataURL != "" {
				images = append(images, a)
			}
		}
	}
	if len(images) == 0 {
		msgs = append(msgs, schema.UserMessage(req.Prompt))
		return msgs
	}

	parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: req.Prompt}}
	for _, img := range images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:    img.DataURL,
				Detail: "auto",
			},
		})
	}
	msgs = append(msgs, &schema.Message{Role: schema.User, MultiContent: parts})
	return msgs
}
