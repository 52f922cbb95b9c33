package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/choraleia/thinkbot/pkg/models"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

var (
	lineBreak   = regexp.MustCompile(`\r?\n`)
	nonSlugChar = regexp.MustCompile(`[^a-z0-9]+`)
)

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoMillis)
}

func renderMessage(m models.ConversationMessage) []string {
	header := "## " + strings.ToUpper(string(m.Role))
	if m.ModelID != "" {
		header += " · " + m.ModelID
	}
	lines := []string{header, "_" + formatTimestamp(m.CreatedAt) + "_", ""}

	if body := strings.TrimSpace(m.Content); body != "" {
		lines = append(lines, lineBreak.Split(body, -1)...)
	}
	if m.Error != "" {
		lines = append(lines, "> Error: "+m.Error)
	}
	for i, a := range m.Attachments {
		if a.Type == models.AttachmentTypeImage {
			lines = append(lines, fmt.Sprintf("![attachment-%d](%s)", i+1, a.DataURL))
		}
	}
	return append(lines, "")
}

// ConversationToMarkdown renders conv with a metadata header followed by every
// message in order. The result always ends with exactly one newline.
func ConversationToMarkdown(conv *models.Conversation) string {
	title := conv.Title
	if title == "" {
		title = "Conversation"
	}
	lines := []string{"# " + title}
	if conv.URL != "" {
		lines = append(lines, "[Source]("+conv.URL+")")
	}
	lines = append(lines,
		"- Created: "+formatTimestamp(conv.CreatedAt),
		"- Updated: "+formatTimestamp(conv.UpdatedAt),
		"",
	)
	for _, m := range conv.Messages {
		lines = append(lines, renderMessage(m)...)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// ExportFileName derives a file name from the conversation title.
func ExportFileName(conv *models.Conversation) string {
	slug := strings.Trim(nonSlugChar.ReplaceAllString(strings.ToLower(conv.Title), "-"), "-")
	if slug == "" {
		slug = "conversation"
	}
	return slug + ".md"
}
