package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/cloudwego/eino/schema"
)

const (
	contextSnippetRunes = 400
	historySnippetRunes = 160
	historySnippetCount = 4
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// DeterministicProvider never touches the network. It drafts a reproducible
// reply from the request so a branch always has something to stream.
type DeterministicProvider struct {
	kind  string
	label string
}

func NewDeterministicProvider(model *models.LanguageModel) *DeterministicProvider {
	p := &DeterministicProvider{kind: models.ProviderDeterministic, label: "fallback"}
	if model != nil {
		if model.Provider != "" {
			p.kind = model.Provider
		}
		p.label = model.DisplayName()
	}
	return p
}

func (p *DeterministicProvider) ID() string { return p.kind }

func (p *DeterministicProvider) CreateStream(_ context.Context, req *Request) (*schema.StreamReader[string], error) {
	return schema.StreamReaderFromArray(SplitKeepingWhitespace(p.Draft(req))), nil
}

// Draft renders the full deterministic reply.
func (p *DeterministicProvider) Draft(req *Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %s (%s) response\n", p.label, p.kind)

	body := strings.TrimSpace(req.Prompt)
	if body == "" {
		body = "(empty message)"
	}
	b.WriteString(body)

	if req.Context != "" {
		fmt.Fprintf(&b, "\nContext snippet:\n%s\n", truncateRunes(req.Context, contextSnippetRunes))
	}
	if len(req.History) > 0 {
		recent := req.History
		if len(recent) > historySnippetCount {
			recent = recent[len(recent)-historySnippetCount:]
		}
		lines := make([]string, 0, len(recent))
		for _, h := range recent {
			lines = append(lines, fmt.Sprintf("%s> %s", h.Role, truncateRunes(h.Content, historySnippetRunes)))
		}
		fmt.Fprintf(&b, "\nHistory:\n%s\n", strings.Join(lines, "\n"))
	}
	if req.SystemPrompt != "" {
		fmt.Fprintf(&b, "\nSystem prompt: %s\n", req.SystemPrompt)
	}
	b.WriteString("\n-- End of deterministic draft --")
	return b.String()
}

// SplitKeepingWhitespace splits s into words and the whitespace runs between them.
// Concatenating the result yields s.
func SplitKeepingWhitespace(s string) []string {
	var parts []string
	last := 0
	for _, loc := range whitespaceRun.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			parts = append(parts, s[last:loc[0]])
		}
		parts = append(parts, s[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
