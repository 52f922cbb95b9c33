package service

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/choraleia/thinkbot/pkg/llm"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenCounter measures and cuts text in model tokens.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, limit int) string
}

// ApproxCounter assumes four characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

func (ApproxCounter) Truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit*4 {
		return text
	}
	return string(r[:limit*4])
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *tiktokenCounter) Truncate(text string, limit int) string {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return trimPartialRune(c.enc.Decode(tokens[:limit]))
}

// trimPartialRune drops a rune left incomplete at the end of s by a cut
// between tokens.
func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax-1 && s != ""; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}

// lazyCounter answers with the approximation until the real encoding has
// loaded in the background.
type lazyCounter struct {
	once   sync.Once
	load   func() (TokenCounter, error)
	loaded atomic.Pointer[TokenCounter]
	done   chan struct{}
}

func newLazyCounter(load func() (TokenCounter, error)) *lazyCounter {
	return &lazyCounter{load: load, done: make(chan struct{})}
}

// start begins loading the encoding without waiting for it.
func (c *lazyCounter) start() {
	c.once.Do(func() {
		go func() {
			defer close(c.done)
			counter, err := c.load()
			if err != nil {
				utils.GetLogger().Warn("Failed to load token encoding, using approximation",
					"encoding", tokenEncoding, "error", err)
				return
			}
			c.loaded.Store(&counter)
		}()
	})
}

func (c *lazyCounter) current() TokenCounter {
	c.start()
	if p := c.loaded.Load(); p != nil {
		return *p
	}
	return ApproxCounter{}
}

func (c *lazyCounter) Count(text string) int {
	return c.current().Count(text)
}

func (c *lazyCounter) Truncate(text string, limit int) string {
	return c.current().Truncate(text, limit)
}

func loadTiktoken() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, err
	}
	return &tiktokenCounter{enc: enc}, nil
}

var defaultCounter = newLazyCounter(loadTiktoken)

// DefaultTokenCounter returns the shared cl100k_base counter. The encoding
// may have to be downloaded, so it loads in the background and the
// approximate counter is used meanwhile or when loading fails.
func DefaultTokenCounter() TokenCounter {
	defaultCounter.start()
	return defaultCounter
}

// TrimContext cuts the page context to budget tokens. A budget of zero or
// less leaves it untouched.
func TrimContext(counter TokenCounter, text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 || text == "" {
		return text
	}
	return counter.Truncate(text, budget)
}

// TrimHistory keeps the most recent entries that fit in budget tokens,
// preserving their order.
func TrimHistory(counter TokenCounter, history []llm.HistoryEntry, budget int) []llm.HistoryEntry {
	if budget <= 0 {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := counter.Count(history[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}

// historyFrom collects completed, successful messages as provider history.
func historyFrom(messages []models.ConversationMessage) []llm.HistoryEntry {
	var out []llm.HistoryEntry
	for _, m := range messages {
		if m.IsStreaming || m.Error != "" || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, llm.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// systemPrompt joins the global system prompt with the shortcut's prompt.
func systemPrompt(cfg *models.ConfigDocument, shortcut *models.Shortcut) string {
	var parts []string
	if p := strings.TrimSpace(cfg.General.SystemPrompt); p != "" {
		parts = append(parts, p)
	}
	if shortcut != nil {
		if p := strings.TrimSpace(shortcut.Prompt); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
