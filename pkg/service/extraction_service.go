package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
)

const (
	maxExtractedRunes  = 50000
	maxFetchBytes      = 8 << 20
	defaultJinaBaseURL = "https://r.jina.ai"
)

// noiseSelectors are removed before the main content is located.
const noiseSelectors = "script, style, noscript, nav, footer, header, aside, iframe, svg, form"

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher fetches pages with a plain GET.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := httpGet(ctx, f.client, rawURL, map[string]string{
		"User-Agent": f.userAgent,
		"Accept":     "text/html,application/xhtml+xml",
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// BrowserFetcher renders pages in headless Chrome so script-built content is
// present. An empty RemoteURL starts a local browser.
type BrowserFetcher struct {
	RemoteURL string
	UserAgent string
}

func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if f.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, f.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(f.UserAgent))
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return html, nil
}

func httpGet(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// ExtractReadable strips page chrome from html and converts the main content
// to Markdown.
func ExtractReadable(html string) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(noiseSelectors).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main, [role=main]").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	inner, err := root.Html()
	if err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(inner)
	if err != nil {
		return "", "", fmt.Errorf("convert to markdown: %w", err)
	}
	return title, truncate(strings.TrimSpace(md), maxExtractedRunes), nil
}

// parseJina splits a Jina reader response into title and body.
func parseJina(body string) (title, content string) {
	content = body
	if strings.HasPrefix(body, "Title: ") {
		line, _, _ := strings.Cut(body, "\n")
		title = strings.TrimSpace(strings.TrimPrefix(line, "Title: "))
	}
	if _, after, found := strings.Cut(body, "Markdown Content:\n"); found {
		content = after
	}
	return title, truncate(strings.TrimSpace(content), maxExtractedRunes)
}

// ExtractionService produces page content for tabs and tracks the
// extraction state of each tab.
type ExtractionService struct {
	config      *ConfigService
	pages       *PageStateService
	fetcher     Fetcher
	client      *http.Client
	jinaBaseURL string
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewExtractionService(config *ConfigService, pages *PageStateService, fetcher Fetcher, timeout time.Duration) *ExtractionService {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil, "")
	}
	return &ExtractionService{
		config:      config,
		pages:       pages,
		fetcher:     fetcher,
		client:      &http.Client{},
		jinaBaseURL: defaultJinaBaseURL,
		timeout:     timeout,
		now:         time.Now,
		logger:      utils.GetLogger(),
	}
}

// SetJinaBaseURL points jina mode at another reader endpoint.
func (s *ExtractionService) SetJinaBaseURL(u string) {
	s.jinaBaseURL = strings.TrimRight(u, "/")
}

// Extract fetches rawURL in the given mode without touching tab state.
func (s *ExtractionService) Extract(ctx context.Context, rawURL, mode string) (*models.ExtractionResult, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = cfg.Extraction.DefaultMode
	}
	if IsBlacklisted(cfg.Blacklist, rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrBlacklisted, rawURL)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if mode == models.ExtractionJina {
		res, err := s.extractJina(ctx, rawURL, cfg.Extraction.JinaAPIKey)
		if err == nil {
			return res, nil
		}
		s.logger.Warn("Jina extraction failed, falling back to readability", "url", rawURL, "error", err)
	}
	return s.extractReadability(ctx, rawURL)
}

func (s *ExtractionService) extractReadability(ctx context.Context, rawURL string) (*models.ExtractionResult, error) {
	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	title, content, err := ExtractReadable(html)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionResult{
		Title:   title,
		Content: content,
		Source:  models.ExtractionReadability,
		URL:     rawURL,
	}, nil
}

func (s *ExtractionService) extractJina(ctx context.Context, rawURL, apiKey string) (*models.ExtractionResult, error) {
	headers := map[string]string{"Accept": "text/plain"}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	body, err := httpGet(ctx, s.client, s.jinaBaseURL+"/"+rawURL, headers)
	if err != nil {
		return nil, err
	}
	title, content := parseJina(body)
	return &models.ExtractionResult{
		Title:   title,
		Content: content,
		Source:  models.ExtractionJina,
		URL:     rawURL,
	}, nil
}

// RunForTab extracts rawURL for a tab, moving its state through loading to
// ready or error.
func (s *ExtractionService) RunForTab(ctx context.Context, tabID int, rawURL, mode string) (*models.ExtractionResult, error) {
	if mode == "" {
		cfg, err := s.config.Get(ctx)
		if err != nil {
			return nil, err
		}
		mode = cfg.Extraction.DefaultMode
	}

	s.pages.Ensure(tabID, mode)
	loading, empty := models.ExtractionLoading, ""
	s.pages.SetExtraction(tabID, models.ExtractionPatch{Status: &loading, Mode: &mode, Error: &empty})

	res, err := s.Extract(ctx, rawURL, mode)
	fetchedAt := s.now().UnixMilli()
	if err != nil {
		status, msg := models.ExtractionError, err.Error()
		s.pages.SetExtraction(tabID, models.ExtractionPatch{Status: &status, FetchedAt: &fetchedAt, Error: &msg})
		s.logger.Warn("Extraction failed", "tabID", tabID, "url", rawURL, "error", err)
		return nil, err
	}

	ready := models.ExtractionReady
	s.pages.SetExtraction(tabID, models.ExtractionPatch{Status: &ready, FetchedAt: &fetchedAt, Result: res, Error: &empty})
	s.logger.Debug("Extraction completed", "tabID", tabID, "source", res.Source, "chars", len(res.Content))
	return res, nil
}
