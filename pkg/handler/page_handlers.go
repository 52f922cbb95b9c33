package handler

import (
	"context"
	"errors"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/gin-gonic/gin"
)

// PageHandler serves per-tab state and page extraction.
type PageHandler struct {
	config        *service.ConfigService
	pages         *service.PageStateService
	conversations *service.ConversationService
	extraction    *service.ExtractionService
}

func NewPageHandler(config *service.ConfigService, pages *service.PageStateService, conversations *service.ConversationService,
	extraction *service.ExtractionService) *PageHandler {
	return &PageHandler{config: config, pages: pages, conversations: conversations, extraction: extraction}
}

func (h *PageHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/page-state/:tabId", h.Get)
	r.POST("/page-state/:tabId", h.Ensure)
	r.DELETE("/page-state/:tabId", h.Clear)
	r.POST("/extract", h.Extract)
}

// pageState returns the tab's state with its linked conversation attached,
// or nil for an unknown tab.
func (h *PageHandler) pageState(ctx context.Context, tabID int) (*models.PageState, error) {
	ps, found := h.pages.Get(tabID)
	if !found {
		return nil, nil
	}
	if ps.ConversationID == "" {
		return ps, nil
	}
	conv, err := h.conversations.Get(ctx, ps.ConversationID)
	switch {
	case err == nil:
		ps.Conversation = conv
	case !errors.Is(err, service.ErrNotFound):
		return nil, err
	}
	return ps, nil
}

// Get returns the page state of a tab; data is null when the tab is unknown.
func (h *PageHandler) Get(c *gin.Context) {
	tabID, valid := tabParam(c)
	if !valid {
		return
	}
	ps, err := h.pageState(c.Request.Context(), tabID)
	if err != nil {
		fail(c, err)
		return
	}
	if ps == nil {
		ok(c, "OK", nil)
		return
	}
	ok(c, "OK", ps)
}

// Ensure registers a tab, idle in the configured extraction mode unless
// ?mode= names one.
func (h *PageHandler) Ensure(c *gin.Context) {
	tabID, valid := tabParam(c)
	if !valid {
		return
	}
	mode := c.Query("mode")
	if mode == "" {
		cfg, err := h.config.Get(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		mode = cfg.Extraction.DefaultMode
	}
	ok(c, "OK", h.pages.Ensure(tabID, mode))
}

func (h *PageHandler) Clear(c *gin.Context) {
	tabID, valid := tabParam(c)
	if !valid {
		return
	}
	h.pages.Clear(tabID)
	ok(c, "Cleared", nil)
}

func (h *PageHandler) Extract(c *gin.Context) {
	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.extraction.RunForTab(c.Request.Context(), req.TabID, req.URL, req.Mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", res)
}
