package handler

import (
	"log/slog"
	"net/http"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the conversation repository and the append turn.
type ConversationHandler struct {
	conversations *service.ConversationService
	chat          *service.ChatService
	logger        *slog.Logger
}

func NewConversationHandler(conversations *service.ConversationService, chat *service.ChatService) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		chat:          chat,
		logger:        utils.GetLogger(),
	}
}

func (h *ConversationHandler) RegisterRoutes(r *gin.RouterGroup) {
	convs := r.Group("/conversations")
	{
		convs.GET("", h.List)
		convs.POST("", h.Ensure)
		convs.POST("/append", h.Append)
		convs.GET("/:id", h.Get)
		convs.PATCH("/:id", h.UpdateMeta)
		convs.DELETE("/:id", h.Delete)
		convs.POST("/:id/clear", h.Clear)
		convs.GET("/:id/export", h.Export)
		convs.PATCH("/:id/messages/:messageId", h.UpdateMessage)
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.conversations.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", list)
}

func (h *ConversationHandler) Ensure(c *gin.Context) {
	var init models.ConversationInit
	if err := c.ShouldBindJSON(&init); err != nil {
		badRequest(c, err)
		return
	}
	conv, err := h.conversations.Ensure(c.Request.Context(), init)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", conv)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", conv)
}

func (h *ConversationHandler) UpdateMeta(c *gin.Context) {
	var patch models.MetaPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	conv, err := h.conversations.UpdateMeta(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Updated", conv)
}

func (h *ConversationHandler) UpdateMessage(c *gin.Context) {
	var patch models.MessagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	conv, err := h.conversations.UpdateMessage(c.Request.Context(), c.Param("id"), c.Param("messageId"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Updated", conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.conversations.Remove(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Deleted", nil)
}

func (h *ConversationHandler) Clear(c *gin.Context) {
	conv, err := h.conversations.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Cleared", conv)
}

// Export returns the Markdown export. With ?download=true the Markdown is
// sent as an attachment instead of JSON.
func (h *ConversationHandler) Export(c *gin.Context) {
	export, err := h.conversations.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.Content))
		return
	}
	ok(c, "OK", export)
}

// Append runs one turn. With ?stream=true fragments are pushed as SSE
// "fragment" events followed by a "done" event carrying the conversation,
// or an "error" event.
func (h *ConversationHandler) Append(c *gin.Context) {
	var req models.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if c.Query("stream") != "true" {
		conv, err := h.chat.AppendTurn(c.Request.Context(), &req, nil)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, "OK", conv)
		return
	}

	sse := NewSSEWriter(c)
	conv, err := h.chat.AppendTurn(c.Request.Context(), &req, func(f service.Fragment) {
		if err := sse.WriteEvent("fragment", f); err != nil {
			h.logger.Debug("Failed to write fragment", "conversationID", f.ConversationID, "error", err)
		}
	})
	if err != nil {
		h.logger.Warn("Append turn failed", "conversationID", req.ConversationID, "error", err)
		_ = sse.WriteEvent("error", gin.H{"error": err.Error(), "code": statusFor(err)})
		return
	}
	_ = sse.WriteEvent("done", conv)
}
