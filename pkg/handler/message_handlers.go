package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/gin-gonic/gin"
)

type messageFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// MessageHandler dispatches extension message envelopes to the services.
type MessageHandler struct {
	conversations *service.ConversationService
	chat          *service.ChatService
	config        *service.ConfigService
	pages         *PageHandler
	extraction    *service.ExtractionService
	sync          *service.SyncService
	routes        map[string]messageFunc
	logger        *slog.Logger
}

func NewMessageHandler(conversations *service.ConversationService, chat *service.ChatService, config *service.ConfigService,
	pages *PageHandler, extraction *service.ExtractionService, sync *service.SyncService) *MessageHandler {
	h := &MessageHandler{
		conversations: conversations,
		chat:          chat,
		config:        config,
		pages:         pages,
		extraction:    extraction,
		sync:          sync,
		logger:        utils.GetLogger(),
	}
	h.routes = map[string]messageFunc{
		models.MsgConfigGet:          h.configGet,
		models.MsgConfigSet:          h.configSet,
		models.MsgConfigReset:        h.configReset,
		models.MsgPageStateGet:       h.pageStateGet,
		models.MsgExtractRun:         h.extractRun,
		models.MsgConversationList:   h.conversationList,
		models.MsgConversationGet:    h.conversationGet,
		models.MsgConversationAppend: h.conversationAppend,
		models.MsgConversationUpdate: h.conversationUpdate,
		models.MsgConversationClear:  h.conversationClear,
		models.MsgConversationDelete: h.conversationDelete,
		models.MsgConversationExport: h.conversationExport,
		models.MsgSyncRun:            h.syncRun,
	}
	return h
}

func (h *MessageHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/messages", h.Handle)
}

// Handle answers one envelope. Operation failures are reported with
// success=false and HTTP 200; only a malformed envelope is a 400.
func (h *MessageHandler) Handle(c *gin.Context) {
	var env models.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, models.EnvelopeResponse{Error: "Invalid message: " + err.Error()})
		return
	}
	fn, found := h.routes[env.Type]
	if !found {
		c.JSON(http.StatusOK, models.EnvelopeResponse{Error: fmt.Sprintf("Unknown message type: %s", env.Type)})
		return
	}
	data, err := fn(c.Request.Context(), env.Payload)
	if err != nil {
		h.logger.Debug("Message failed", "type", env.Type, "error", err)
		c.JSON(http.StatusOK, models.EnvelopeResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.EnvelopeResponse{Success: true, Data: data})
}

func decode[T any](payload json.RawMessage) (*T, error) {
	v := new(T)
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return v, nil
}

func (h *MessageHandler) configGet(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.config.Get(ctx)
}

func (h *MessageHandler) configSet(ctx context.Context, payload json.RawMessage) (any, error) {
	cfg, err := decode[models.ConfigDocument](payload)
	if err != nil {
		return nil, err
	}
	return h.config.Set(ctx, cfg)
}

func (h *MessageHandler) configReset(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.config.Reset(ctx)
}

func (h *MessageHandler) pageStateGet(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[models.PageStateRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.TabID == nil {
		return nil, nil
	}
	ps, err := h.pages.pageState(ctx, *req.TabID)
	if err != nil || ps == nil {
		return nil, err
	}
	return ps, nil
}

func (h *MessageHandler) extractRun(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[models.ExtractRequest](payload)
	if err != nil {
		return nil, err
	}
	return h.extraction.RunForTab(ctx, req.TabID, req.URL, req.Mode)
}

func (h *MessageHandler) conversationList(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.conversations.List(ctx)
}

func (h *MessageHandler) conversationGet(ctx context.Context, payload json.RawMessage) (any, error) {
	ref, err := decode[models.ConversationRef](payload)
	if err != nil {
		return nil, err
	}
	return h.conversations.Get(ctx, ref.ConversationID)
}

func (h *MessageHandler) conversationAppend(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[models.AppendRequest](payload)
	if err != nil {
		return nil, err
	}
	return h.chat.AppendTurn(ctx, req, nil)
}

func (h *MessageHandler) conversationUpdate(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[models.UpdateConversationRequest](payload)
	if err != nil {
		return nil, err
	}
	return h.conversations.UpdateMeta(ctx, req.ConversationID, models.MetaPatch{
		Title:      req.Title,
		URL:        req.URL,
		ShortcutID: req.ShortcutID,
	})
}

func (h *MessageHandler) conversationClear(ctx context.Context, payload json.RawMessage) (any, error) {
	ref, err := decode[models.ConversationRef](payload)
	if err != nil {
		return nil, err
	}
	return h.conversations.Clear(ctx, ref.ConversationID)
}

func (h *MessageHandler) conversationDelete(ctx context.Context, payload json.RawMessage) (any, error) {
	ref, err := decode[models.ConversationRef](payload)
	if err != nil {
		return nil, err
	}
	return nil, h.conversations.Remove(ctx, ref.ConversationID)
}

func (h *MessageHandler) conversationExport(ctx context.Context, payload json.RawMessage) (any, error) {
	ref, err := decode[models.ConversationRef](payload)
	if err != nil {
		return nil, err
	}
	if ref.Format != "" && ref.Format != "markdown" {
		return nil, fmt.Errorf("unsupported export format %q", ref.Format)
	}
	return h.conversations.Export(ctx, ref.ConversationID)
}

func (h *MessageHandler) syncRun(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.sync.Sync(ctx)
}
