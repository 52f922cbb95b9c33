package handler

import (
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	sync *service.SyncService
}

func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

func (h *SyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sync", h.Run)
}

func (h *SyncHandler) Run(c *gin.Context) {
	res, err := h.sync.Sync(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", res)
}
