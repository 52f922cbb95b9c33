package handler

import (
	"net/http"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/gin-gonic/gin"
)

// SettingsHandler serves the configuration document: general settings,
// language models and shortcuts.
type SettingsHandler struct {
	config    *service.ConfigService
	models    *service.ModelService
	shortcuts *service.ShortcutService
}

func NewSettingsHandler(config *service.ConfigService, models *service.ModelService, shortcuts *service.ShortcutService) *SettingsHandler {
	return &SettingsHandler{config: config, models: models, shortcuts: shortcuts}
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/config", h.GetConfig)
	r.PUT("/config", h.SetConfig)
	r.POST("/config/reset", h.ResetConfig)

	m := r.Group("/models")
	{
		m.GET("", h.ListModels)
		m.POST("", h.AddModel)
		m.GET("/presets", h.Presets)
		m.POST("/test", h.TestModel)
		m.GET("/:id", h.GetModel)
		m.PUT("/:id", h.UpdateModel)
		m.DELETE("/:id", h.DeleteModel)
		m.POST("/:id/enable", h.enable(true))
		m.POST("/:id/disable", h.enable(false))
	}

	s := r.Group("/shortcuts")
	{
		s.GET("", h.ListShortcuts)
		s.POST("", h.CreateShortcut)
		s.POST("/reorder", h.ReorderShortcuts)
		s.GET("/:id", h.GetShortcut)
		s.PUT("/:id", h.UpdateShortcut)
		s.DELETE("/:id", h.DeleteShortcut)
	}
}

func (h *SettingsHandler) GetConfig(c *gin.Context) {
	cfg, err := h.config.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", cfg)
}

func (h *SettingsHandler) SetConfig(c *gin.Context) {
	var cfg models.ConfigDocument
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.config.Set(c.Request.Context(), &cfg)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Updated", saved)
}

func (h *SettingsHandler) ResetConfig(c *gin.Context) {
	cfg, err := h.config.Reset(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Reset", cfg)
}

func (h *SettingsHandler) ListModels(c *gin.Context) {
	list, err := h.models.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", list)
}

func (h *SettingsHandler) GetModel(c *gin.Context) {
	m, err := h.models.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", m)
}

func (h *SettingsHandler) AddModel(c *gin.Context) {
	var m models.LanguageModel
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err)
		return
	}
	added, err := h.models.Add(c.Request.Context(), m)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.Response{Code: 200, Message: "Created", Data: added})
}

func (h *SettingsHandler) UpdateModel(c *gin.Context) {
	var m models.LanguageModel
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.models.Update(c.Request.Context(), c.Param("id"), m)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Updated", updated)
}

func (h *SettingsHandler) DeleteModel(c *gin.Context) {
	if err := h.models.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Deleted", nil)
}

func (h *SettingsHandler) enable(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := h.models.SetEnabled(c.Request.Context(), c.Param("id"), enabled)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, "Updated", m)
	}
}

// TestModel checks connectivity of a model record. Failures are reported in
// the result, not as an HTTP error.
func (h *SettingsHandler) TestModel(c *gin.Context) {
	var m models.LanguageModel
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err)
		return
	}
	ok(c, "OK", h.models.Test(c.Request.Context(), m))
}

func (h *SettingsHandler) Presets(c *gin.Context) {
	ok(c, "OK", h.models.Presets())
}

func (h *SettingsHandler) ListShortcuts(c *gin.Context) {
	list, err := h.shortcuts.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", models.ShortcutListResponse{Shortcuts: list, Total: len(list)})
}

func (h *SettingsHandler) GetShortcut(c *gin.Context) {
	sc, err := h.shortcuts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "OK", sc)
}

func (h *SettingsHandler) CreateShortcut(c *gin.Context) {
	var req models.CreateShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.shortcuts.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.Response{Code: 200, Message: "Created", Data: sc})
}

func (h *SettingsHandler) UpdateShortcut(c *gin.Context) {
	var req models.UpdateShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.shortcuts.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Updated", sc)
}

func (h *SettingsHandler) DeleteShortcut(c *gin.Context) {
	if err := h.shortcuts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Deleted", nil)
}

func (h *SettingsHandler) ReorderShortcuts(c *gin.Context) {
	var req models.ReorderShortcutsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	list, err := h.shortcuts.Reorder(c.Request.Context(), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Reordered", models.ShortcutListResponse{Shortcuts: list, Total: len(list)})
}
