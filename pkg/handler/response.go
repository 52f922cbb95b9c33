package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoModelAvailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, models.Response{Code: status, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request: " + err.Error()})
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: message, Data: data})
}

func tabParam(c *gin.Context) (int, bool) {
	tabID, err := strconv.Atoi(c.Param("tabId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid tab id"})
		return 0, false
	}
	return tabID, true
}
