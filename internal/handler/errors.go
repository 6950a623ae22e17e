package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser returns the user set by the auth middleware, writing 401 when
// there is none.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("currentUser")
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	return user, true
}

// respondErr maps the apperr taxonomy onto the response envelope.
func respondErr(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
	case apperr.IsNotFound(err):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "not found")
	case apperr.IsConflict(err):
		util.Error(c, http.StatusConflict, util.CodeConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		util.Error(c, http.StatusGatewayTimeout, util.CodeServerErr, "request timed out")
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "internal error")
	}
}

func badRequest(c *gin.Context, msg string) {
	util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, msg)
}

// paramID parses a positive :name path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &n, true
}

// page reads page/page_size the way the audit log list always has.
func page(c *gin.Context, def int) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(def)))
	if size <= 0 || size > 100 {
		size = def
	}
	return page, size
}

// Timeout bounds request contexts for handlers that run engine operations.
type Timeout time.Duration

func (t Timeout) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if t <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), time.Duration(t))
}
