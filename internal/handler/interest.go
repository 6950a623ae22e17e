package handler

import (
	"github.com/Jezerjjv/saving-back/internal/interest"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
)

type InterestHandler struct {
	Engine  *interest.Engine
	Timeout Timeout
}

func NewInterestHandler(engine *interest.Engine, timeout Timeout) *InterestHandler {
	return &InterestHandler{Engine: engine, Timeout: timeout}
}

// Apply runs today's accrual now. A second call on the same UTC day is a
// skipped no-op, not an error.
func (h *InterestHandler) Apply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	res, err := h.Engine.ApplyDailyInterest(ctx, user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{
		"applied":       res.Applied,
		"totalInterest": res.TotalInterest,
		"skipped":       res.Skipped,
		"reason":        res.Reason,
	})
}

func (h *InterestHandler) Eligible(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Engine.Eligible(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *InterestHandler) History(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	month, ok := queryInt(c, "month")
	if !ok {
		return
	}
	list, err := h.Engine.History(c.Request.Context(), user.ID, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}
