package handler

import (
	"strings"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/recurring"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RecurringHandler serves fixed incomes, fixed expenses and periodic
// transfers, including the apply-now endpoints.
type RecurringHandler struct {
	Engine  *recurring.Engine
	Timeout Timeout
}

func NewRecurringHandler(engine *recurring.Engine, timeout Timeout) *RecurringHandler {
	return &RecurringHandler{Engine: engine, Timeout: timeout}
}

type fixedReq struct {
	Name       string          `json:"name" binding:"required"`
	CategoryID *uint           `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  uint            `json:"accountId" binding:"required"`
	DayOfMonth int             `json:"dayOfMonth"`
}

func (r fixedReq) input() recurring.FixedInput {
	return recurring.FixedInput{
		Name:       strings.TrimSpace(r.Name),
		CategoryID: r.CategoryID,
		Amount:     r.Amount,
		AccountID:  r.AccountID,
		DayOfMonth: r.DayOfMonth,
	}
}

type periodicReq struct {
	FromAccountID uint            `json:"fromAccountId" binding:"required"`
	ToAccountID   uint            `json:"toAccountId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	DayOfMonth    int             `json:"dayOfMonth"`
}

func (r periodicReq) input() recurring.PeriodicInput {
	return recurring.PeriodicInput{
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		Description:   strings.TrimSpace(r.Description),
		DayOfMonth:    r.DayOfMonth,
	}
}

// applyReq selects the period to apply. Zero month or year means the
// current one; Day narrows to definitions due on that day.
type applyReq struct {
	Month int  `json:"month" form:"month"`
	Year  int  `json:"year" form:"year"`
	Day   *int `json:"day" form:"day"`
}

func bindApply(c *gin.Context) (applyReq, bool) {
	var req applyReq
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid month, year or day")
		return req, false
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid month, year or day")
			return req, false
		}
	}
	if req.Day != nil {
		if err := util.ValidateDay(*req.Day); err != nil {
			badRequest(c, err.Error())
			return req, false
		}
	}
	return req, true
}

// ---------- fixed incomes / expenses ----------

func (h *RecurringHandler) ListFixed(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		list, err := h.Engine.Definitions().ListFixed(c.Request.Context(), kind, user.ID)
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"items": list})
	}
}

func (h *RecurringHandler) GetFixed(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		def, err := h.Engine.Definitions().GetFixed(c.Request.Context(), kind, user.ID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"item": def})
	}
}

func (h *RecurringHandler) CreateFixed(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req fixedReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid parameters")
			return
		}
		def, err := h.Engine.Definitions().CreateFixed(c.Request.Context(), kind, user.ID, req.input())
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Created(c, util.Response{"item": def})
	}
}

func (h *RecurringHandler) UpdateFixed(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req fixedReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid parameters")
			return
		}
		def, err := h.Engine.Definitions().UpdateFixed(c.Request.Context(), kind, user.ID, id, req.input())
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"item": def})
	}
}

func (h *RecurringHandler) DeleteFixed(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := h.Engine.Definitions().DeleteFixed(c.Request.Context(), kind, user.ID, id); err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"message": "deleted"})
	}
}

// ApplyFixedMonth materializes every pending definition of kind for the
// requested month.
func (h *RecurringHandler) ApplyFixedMonth(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		req, ok := bindApply(c)
		if !ok {
			return
		}
		ctx, cancel := h.Timeout.ctx(c)
		defer cancel()
		created, err := h.Engine.ApplyFixedForMonth(ctx, kind, user.ID, req.Month, req.Year, req.Day)
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"created": created, "count": len(created)})
	}
}

// ApplyFixedOne answers 409 when the definition was already applied in the
// requested month.
func (h *RecurringHandler) ApplyFixedOne(kind recurring.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		req, ok := bindApply(c)
		if !ok {
			return
		}
		ctx, cancel := h.Timeout.ctx(c)
		defer cancel()
		t, err := h.Engine.ApplySingleFixed(ctx, kind, user.ID, id, req.Month, req.Year)
		if err != nil {
			respondErr(c, err)
			return
		}
		if t == nil {
			respondErr(c, apperr.ErrConflict)
			return
		}
		util.Created(c, util.Response{"transaction": t})
	}
}

// ---------- periodic transfers ----------

func (h *RecurringHandler) ListPeriodic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Engine.Definitions().ListPeriodic(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *RecurringHandler) GetPeriodic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.Engine.Definitions().GetPeriodic(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"item": p})
}

func (h *RecurringHandler) CreatePeriodic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req periodicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	p, err := h.Engine.Definitions().CreatePeriodic(c.Request.Context(), user.ID, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"item": p})
}

func (h *RecurringHandler) UpdatePeriodic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req periodicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	p, err := h.Engine.Definitions().UpdatePeriodic(c.Request.Context(), user.ID, id, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"item": p})
}

func (h *RecurringHandler) DeletePeriodic(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Engine.Definitions().DeletePeriodic(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

func (h *RecurringHandler) ApplyPeriodicMonth(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	req, ok := bindApply(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	created, err := h.Engine.ApplyPeriodicTransfersForMonth(ctx, user.ID, req.Month, req.Year, req.Day)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"created": created, "count": len(created)})
}

func (h *RecurringHandler) ApplyPeriodicOne(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, ok := bindApply(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	t, err := h.Engine.ApplySinglePeriodicTransfer(ctx, user.ID, id, req.Month, req.Year)
	if err != nil {
		respondErr(c, err)
		return
	}
	if t == nil {
		respondErr(c, apperr.ErrConflict)
		return
	}
	util.Created(c, util.Response{"transfer": t})
}
