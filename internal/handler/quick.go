package handler

import (
	"strconv"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ---------- quick templates ----------

type quickTemplateReq struct {
	Type        string          `json:"type" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Icon        string          `json:"icon"`
	CategoryID  *uint           `json:"categoryId"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   uint            `json:"accountId" binding:"required"`
	ShowInQuick *bool           `json:"showInQuick"`
}

type quickTemplatePatchReq struct {
	Name        *string          `json:"name"`
	Icon        *string          `json:"icon"`
	CategoryID  nullableID       `json:"categoryId"`
	Amount      *decimal.Decimal `json:"amount"`
	AccountID   *uint            `json:"accountId"`
	ShowInQuick *bool            `json:"showInQuick"`
}

// ListQuickTemplates filters on ?type= and ?showInQuick=true|false.
func (h *LedgerHandler) ListQuickTemplates(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	f := ledger.QuickTemplateFilter{Type: c.Query("type")}
	if v := c.Query("showInQuick"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "invalid showInQuick")
			return
		}
		f.ShowInQuick = &b
	}
	list, err := h.Store.ListQuickTemplates(c.Request.Context(), user.ID, f)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) GetQuickTemplate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Store.GetQuickTemplate(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"template": t})
}

// CreateQuickTemplate shows the template in the quick bar unless
// showInQuick is false.
func (h *LedgerHandler) CreateQuickTemplate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req quickTemplateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateAmount(req.Amount); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.Store.CreateQuickTemplate(c.Request.Context(), user.ID, ledger.QuickTemplateInput{
		Type:        req.Type,
		Name:        req.Name,
		Icon:        req.Icon,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		AccountID:   req.AccountID,
		ShowInQuick: req.ShowInQuick == nil || *req.ShowInQuick,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"template": t})
}

func (h *LedgerHandler) UpdateQuickTemplate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req quickTemplatePatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if req.Amount != nil {
		if err := util.ValidateAmount(*req.Amount); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	t, err := h.Store.UpdateQuickTemplate(c.Request.Context(), user.ID, id, ledger.QuickTemplatePatch{
		Name:          req.Name,
		Icon:          req.Icon,
		CategoryID:    req.CategoryID.ID,
		ClearCategory: req.CategoryID.Set && req.CategoryID.ID == nil,
		Amount:        req.Amount,
		AccountID:     req.AccountID,
		ShowInQuick:   req.ShowInQuick,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"template": t})
}

func (h *LedgerHandler) DeleteQuickTemplate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteQuickTemplate(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}
