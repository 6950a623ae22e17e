package handler

import (
	"strings"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves accounts, products, categories, transactions,
// transfers and settings.
type LedgerHandler struct {
	Store    *ledger.Store
	Timeout  Timeout
	PageSize int
}

func NewLedgerHandler(store *ledger.Store, timeout Timeout, pageSize int) *LedgerHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &LedgerHandler{Store: store, Timeout: timeout, PageSize: pageSize}
}

// ---------- accounts ----------

type accountReq struct {
	Name        string          `json:"name" binding:"required"`
	Balance     decimal.Decimal `json:"balance"`
	AccountType string          `json:"accountType"`
	Currency    string          `json:"currency"`
}

type accountPatchReq struct {
	Name        *string `json:"name"`
	AccountType *string `json:"accountType"`
	Currency    *string `json:"currency"`
}

func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Store.ListAccounts(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, err := h.Store.GetAccount(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req accountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateName("name", req.Name, 128); err != nil {
		badRequest(c, err.Error())
		return
	}
	acc, err := h.Store.CreateAccount(c.Request.Context(), user.ID, ledger.AccountInput{
		Name:        strings.TrimSpace(req.Name),
		Balance:     req.Balance,
		AccountType: req.AccountType,
		Currency:    req.Currency,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"account": acc})
}

func (h *LedgerHandler) UpdateAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req accountPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	acc, err := h.Store.UpdateAccount(c.Request.Context(), user.ID, id, ledger.AccountPatch{
		Name:        req.Name,
		AccountType: req.AccountType,
		Currency:    req.Currency,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

// DeleteAccount refuses accounts still referenced by ledger rows.
func (h *LedgerHandler) DeleteAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteAccount(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// ---------- products ----------

type productReq struct {
	Name          string           `json:"name" binding:"required"`
	ProductTypeID *uint            `json:"productTypeId"`
	Balance       decimal.Decimal  `json:"balance"`
	InterestRate  *decimal.Decimal `json:"interestRate"`
}

func (r productReq) input() ledger.ProductInput {
	return ledger.ProductInput{
		Name:          strings.TrimSpace(r.Name),
		ProductTypeID: r.ProductTypeID,
		Balance:       r.Balance,
		InterestRate:  r.InterestRate,
	}
}

func (h *LedgerHandler) ListProducts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.Store.ListProducts(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) CreateProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	p, err := h.Store.CreateProduct(c.Request.Context(), user.ID, id, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"product": p})
}

func (h *LedgerHandler) UpdateProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pid, ok := paramID(c, "productId")
	if !ok {
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	p, err := h.Store.UpdateProduct(c.Request.Context(), user.ID, id, pid, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"product": p})
}

func (h *LedgerHandler) DeleteProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pid, ok := paramID(c, "productId")
	if !ok {
		return
	}
	if err := h.Store.DeleteProduct(c.Request.Context(), user.ID, id, pid); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// ---------- product types ----------

type productTypeReq struct {
	Name string `json:"name" binding:"required"`
	Icon string `json:"icon"`
}

type productTypePatchReq struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

func (h *LedgerHandler) ListProductTypes(c *gin.Context) {
	list, err := h.Store.ListProductTypes(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) CreateProductType(c *gin.Context) {
	var req productTypeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	pt, err := h.Store.CreateProductType(c.Request.Context(), req.Name, req.Icon)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"productType": pt})
}

func (h *LedgerHandler) GetProductType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pt, err := h.Store.GetProductType(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"productType": pt})
}

func (h *LedgerHandler) UpdateProductType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req productTypePatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	pt, err := h.Store.UpdateProductType(c.Request.Context(), id, req.Name, req.Icon)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"productType": pt})
}

func (h *LedgerHandler) DeleteProductType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteProductType(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// ---------- categories ----------

type categoryReq struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

func (h *LedgerHandler) ListCategories(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Store.ListCategories(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) CreateCategory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == nil {
		badRequest(c, "invalid parameters")
		return
	}
	icon := ""
	if req.Icon != nil {
		icon = *req.Icon
	}
	cat, err := h.Store.CreateCategory(c.Request.Context(), user.ID, *req.Name, icon)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"category": cat})
}

func (h *LedgerHandler) UpdateCategory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	cat, err := h.Store.UpdateCategory(c.Request.Context(), user.ID, id, req.Name, req.Icon)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"category": cat})
}

func (h *LedgerHandler) DeleteCategory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteCategory(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}
