package handler

import (
	"strings"

	"github.com/Jezerjjv/saving-back/internal/holdings"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// HoldingsHandler serves one asset class; the router mounts one instance
// under /api/crypto and one under /api/stocks.
type HoldingsHandler struct {
	Service *holdings.Service
	Class   string
	Timeout Timeout
}

func NewHoldingsHandler(svc *holdings.Service, class string, timeout Timeout) *HoldingsHandler {
	return &HoldingsHandler{Service: svc, Class: class, Timeout: timeout}
}

type holdingReq struct {
	Symbol         string          `json:"symbol" binding:"required"`
	AmountInvested decimal.Decimal `json:"amountInvested"`
	PriceBought    decimal.Decimal `json:"priceBought"`
	Currency       string          `json:"currency"`
}

func (r holdingReq) input() holdings.HoldingInput {
	return holdings.HoldingInput{
		Symbol:         r.Symbol,
		AmountInvested: r.AmountInvested,
		PriceBought:    r.PriceBought,
		Currency:       r.Currency,
	}
}

func (h *HoldingsHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Service.List(c.Request.Context(), h.Class, user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

// Eligible reports whether the user holds any asset of the class, which
// gates the daily close.
func (h *HoldingsHandler) Eligible(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	has, err := h.Service.HasHoldings(c.Request.Context(), h.Class, user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"eligible": has})
}

func (h *HoldingsHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	hd, err := h.Service.Get(c.Request.Context(), h.Class, user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"holding": hd})
}

func (h *HoldingsHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req holdingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	hd, err := h.Service.Create(c.Request.Context(), h.Class, user.ID, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"holding": hd})
}

func (h *HoldingsHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req holdingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	hd, err := h.Service.Update(c.Request.Context(), h.Class, user.ID, id, req.input())
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"holding": hd})
}

func (h *HoldingsHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), h.Class, user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// Prices quotes ?symbols=a,b or, without it, every symbol the user holds.
func (h *HoldingsHandler) Prices(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()

	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		list, err := h.Service.List(ctx, h.Class, user.ID)
		if err != nil {
			respondErr(c, err)
			return
		}
		for i := range list {
			symbols = append(symbols, list[i].Symbol)
		}
	}
	if len(symbols) == 0 {
		util.Success(c, util.Response{"prices": map[string]holdings.Price{}})
		return
	}
	prices, err := h.Service.Prices(ctx, h.Class, user.ID, symbols)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"prices": prices})
}

func (h *HoldingsHandler) CloseHistory(c *gin.Context) {
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
	list, err := h.Service.CloseHistory(c.Request.Context(), h.Class, user.ID, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

// RunClose records yesterday's close now; a day already closed is reported
// as skipped.
func (h *HoldingsHandler) RunClose(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	res, err := h.Service.RunDailyClose(ctx, h.Class, user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{
		"date":    res.Date,
		"skipped": res.Skipped,
		"reason":  res.Reason,
		"close":   res.Close,
	})
}

func (h *HoldingsHandler) HoldingHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
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
	list, err := h.Service.HoldingHistory(c.Request.Context(), h.Class, user.ID, id, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}
