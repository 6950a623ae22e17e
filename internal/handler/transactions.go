package handler

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ---------- transactions ----------

type transactionReq struct {
	Name       string          `json:"name" binding:"required"`
	CategoryID *uint           `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  uint            `json:"accountId" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	SubType    string          `json:"subType"`
	Date       string          `json:"date"`
}

// nullableID tells an absent field from an explicit null.
type nullableID struct {
	Set bool
	ID  *uint
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.ID = nil
		return nil
	}
	var id uint
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.ID = &id
	return nil
}

type transactionPatchReq struct {
	Name       *string          `json:"name"`
	CategoryID nullableID       `json:"categoryId"`
	Amount     *decimal.Decimal `json:"amount"`
	AccountID  *uint            `json:"accountId"`
	Type       *string          `json:"type"`
	SubType    *string          `json:"subType"`
	Date       *string          `json:"date"`
}

// optDate parses an optional YYYY-MM-DD date as noon UTC.
func optDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := util.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	f := ledger.TransactionFilter{Type: c.Query("type")}
	for name, dst := range map[string]*int{"year": &f.Year, "month": &f.Month} {
		v, ok := queryInt(c, name)
		if !ok {
			return
		}
		if v != nil {
			*dst = *v
		}
	}
	if v := c.Query("accountId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid accountId")
			return
		}
		f.AccountID = uint(n)
	}
	if v := c.Query("categoryId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid categoryId")
			return
		}
		f.CategoryID = uint(n)
	}
	p, size := page(c, h.PageSize)
	f.Limit, f.Offset = size, (p-1)*size

	list, total, err := h.Store.ListTransactions(c.Request.Context(), user.ID, f)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{
		"items": list,
		"total": total,
		"page":  p,
		"size":  size,
	})
}

func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Store.GetTransaction(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"transaction": t})
}

func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req transactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateAmount(req.Amount); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := optDate(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.Store.CreateTransaction(c.Request.Context(), user.ID, ledger.TransactionInput{
		Name:       strings.TrimSpace(req.Name),
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		AccountID:  req.AccountID,
		Type:       req.Type,
		SubType:    req.SubType,
		Date:       date,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"transaction": t})
}

func (h *LedgerHandler) UpdateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req transactionPatchReq
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
	p := ledger.TransactionPatch{
		Name:          req.Name,
		CategoryID:    req.CategoryID.ID,
		ClearCategory: req.CategoryID.Set && req.CategoryID.ID == nil,
		Amount:        req.Amount,
		AccountID:     req.AccountID,
		Type:          req.Type,
		SubType:       req.SubType,
	}
	if req.Date != nil {
		d, err := util.ParseDate(strings.TrimSpace(*req.Date))
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		p.Date = &d
	}
	t, err := h.Store.UpdateTransaction(c.Request.Context(), user.ID, id, p)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"transaction": t})
}

func (h *LedgerHandler) DeleteTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteTransaction(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// period reads ?year= and ?month=, defaulting each to the current UTC month.
func (h *LedgerHandler) period(c *gin.Context) (year int, month time.Month, ok bool) {
	now := h.Store.Clock().Now().UTC()
	year, month = now.Year(), now.Month()
	y, ok := queryInt(c, "year")
	if !ok {
		return 0, 0, false
	}
	m, ok := queryInt(c, "month")
	if !ok {
		return 0, 0, false
	}
	if y != nil {
		year = *y
	}
	if m != nil {
		month = time.Month(*m)
	}
	return year, month, true
}

// MonthlyStats defaults to the current UTC month.
func (h *LedgerHandler) MonthlyStats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	year, month, ok := h.period(c)
	if !ok {
		return
	}
	sum, err := h.Store.MonthlySummary(c.Request.Context(), user.ID, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"summary": sum})
}

// YearStats lists income, expense and balance for each month of ?year=.
func (h *LedgerHandler) YearStats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	year, _, ok := h.period(c)
	if !ok {
		return
	}
	months, err := h.Store.YearSummary(c.Request.Context(), user.ID, year)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"year": year, "months": months})
}

func (h *LedgerHandler) DailyIndicators(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	year, _, ok := h.period(c)
	if !ok {
		return
	}
	days, err := h.Store.DailyIndicators(c.Request.Context(), user.ID, year)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"year": year, "days": days})
}

// GroupedTransactions lists every transaction unless both year and month
// are given.
func (h *LedgerHandler) GroupedTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	year, month := 0, time.Month(0)
	if c.Query("year") != "" && c.Query("month") != "" {
		if year, month, ok = h.period(c); !ok {
			return
		}
	}
	days, err := h.Store.GroupedTransactions(c.Request.Context(), user.ID, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"days": days})
}

// TotalsByCategory serves the per-category totals of one transaction type.
func (h *LedgerHandler) TotalsByCategory(txType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		year, month, ok := h.period(c)
		if !ok {
			return
		}
		items, err := h.Store.TotalsByCategory(c.Request.Context(), user.ID, txType, year, month)
		if err != nil {
			respondErr(c, err)
			return
		}
		util.Success(c, util.Response{"items": items})
	}
}

// ---------- transfers ----------

type transferReq struct {
	FromAccountID uint            `json:"fromAccountId" binding:"required"`
	ToAccountID   uint            `json:"toAccountId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
}

func (h *LedgerHandler) ListTransfers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	y, ok := queryInt(c, "year")
	if !ok {
		return
	}
	m, ok := queryInt(c, "month")
	if !ok {
		return
	}
	year, month := 0, 0
	if y != nil {
		year = *y
	}
	if m != nil {
		month = *m
	}
	list, err := h.Store.ListTransfers(c.Request.Context(), user.ID, year, month)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) GetTransfer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Store.GetTransfer(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"transfer": t})
}

// CreateTransfer rejects a transfer larger than the origin balance.
func (h *LedgerHandler) CreateTransfer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req transferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateAmount(req.Amount); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := optDate(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	from, err := h.Store.GetAccount(ctx, user.ID, req.FromAccountID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if from.Balance.LessThan(req.Amount) {
		badRequest(c, "insufficient funds in "+from.Name)
		return
	}
	t, err := h.Store.CreateTransfer(ctx, user.ID, ledger.TransferInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		Date:          date,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"transfer": t})
}

func (h *LedgerHandler) DeleteTransfer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteTransfer(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// ---------- settings ----------

func (h *LedgerHandler) GetSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := h.Store.GetSettings(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response(st.Map()))
}

// UpdateSettings upserts every key of the JSON object body.
func (h *LedgerHandler) UpdateSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "body must be a JSON object")
		return
	}
	st, err := h.Store.UpdateSettings(c.Request.Context(), user.ID, patch)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response(st.Map()))
}
