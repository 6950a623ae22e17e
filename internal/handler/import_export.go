package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"Date", "Type", "Name", "Category", "Account", "Amount", "Sub-type"}

// exportRows loads the user's transactions (optionally one year or month)
// as display rows, newest first.
func (h *LedgerHandler) exportRows(c *gin.Context, userID uint) ([][]string, bool) {
	ctx := c.Request.Context()
	f := ledger.TransactionFilter{Type: c.Query("type")}
	y, ok := queryInt(c, "year")
	if !ok {
		return nil, false
	}
	m, ok := queryInt(c, "month")
	if !ok {
		return nil, false
	}
	if y != nil {
		f.Year = *y
	}
	if m != nil {
		f.Month = *m
	}

	txs, _, err := h.Store.ListTransactions(ctx, userID, f)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	accs, err := h.Store.ListAccounts(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	cats, err := h.Store.ListCategories(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	accByID := make(map[uint]*models.Account, len(accs))
	for i := range accs {
		accByID[accs[i].ID] = &accs[i]
	}
	catName := make(map[uint]string, len(cats))
	for _, cat := range cats {
		catName[cat.ID] = cat.Name
	}

	rows := make([][]string, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		account, currency := "", models.CurrencyEUR
		if a, ok := accByID[t.AccountID]; ok {
			account, currency = a.Name, a.Currency
		}
		category := ""
		if t.CategoryID != nil {
			category = catName[*t.CategoryID]
		}
		sub := ""
		switch {
		case t.IncomeType != nil:
			sub = *t.IncomeType
		case t.ExpenseType != nil:
			sub = *t.ExpenseType
		}
		rows = append(rows, []string{
			t.Date.UTC().Format("2006-01-02"),
			t.Type,
			t.Name,
			category,
			account,
			util.FormatMoney(t.Delta(), currency),
			sub,
		})
	}
	return rows, true
}

func (h *LedgerHandler) exportName(ext string) string {
	return fmt.Sprintf("transactions_%s.%s", h.Store.Clock().Now().Format("20060102"), ext)
}

// ExportCSV streams the user's transactions as CSV.
func (h *LedgerHandler) ExportCSV(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	rows, ok := h.exportRows(c, user.ID)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", h.exportName("csv")))

	// UTF-8 BOM so spreadsheet apps pick the right encoding
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	_ = w.WriteAll(rows)
}

// ExportXLSX writes the user's transactions as a single-sheet workbook.
func (h *LedgerHandler) ExportXLSX(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	rows, ok := h.exportRows(c, user.ID)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Transactions"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create sheet failed")
		return
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for i, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 30)
	_ = f.SetColWidth(sheet, "D", "E", 18)
	_ = f.SetColWidth(sheet, "F", "F", 16)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", h.exportName("xlsx")))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("export xlsx for user %d: %v", user.ID, err)
	}
}
