// Package report renders a user's month as Markdown, for the terminal
// through glamour or as HTML through goldmark.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Month is the data behind one monthly report.
type Month struct {
	User     string
	Summary  *ledger.MonthSummary
	Accounts []models.Account
}

// escape keeps table cells from breaking the row.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Markdown renders m. Totals are shown in euros, balances in each account's
// own currency.
func Markdown(m Month) string {
	var b strings.Builder
	s := m.Summary
	title := time.Month(s.Month).String()
	fmt.Fprintf(&b, "# %s %d", title, s.Year)
	if m.User != "" {
		fmt.Fprintf(&b, " · %s", escape(m.User))
	}
	b.WriteString("\n\n")

	b.WriteString("| Income | Expense | Net | Transactions |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %s | %s | %s | %d |\n\n",
		util.FormatEUR(s.Income), util.FormatEUR(s.Expense), util.FormatEUR(s.Net), s.Count)

	if len(s.ByCategory) > 0 {
		b.WriteString("## By category\n\n")
		b.WriteString("| Category | Income | Expense |\n")
		b.WriteString("|---|---:|---:|\n")
		for _, ct := range s.ByCategory {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escape(ct.Name), util.FormatEUR(ct.Income), util.FormatEUR(ct.Expense))
		}
		b.WriteString("\n")
	}

	if len(m.Accounts) > 0 {
		b.WriteString("## Accounts\n\n")
		b.WriteString("| Account | Type | Balance |\n")
		b.WriteString("|---|---|---:|\n")
		for _, a := range m.Accounts {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escape(a.Name), a.AccountType, util.FormatMoney(a.Balance, a.Currency))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML converts Markdown to an HTML fragment with GitHub-style tables.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := conv.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Terminal styles Markdown for a terminal of the given width.
func Terminal(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
