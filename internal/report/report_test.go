package report

import (
	"testing"

	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Month {
	return Month{
		User: "ana",
		Summary: &ledger.MonthSummary{
			Year: 2024, Month: 3,
			Income: testutil.D("1000"), Expense: testutil.D("812.5"), Net: testutil.D("187.5"),
			Count: 2,
			ByCategory: []ledger.CategoryTotal{
				{Name: "Rent | Home", Expense: testutil.D("800")},
				{Name: "Uncategorized", Income: testutil.D("1000"), Expense: testutil.D("12.5")},
			},
		},
		Accounts: []models.Account{
			{Name: "Main", AccountType: "bank", Currency: "EUR", Balance: testutil.D("187.5")},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sample())

	assert.Contains(t, md, "# March 2024 · ana")
	assert.Contains(t, md, "## By category")
	assert.Contains(t, md, `Rent \| Home`)
	assert.Contains(t, md, "| Main | bank |")
	assert.Contains(t, md, "187.50")
}

func TestMarkdownOmitsEmptySections(t *testing.T) {
	md := Markdown(Month{Summary: &ledger.MonthSummary{Year: 2024, Month: 1}})

	assert.Contains(t, md, "# January 2024\n")
	assert.NotContains(t, md, "## By category")
	assert.NotContains(t, md, "## Accounts")
}

func TestHTML(t *testing.T) {
	out, err := HTML(Markdown(sample()))
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>March 2024")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>Main</td>")
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(Markdown(sample()), 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Main")
}
