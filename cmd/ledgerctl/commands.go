package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/app"
	"github.com/Jezerjjv/saving-back/internal/config"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/report"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/google/subcommands"
	"gorm.io/gorm"
)

func openApp() (*app.App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

// resolveUsers turns the -user flag into user ids. Empty or "all" selects
// every user; a number is an id; anything else is a username.
func resolveUsers(ctx context.Context, a *app.App, user string) ([]uint, error) {
	user = strings.TrimSpace(user)
	if user == "" || user == "all" {
		return a.Store.ListUserIDs(ctx)
	}
	if id, err := strconv.ParseUint(user, 10, 64); err == nil {
		return []uint{uint(id)}, nil
	}
	var u models.User
	err := a.DB.WithContext(ctx).Where("LOWER(username) = LOWER(?)", user).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no user %q", user)
	}
	if err != nil {
		return nil, err
	}
	return []uint{u.ID}, nil
}

func fail(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// period fills zero month/year from the current UTC month.
func period(month, year int) (int, int) {
	now := time.Now().UTC()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return month, year
}

type applyCmd struct {
	user        string
	month, year int
	day         int
}

func (*applyCmd) Name() string     { return "apply" }
func (*applyCmd) Synopsis() string { return "apply fixed incomes, fixed expenses and periodic transfers for a month" }
func (*applyCmd) Usage() string {
	return `ledgerctl apply [-user <id|name|all>] [-month <m>] [-year <y>] [-day <d>]

  Materializes every recurring definition for the month. Definitions already
  applied that month are skipped. With -day only definitions due that day run.
`
}

func (c *applyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "all", "user id, username or all")
	f.IntVar(&c.month, "month", 0, "month 1-12, default current")
	f.IntVar(&c.year, "year", 0, "year, default current")
	f.IntVar(&c.day, "day", 0, "only definitions due on this day of month")
}

func (c *applyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail("%v", err)
	}
	ids, err := resolveUsers(ctx, a, c.user)
	if err != nil {
		return fail("resolving user: %v", err)
	}
	month, year := period(c.month, c.year)
	var day *int
	if c.day != 0 {
		if err := util.ValidateDay(c.day); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		day = &c.day
	}

	status := subcommands.ExitSuccess
	for _, id := range ids {
		incomes, err := a.Recurring.ApplyFixedIncomesForMonth(ctx, id, month, year, day)
		if err != nil {
			status = fail("user %d incomes: %v", id, err)
			continue
		}
		expenses, err := a.Recurring.ApplyFixedExpensesForMonth(ctx, id, month, year, day)
		if err != nil {
			status = fail("user %d expenses: %v", id, err)
			continue
		}
		transfers, err := a.Recurring.ApplyPeriodicTransfersForMonth(ctx, id, month, year, day)
		if err != nil {
			status = fail("user %d transfers: %v", id, err)
			continue
		}
		fmt.Printf("user %d %04d-%02d: %d incomes, %d expenses, %d transfers\n",
			id, year, month, len(incomes), len(expenses), len(transfers))
	}
	return status
}

type interestCmd struct {
	user string
}

func (*interestCmd) Name() string     { return "interest" }
func (*interestCmd) Synopsis() string { return "accrue one day of interest" }
func (*interestCmd) Usage() string {
	return `ledgerctl interest [-user <id|name|all>]

  Accrues today's interest on every interest-bearing account. A user already
  accrued today is skipped.
`
}

func (c *interestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "all", "user id, username or all")
}

func (c *interestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail("%v", err)
	}
	ids, err := resolveUsers(ctx, a, c.user)
	if err != nil {
		return fail("resolving user: %v", err)
	}
	status := subcommands.ExitSuccess
	for _, id := range ids {
		res, err := a.Interest.ApplyDailyInterest(ctx, id)
		if err != nil {
			status = fail("user %d: %v", id, err)
			continue
		}
		if res.Applied == 0 {
			fmt.Printf("user %d: nothing accrued (%s)\n", id, res.Reason)
			continue
		}
		fmt.Printf("user %d: %d accounts, %s\n", id, res.Applied, util.FormatEUR(res.TotalInterest))
	}
	return status
}

type closeCmd struct {
	user  string
	class string
}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "record yesterday's holdings close" }
func (*closeCmd) Usage() string {
	return `ledgerctl close [-user <id|name|all>] [-class crypto|stock|all]

  Values the holdings at current prices and records the close for yesterday
  in the scheduler's time zone. A day already closed is left untouched.
`
}

func (c *closeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "all", "user id, username or all")
	f.StringVar(&c.class, "class", "all", "asset class: crypto, stock or all")
}

func (c *closeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var classes []string
	switch c.class {
	case "all":
		classes = []string{models.AssetCrypto, models.AssetStock}
	case models.AssetCrypto, models.AssetStock:
		classes = []string{c.class}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown class %q\n", c.class)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		return fail("%v", err)
	}
	ids, err := resolveUsers(ctx, a, c.user)
	if err != nil {
		return fail("resolving user: %v", err)
	}
	status := subcommands.ExitSuccess
	for _, id := range ids {
		for _, class := range classes {
			res, err := a.Holdings.RunDailyClose(ctx, class, id)
			if err != nil {
				status = fail("user %d %s: %v", id, class, err)
				continue
			}
			fmt.Printf("user %d %s %s: %s\n", id, class, res.Date, res.Reason)
		}
	}
	return status
}

type tickCmd struct{}

func (*tickCmd) Name() string     { return "tick" }
func (*tickCmd) Synopsis() string { return "run one scheduler pass over every user" }
func (*tickCmd) Usage() string {
	return `ledgerctl tick

  Runs what one scheduler tick does: recurring entries due today, daily
  interest and, inside the close window, the holdings close.
`
}

func (*tickCmd) SetFlags(*flag.FlagSet) {}

func (*tickCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail("%v", err)
	}
	rep, err := a.Scheduler.Tick(ctx)
	if err != nil {
		return fail("tick: %v", err)
	}
	fmt.Printf("run %s: %d users, %d transactions, %d transfers, %d interest, %d closes, %d failed\n",
		rep.RunID, rep.Users, rep.Transactions, rep.Transfers, rep.InterestUsers, rep.Closes, rep.Failed)
	if rep.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	user        string
	month, year int
	html        bool
	out         string
	width       int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print a user's monthly summary" }
func (*reportCmd) Usage() string {
	return `ledgerctl report -user <id|name> [-month <m>] [-year <y>] [-html] [-o <file>]

  Prints income, expense and net for the month, the totals per category and
  the current account balances.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "user id or username")
	f.IntVar(&c.month, "month", 0, "month 1-12, default current")
	f.IntVar(&c.year, "year", 0, "year, default current")
	f.BoolVar(&c.html, "html", false, "write HTML instead of terminal output")
	f.StringVar(&c.out, "o", "", "output file, default stdout")
	f.IntVar(&c.width, "width", 100, "terminal width for word wrap")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.user == "all" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return fail("%v", err)
	}
	ids, err := resolveUsers(ctx, a, c.user)
	if err != nil {
		return fail("resolving user: %v", err)
	}
	id := ids[0]
	month, year := period(c.month, c.year)

	sum, err := a.Store.MonthlySummary(ctx, id, year, time.Month(month))
	if err != nil {
		return fail("summary: %v", err)
	}
	accounts, err := a.Store.ListAccounts(ctx, id)
	if err != nil {
		return fail("accounts: %v", err)
	}
	var u models.User
	if err := a.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return fail("user %d: %v", id, err)
	}

	md := report.Markdown(report.Month{User: u.Username, Summary: sum, Accounts: accounts})
	var out string
	if c.html {
		out, err = report.HTML(md)
	} else {
		out, err = report.Terminal(md, c.width)
	}
	if err != nil {
		return fail("%v", err)
	}

	if c.out == "" {
		fmt.Print(out)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.out, []byte(out), 0o644); err != nil {
		return fail("writing %s: %v", c.out, err)
	}
	fmt.Printf("Report written to %s\n", c.out)
	return subcommands.ExitSuccess
}
