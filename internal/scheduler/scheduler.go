// Package scheduler runs the recurring application, daily interest and the
// holdings daily close for every active user on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/holdings"
	"github.com/Jezerjjv/saving-back/internal/interest"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Users lists the users a tick covers.
type Users interface {
	ListUserIDs(ctx context.Context) ([]uint, error)
}

// Recurring materializes fixed entries and periodic transfers.
type Recurring interface {
	ApplyFixedIncomesForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transaction, error)
	ApplyFixedExpensesForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transaction, error)
	ApplyPeriodicTransfersForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transfer, error)
}

type Interest interface {
	ApplyDailyInterest(ctx context.Context, userID uint) (interest.Result, error)
}

type Closer interface {
	RunDailyClose(ctx context.Context, class string, userID uint) (holdings.CloseResult, error)
}

type Options struct {
	Interval    time.Duration
	Concurrency int
	// CloseWindow is how long after local midnight the daily close runs.
	CloseWindow time.Duration
	Location    *time.Location
	Clock       clock.Clock
	Logger      *log.Logger
}

type Scheduler struct {
	users    Users
	rec      Recurring
	interest Interest
	closer   Closer
	opts     Options
	running  atomic.Bool
}

func New(users Users, rec Recurring, in Interest, closer Closer, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Scheduler{users: users, rec: rec, interest: in, closer: closer, opts: opts}
}

// Report summarizes one tick.
type Report struct {
	RunID         string
	Users         int
	Failed        int
	Transactions  int
	Transfers     int
	InterestUsers int
	Closes        int
}

type userOutcome struct {
	failed                 bool
	txs, transfers, closes int
	interestApplied        bool
}

// Run ticks once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.opts.Logger.Printf("scheduler: tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// DayFilters returns the day-of-month filters a tick on now applies: today,
// plus every later day up to 31 when today is the last day of its month.
func DayFilters(now time.Time) []int {
	days := []int{now.Day()}
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if now.Day() == last {
		for d := last + 1; d <= 31; d++ {
			days = append(days, d)
		}
	}
	return days
}

// InCloseWindow reports whether now falls within window after local midnight.
func InCloseWindow(now time.Time, loc *time.Location, window time.Duration) bool {
	l := now.In(loc)
	midnight := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
	return window > 0 && l.Sub(midnight) < window
}

// Tick runs one pass over every user. A user's failure is logged and counted
// without stopping the others. A tick that starts while another is still
// running is skipped.
func (s *Scheduler) Tick(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString()}
	if !s.running.CompareAndSwap(false, true) {
		s.opts.Logger.Printf("scheduler[%s]: previous tick still running, skipped", rep.RunID)
		return rep, nil
	}
	defer s.running.Store(false)

	started := time.Now()
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list users: %w", err)
	}
	rep.Users = len(ids)

	now := s.opts.Clock.Now()
	utc := now.UTC()
	days := DayFilters(utc)
	doClose := s.closer != nil && InCloseWindow(now, s.opts.Location, s.opts.CloseWindow)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			out := s.runUser(gctx, rep.RunID, id, utc, days, doClose)
			mu.Lock()
			defer mu.Unlock()
			if out.failed {
				rep.Failed++
			}
			rep.Transactions += out.txs
			rep.Transfers += out.transfers
			rep.Closes += out.closes
			if out.interestApplied {
				rep.InterestUsers++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.opts.Logger.Printf("scheduler[%s]: %d users, %d transactions, %d transfers, %d interest, %d closes, %d failed in %s",
		rep.RunID, rep.Users, rep.Transactions, rep.Transfers, rep.InterestUsers, rep.Closes, rep.Failed, time.Since(started).Round(time.Millisecond))
	return rep, ctx.Err()
}

// runUser runs every job for one user. Each job is independent: a failing
// or panicking job is logged and the next one still runs.
func (s *Scheduler) runUser(ctx context.Context, runID string, userID uint, now time.Time, days []int, doClose bool) userOutcome {
	var out userOutcome
	month, year := int(now.Month()), now.Year()

	step := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				out.failed = true
				s.opts.Logger.Printf("scheduler[%s]: user %d %s panic: %v\n%s", runID, userID, name, r, debug.Stack())
			}
		}()
		if err := fn(); err != nil {
			out.failed = true
			s.opts.Logger.Printf("scheduler[%s]: user %d %s: %v", runID, userID, name, err)
		}
	}

	for _, day := range days {
		step("fixed incomes", func() error {
			txs, err := s.rec.ApplyFixedIncomesForMonth(ctx, userID, month, year, &day)
			s.logCreated(runID, userID, "income", txs)
			out.txs += len(txs)
			return err
		})
		step("fixed expenses", func() error {
			txs, err := s.rec.ApplyFixedExpensesForMonth(ctx, userID, month, year, &day)
			s.logCreated(runID, userID, "expense", txs)
			out.txs += len(txs)
			return err
		})
		step("periodic transfers", func() error {
			trs, err := s.rec.ApplyPeriodicTransfersForMonth(ctx, userID, month, year, &day)
			for i := range trs {
				s.opts.Logger.Printf("scheduler[%s]: user %d transfer %s %d→%d",
					runID, userID, util.FormatEUR(trs[i].Amount), trs[i].FromAccountID, trs[i].ToAccountID)
			}
			out.transfers += len(trs)
			return err
		})
	}

	step("interest", func() error {
		res, err := s.interest.ApplyDailyInterest(ctx, userID)
		if err != nil {
			return err
		}
		if res.Applied > 0 {
			out.interestApplied = true
			s.opts.Logger.Printf("scheduler[%s]: user %d interest %s on %d accounts",
				runID, userID, util.FormatEUR(res.TotalInterest), res.Applied)
		}
		return nil
	})

	if doClose {
		for _, class := range []string{models.AssetCrypto, models.AssetStock} {
			step(class+" close", func() error {
				res, err := s.closer.RunDailyClose(ctx, class, userID)
				if err != nil {
					return err
				}
				if res.Close != nil {
					out.closes++
					s.opts.Logger.Printf("scheduler[%s]: user %d %s close %s %s",
						runID, userID, class, res.Date, util.FormatEUR(res.Close.TotalValueEUR))
				}
				return nil
			})
		}
	}
	return out
}

func (s *Scheduler) logCreated(runID string, userID uint, kind string, txs []models.Transaction) {
	for i := range txs {
		s.opts.Logger.Printf("scheduler[%s]: user %d fixed %s %q %s", runID, userID, kind, txs[i].Name, util.FormatEUR(txs[i].Amount))
	}
}
