// Package holdings tracks crypto and stock positions, their quotes and the
// end-of-day valuation history.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns holdings of both asset classes.
type Service struct {
	store       *ledger.Store
	db          *gorm.DB
	clock       clock.Clock
	loc         *time.Location
	sources     map[string]PriceSource
	minInterval time.Duration

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

type Option func(*Service)

// WithLocation sets the zone whose midnight ends a trading day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMinInterval serves cached quotes when the last fetch of a class is
// younger than d.
func WithMinInterval(d time.Duration) Option {
	return func(s *Service) { s.minInterval = d }
}

func NewService(store *ledger.Store, crypto, stock PriceSource, opts ...Option) *Service {
	s := &Service{
		store:     store,
		db:        store.DB(),
		clock:     store.Clock(),
		loc:       time.Local,
		sources:   map[string]PriceSource{models.AssetCrypto: crypto, models.AssetStock: stock},
		lastFetch: map[string]time.Time{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func checkClass(class string) error {
	if class != models.AssetCrypto && class != models.AssetStock {
		return apperr.Invalid("assetClass", "must be crypto or stock")
	}
	return nil
}

// NormalizeSymbol lower-cases crypto ids and upper-cases stock tickers.
func NormalizeSymbol(class, sym string) string {
	sym = strings.TrimSpace(sym)
	if class == models.AssetStock {
		return strings.ToUpper(sym)
	}
	return strings.ToLower(sym)
}

type HoldingInput struct {
	Symbol         string
	AmountInvested decimal.Decimal
	PriceBought    decimal.Decimal
	Currency       string
}

func (in *HoldingInput) normalize(class string) error {
	in.Symbol = NormalizeSymbol(class, in.Symbol)
	if in.Symbol == "" {
		return apperr.Invalid("symbol", "is required")
	}
	if !in.AmountInvested.IsPositive() {
		return apperr.Invalid("amountInvested", "must be positive")
	}
	if !in.PriceBought.IsPositive() {
		return apperr.Invalid("priceBought", "must be positive")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	switch in.Currency {
	case "":
		in.Currency = models.CurrencyEUR
	case models.CurrencyEUR, models.CurrencyUSD, models.CurrencyUSDT:
	default:
		return apperr.Invalid("currency", "must be EUR, USD or USDT")
	}
	return nil
}

func (s *Service) List(ctx context.Context, class string, userID uint) ([]models.Holding, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	out := []models.Holding{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_class = ?", userID, class).
		Order("symbol, id").
		Find(&out).Error; err != nil {
		return nil, apperr.Infra("list holdings", err)
	}
	return out, nil
}

func loadHolding(db *gorm.DB, class string, userID, id uint) (*models.Holding, error) {
	var h models.Holding
	err := db.Where("id = ? AND user_id = ? AND asset_class = ?", id, userID, class).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s holding %d: %w", class, id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load holding", err)
	}
	return &h, nil
}

func (s *Service) Get(ctx context.Context, class string, userID, id uint) (*models.Holding, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	return loadHolding(s.db.WithContext(ctx), class, userID, id)
}

func (s *Service) Create(ctx context.Context, class string, userID uint, in HoldingInput) (*models.Holding, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	if err := in.normalize(class); err != nil {
		return nil, err
	}
	h := models.Holding{
		UserID:         userID,
		AssetClass:     class,
		Symbol:         in.Symbol,
		AmountInvested: in.AmountInvested,
		PriceBought:    in.PriceBought,
		Currency:       in.Currency,
	}
	if err := s.db.WithContext(ctx).Create(&h).Error; err != nil {
		return nil, apperr.Infra("create holding", err)
	}
	return &h, nil
}

func (s *Service) Update(ctx context.Context, class string, userID, id uint, in HoldingInput) (*models.Holding, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	if err := in.normalize(class); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	h, err := loadHolding(db, class, userID, id)
	if err != nil {
		return nil, err
	}
	h.Symbol = in.Symbol
	h.AmountInvested = in.AmountInvested
	h.PriceBought = in.PriceBought
	h.Currency = in.Currency
	if err := db.Save(h).Error; err != nil {
		return nil, apperr.Infra("update holding", err)
	}
	return h, nil
}

// Delete removes the holding and its daily history.
func (s *Service) Delete(ctx context.Context, class string, userID, id uint) error {
	if err := checkClass(class); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx *gorm.DB) error {
		h, err := loadHolding(tx, class, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("holding_id = ?", h.ID).Delete(&models.HoldingDaily{}).Error; err != nil {
			return apperr.Infra("delete holding history", err)
		}
		if err := tx.Delete(h).Error; err != nil {
			return apperr.Infra("delete holding", err)
		}
		return nil
	})
}

// HasHoldings reports whether the user holds anything of class.
func (s *Service) HasHoldings(ctx context.Context, class string, userID uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Holding{}).
		Where("user_id = ? AND asset_class = ?", userID, class).
		Count(&n).Error; err != nil {
		return false, apperr.Infra("count holdings", err)
	}
	return n > 0, nil
}

// ---------- prices ----------

// Price is a quote as served to callers, flagged when it came from the cache.
type Price struct {
	Symbol    string          `json:"symbol"`
	PriceEUR  decimal.Decimal `json:"priceEur"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Cached    bool            `json:"cached"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func uniqueSymbols(class string, symbols []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(class, s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (s *Service) cached(ctx context.Context, class string, symbols []string) (map[string]models.PriceCache, error) {
	var rows []models.PriceCache
	if err := s.db.WithContext(ctx).
		Where("asset_class = ? AND symbol IN ?", class, symbols).
		Find(&rows).Error; err != nil {
		return nil, apperr.Infra("load price cache", err)
	}
	out := make(map[string]models.PriceCache, len(rows))
	for _, r := range rows {
		out[r.Symbol] = r
	}
	return out, nil
}

func (s *Service) fresh(class string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFetch[class]
	return ok && s.minInterval > 0 && now.Sub(last) < s.minInterval
}

func (s *Service) markFetched(class string, now time.Time) {
	s.mu.Lock()
	s.lastFetch[class] = now
	s.mu.Unlock()
}

// Prices returns quotes for symbols. Live quotes refresh the cache; symbols
// the source could not quote, a rate-limited or failing source and calls
// within the minimum interval are served from the cache. Symbols with no
// quote at all are absent from the result.
func (s *Service) Prices(ctx context.Context, class string, userID uint, symbols []string) (map[string]Price, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	syms := uniqueSymbols(class, symbols)
	out := map[string]Price{}
	if len(syms) == 0 {
		return out, nil
	}

	cache, err := s.cached(ctx, class, syms)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var live map[string]Quote
	var fetchErr error
	missing := false
	for _, sym := range syms {
		if _, ok := cache[sym]; !ok {
			missing = true
			break
		}
	}
	src := s.sources[class]
	if src != nil && (missing || !s.fresh(class, now)) {
		live, fetchErr = src.Fetch(ctx, syms)
		if fetchErr == nil {
			s.markFetched(class, now)
		}
	}

	rate := ledger.DefaultExchangeRate
	if len(live) > 0 {
		st, err := ledger.GetSettingsTx(s.db.WithContext(ctx), userID)
		if err != nil {
			return nil, err
		}
		rate = st.ExchangeRateUsdToEur
	}

	var upserts []models.PriceCache
	for _, sym := range syms {
		if q, ok := live[sym]; ok {
			q = fill(q, rate)
			if q.EUR.IsZero() && q.USD.IsZero() {
				continue
			}
			out[sym] = Price{Symbol: sym, PriceEUR: q.EUR, PriceUSD: q.USD, UpdatedAt: now}
			upserts = append(upserts, models.PriceCache{AssetClass: class, Symbol: sym, PriceEUR: q.EUR, PriceUSD: q.USD, UpdatedAt: now})
			continue
		}
		if c, ok := cache[sym]; ok {
			out[sym] = Price{Symbol: sym, PriceEUR: c.PriceEUR, PriceUSD: c.PriceUSD, Cached: true, UpdatedAt: c.UpdatedAt}
		}
	}

	if len(upserts) > 0 {
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_class"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_eur", "price_usd", "updated_at"}),
		}).Create(&upserts).Error; err != nil {
			return nil, apperr.Infra("save price cache", err)
		}
	}

	if len(out) == 0 && fetchErr != nil {
		return nil, apperr.Infra("fetch "+class+" prices", fetchErr)
	}
	return out, nil
}

// fill derives a missing side of q from the USD→EUR rate.
func fill(q Quote, rate decimal.Decimal) Quote {
	switch {
	case q.EUR.IsZero() && !q.USD.IsZero():
		q.EUR = q.USD.Mul(rate)
	case q.USD.IsZero() && !q.EUR.IsZero() && rate.IsPositive():
		q.USD = q.EUR.Div(rate)
	}
	return q
}
