package holdings

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=source.go PriceSource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// ErrRateLimited is returned by a source answering 429.
var ErrRateLimited = errors.New("price source rate limited")

// Quote is a last price. A zero EUR or USD side means the source did not
// provide it.
type Quote struct {
	EUR decimal.Decimal
	USD decimal.Decimal
}

// PriceSource fetches current quotes for a set of symbols. Symbols the
// source does not know are absent from the result.
type PriceSource interface {
	Fetch(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// jwget performs an HTTP GET and decodes the JSON body into data.
func jwget(ctx context.Context, client *http.Client, addr string, data interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}

// number extracts one float at path. jsonpath may wrap a single answer in a
// list, the first element is kept.
func number(path string, obj interface{}) (decimal.Decimal, bool) {
	v, err := jsonpath.Get(path, obj)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return decimal.Decimal{}, false
		}
		v = list[0]
	}
	f, ok := v.(float64)
	if !ok {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func defaultClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// CoinGecko quotes crypto ids through the simple/price endpoint.
type CoinGecko struct {
	Base   string
	Client *http.Client
}

func NewCoinGecko(base string, timeout time.Duration) *CoinGecko {
	return &CoinGecko{Base: strings.TrimRight(base, "/"), Client: defaultClient(nil, timeout)}
}

func (c *CoinGecko) Fetch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := map[string]Quote{}
	if len(symbols) == 0 {
		return out, nil
	}
	addr := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=eur,usd", c.Base, url.QueryEscape(strings.Join(symbols, ",")))
	var obj interface{}
	if err := jwget(ctx, defaultClient(c.Client, 0), addr, &obj); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	for _, s := range symbols {
		eur, okE := number(fmt.Sprintf(`$[%q].eur`, s), obj)
		usd, okU := number(fmt.Sprintf(`$[%q].usd`, s), obj)
		if okE && okU {
			out[s] = Quote{EUR: eur, USD: usd}
		}
	}
	return out, nil
}

// Yahoo quotes stock tickers in USD through the chart endpoint, one request
// per symbol. A failing symbol is skipped; the call fails only when every
// symbol failed.
type Yahoo struct {
	Base   string
	Client *http.Client
}

func NewYahoo(base string, timeout time.Duration) *Yahoo {
	return &Yahoo{Base: strings.TrimRight(base, "/"), Client: defaultClient(nil, timeout)}
}

func (y *Yahoo) Fetch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := map[string]Quote{}
	var lastErr error
	for _, s := range symbols {
		addr := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.Base, url.PathEscape(s))
		var obj interface{}
		if err := jwget(ctx, defaultClient(y.Client, 0), addr, &obj); err != nil {
			lastErr = err
			if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
				break
			}
			continue
		}
		price, ok := number("$.chart.result[0].meta.regularMarketPrice", obj)
		if !ok {
			price, ok = number("$.chart.result[0].meta.previousClose", obj)
		}
		if ok {
			out[s] = Quote{USD: price}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("yahoo: %w", lastErr)
	}
	return out, nil
}
