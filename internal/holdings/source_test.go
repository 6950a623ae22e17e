package holdings_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jezerjjv/saving-back/internal/holdings"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGeckoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "eur,usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"bitcoin":{"eur":60000.5,"usd":65000},"ethereum":{"eur":3000}}`))
	}))
	defer srv.Close()

	src := holdings.NewCoinGecko(srv.URL+"/", time.Second)
	got, err := src.Fetch(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, testutil.D("60000.5").Equal(got["bitcoin"].EUR))
	assert.True(t, testutil.D("65000").Equal(got["bitcoin"].USD))
}

func TestCoinGeckoRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := holdings.NewCoinGecko(srv.URL, time.Second).Fetch(context.Background(), []string{"bitcoin"})
	assert.True(t, errors.Is(err, holdings.ErrRateLimited))
}

func TestYahooFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"):
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":189.5}}]}}`))
		case strings.HasSuffix(r.URL.Path, "/MSFT"):
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"previousClose":410}}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := holdings.NewYahoo(srv.URL, time.Second)
	got, err := src.Fetch(context.Background(), []string{"AAPL", "MSFT", "NOPE"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, testutil.D("189.5").Equal(got["AAPL"].USD))
	assert.True(t, got["AAPL"].EUR.IsZero())
	assert.True(t, testutil.D("410").Equal(got["MSFT"].USD))

	_, err = src.Fetch(context.Background(), []string{"NOPE"})
	assert.Error(t, err)
}
