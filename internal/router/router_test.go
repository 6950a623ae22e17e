package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jezerjjv/saving-back/internal/app"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/config"
	"github.com/Jezerjjv/saving-back/internal/router"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t *testing.T
	r *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	v := viper.New()
	v.Set("server.mode", gin.TestMode)
	v.Set("jwt.secret", "test-secret")
	v.Set("security.bcrypt_cost", 4)
	v.Set("security.encryption_key", "audit-key")
	v.Set("backup.dir", t.TempDir())
	v.Set("scheduler.timezone", "UTC")
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	a := app.Build(cfg, testutil.NewDB(t), clock.NewFixed(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)))
	return &api{t: t, r: router.SetupRouter(cfg, a.Services())}
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func (a *api) do(method, path, token string, body interface{}) (int, envelope, string) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env, w.Body.String()
}

func (a *api) login(username string) string {
	a.t.Helper()
	code, _, body := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "password": "Secret123", "confirm_password": "Secret123",
	})
	require.Equal(a.t, http.StatusCreated, code, body)
	code, env, body := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": "Secret123",
	})
	require.Equal(a.t, http.StatusOK, code, body)
	return env.Data["token"].(string)
}

func (a *api) createAccount(token, name, balance string) uint {
	a.t.Helper()
	code, env, body := a.do(http.MethodPost, "/api/accounts", token, map[string]string{"name": name, "balance": balance})
	require.Equal(a.t, http.StatusCreated, code, body)
	return uint(env.Data["account"].(map[string]interface{})["id"].(float64))
}

func (a *api) balance(token string, id uint) string {
	a.t.Helper()
	code, env, body := a.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d", id), token, nil)
	require.Equal(a.t, http.StatusOK, code, body)
	return decimal.RequireFromString(env.Data["account"].(map[string]interface{})["balance"].(string)).StringFixed(2)
}

func TestHealthAndAuth(t *testing.T) {
	a := newAPI(t)

	code, env, _ := a.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Data["status"])

	code, env, _ = a.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40101, env.Code)

	code, _, _ = a.do(http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, _ = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ana", "password": "weak", "confirm_password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	token := a.login("ana")
	code, env, _ = a.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ana", env.Data["user"].(map[string]interface{})["username"])

	code, _, _ = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ANA", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFixedExpenseApplyFlow(t *testing.T) {
	a := newAPI(t)
	token := a.login("ana")
	main := a.createAccount(token, "Main", "1000")

	code, env, body := a.do(http.MethodPost, "/api/fixed-expenses", token, map[string]interface{}{
		"name": "Rent", "amount": "800", "accountId": main, "dayOfMonth": 1,
	})
	require.Equal(t, http.StatusCreated, code, body)
	rentID := uint(env.Data["item"].(map[string]interface{})["id"].(float64))

	code, env, body = a.do(http.MethodPost, "/api/fixed-expenses/apply-month", token, map[string]int{"month": 3, "year": 2024})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 1, env.Data["count"])
	created := env.Data["created"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2024-03-01T12:00:00Z", created["date"])
	assert.Equal(t, "200.00", a.balance(token, main))

	code, env, _ = a.do(http.MethodPost, "/api/fixed-expenses/apply-month?month=3&year=2024", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, env.Data["count"])
	assert.NotNil(t, env.Data["created"])

	code, env, _ = a.do(http.MethodPost, fmt.Sprintf("/api/fixed-expenses/%d/apply?month=3&year=2024", rentID), token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 40901, env.Code)

	code, _, _ = a.do(http.MethodPost, fmt.Sprintf("/api/fixed-expenses/%d/apply?month=4&year=2024", rentID), token, nil)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "-600.00", a.balance(token, main))

	code, env, _ = a.do(http.MethodPost, "/api/fixed-expenses/apply-month", token, map[string]int{"month": 13})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40001, env.Code)

	code, _, _ = a.do(http.MethodPost, "/api/fixed-incomes/999/apply", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransfersAndScoping(t *testing.T) {
	a := newAPI(t)
	ana := a.login("ana")
	bob := a.login("bob")
	main := a.createAccount(ana, "Main", "100")
	savings := a.createAccount(ana, "Savings", "0")

	code, env, _ := a.do(http.MethodPost, "/api/transfers", ana, map[string]interface{}{
		"fromAccountId": main, "toAccountId": savings, "amount": "500",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "insufficient funds")

	code, env, body := a.do(http.MethodPost, "/api/transfers", ana, map[string]interface{}{
		"fromAccountId": main, "toAccountId": savings, "amount": "40", "date": "2024-03-10",
	})
	require.Equal(t, http.StatusCreated, code, body)
	trID := uint(env.Data["transfer"].(map[string]interface{})["id"].(float64))
	assert.Equal(t, "60.00", a.balance(ana, main))
	assert.Equal(t, "40.00", a.balance(ana, savings))

	code, _, _ = a.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d", main), bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/transfers/%d", trID), bob, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/transfers/%d", trID), ana, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100.00", a.balance(ana, main))
	assert.Equal(t, "0.00", a.balance(ana, savings))
}

func TestInterestSettingsAndExport(t *testing.T) {
	a := newAPI(t)
	token := a.login("ana")
	main := a.createAccount(token, "Main", "50")

	code, env, _ := a.do(http.MethodPost, "/api/interest/apply", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, env.Data["skipped"])
	assert.Equal(t, "no_accounts", env.Data["reason"])

	code, env, body := a.do(http.MethodPut, "/api/settings", token, map[string]interface{}{
		"exchangeRateUsdToEur": 0.9, "theme": "dark",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "dark", env.Data["theme"])
	code, _, _ = a.do(http.MethodPut, "/api/settings", token, map[string]interface{}{"exchangeRateUsdToEur": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, body = a.do(http.MethodPost, "/api/transactions", token, map[string]interface{}{
		"name": "Groceries", "amount": "12.50", "accountId": main, "type": "expense", "date": "2024-03-02",
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, _, body = a.do(http.MethodGet, "/api/transactions/export.csv", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Groceries")
	assert.Contains(t, body, "2024-03-02")

	code, env, _ = a.do(http.MethodGet, "/api/stats/monthly?year=2024&month=3", token, nil)
	require.Equal(t, http.StatusOK, code)
	expense := env.Data["summary"].(map[string]interface{})["expense"].(string)
	assert.True(t, testutil.D("12.5").Equal(decimal.RequireFromString(expense)), expense)

	code, env, _ = a.do(http.MethodGet, "/api/logs?q=transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotZero(t, env.Data["total"])
}

func TestHoldingsRoutesWithoutNetwork(t *testing.T) {
	a := newAPI(t)
	token := a.login("ana")

	code, env, _ := a.do(http.MethodPost, "/api/crypto/daily-close", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no_holdings", env.Data["reason"])
	assert.Equal(t, "2024-03-14", env.Data["date"])

	code, env, body := a.do(http.MethodPost, "/api/stocks/holdings", token, map[string]interface{}{
		"symbol": "aapl", "amountInvested": "1000", "priceBought": "100", "currency": "USD",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "AAPL", env.Data["holding"].(map[string]interface{})["symbol"])

	code, env, _ = a.do(http.MethodGet, "/api/crypto/holdings", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Data["items"])

	code, env, _ = a.do(http.MethodGet, "/api/stocks/holdings/eligible", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, env.Data["eligible"])
	code, env, _ = a.do(http.MethodGet, "/api/crypto/holdings/eligible", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, env.Data["eligible"])
}

func TestCategoriesQuickTemplatesAndCalendar(t *testing.T) {
	a := newAPI(t)
	ana := a.login("ana")
	bob := a.login("bob")
	main := a.createAccount(ana, "Main", "100")

	code, env, body := a.do(http.MethodPost, "/api/categories", ana, map[string]string{"name": "Food"})
	require.Equal(t, http.StatusCreated, code, body)
	food := env.Data["category"].(map[string]interface{})["id"]
	code, env, body = a.do(http.MethodPost, "/api/categories", bob, map[string]string{"name": "Bob stuff"})
	require.Equal(t, http.StatusCreated, code, body)
	bobCat := env.Data["category"].(map[string]interface{})["id"]

	code, _, _ = a.do(http.MethodPost, "/api/transactions", ana, map[string]interface{}{
		"name": "Lunch", "amount": "10", "accountId": main, "type": "expense", "categoryId": bobCat, "date": "2024-03-02",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "100.00", a.balance(ana, main))

	code, env, body = a.do(http.MethodPost, "/api/transactions", ana, map[string]interface{}{
		"name": "Lunch", "amount": "10", "accountId": main, "type": "expense", "categoryId": food, "date": "2024-03-02",
	})
	require.Equal(t, http.StatusCreated, code, body)
	txID := uint(env.Data["transaction"].(map[string]interface{})["id"].(float64))

	code, env, body = a.do(http.MethodPut, fmt.Sprintf("/api/transactions/%d", txID), ana, map[string]interface{}{"name": "Late lunch"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, food, env.Data["transaction"].(map[string]interface{})["categoryId"])

	code, env, body = a.do(http.MethodPut, fmt.Sprintf("/api/transactions/%d", txID), ana, map[string]interface{}{"categoryId": nil})
	require.Equal(t, http.StatusOK, code, body)
	assert.Nil(t, env.Data["transaction"].(map[string]interface{})["categoryId"])

	code, env, _ = a.do(http.MethodGet, "/api/transactions/monthly-summary?year=2024", ana, nil)
	require.Equal(t, http.StatusOK, code)
	months := env.Data["months"].([]interface{})
	require.Len(t, months, 12)
	march := months[2].(map[string]interface{})
	assert.True(t, testutil.D("-10").Equal(decimal.RequireFromString(march["balance"].(string))))

	code, env, _ = a.do(http.MethodGet, "/api/transactions/daily-indicators?year=2024", ana, nil)
	require.Equal(t, http.StatusOK, code)
	days := env.Data["days"].([]interface{})
	require.Len(t, days, 1)
	assert.Equal(t, true, days[0].(map[string]interface{})["hasExpense"])

	code, env, _ = a.do(http.MethodGet, "/api/transactions/grouped?year=2024&month=3", ana, nil)
	require.Equal(t, http.StatusOK, code)
	grouped := env.Data["days"].([]interface{})
	require.Len(t, grouped, 1)
	assert.Equal(t, "2024-03-02", grouped[0].(map[string]interface{})["date"])

	code, env, _ = a.do(http.MethodGet, "/api/transactions/expenses-by-category?year=2024&month=3", ana, nil)
	require.Equal(t, http.StatusOK, code)
	items := env.Data["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Uncategorized", items[0].(map[string]interface{})["name"])
	code, env, _ = a.do(http.MethodGet, "/api/transactions/incomes-by-category?year=2024&month=3", ana, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Data["items"])

	code, env, body = a.do(http.MethodPost, "/api/quick-templates", ana, map[string]interface{}{
		"type": "expense", "name": "Coffee", "amount": "2.5", "accountId": main,
	})
	require.Equal(t, http.StatusCreated, code, body)
	tplID := uint(env.Data["template"].(map[string]interface{})["id"].(float64))
	assert.Equal(t, true, env.Data["template"].(map[string]interface{})["showInQuick"])

	code, _, body = a.do(http.MethodPut, fmt.Sprintf("/api/quick-templates/%d", tplID), ana, map[string]interface{}{"showInQuick": false})
	require.Equal(t, http.StatusOK, code, body)
	code, env, _ = a.do(http.MethodGet, "/api/quick-templates?showInQuick=true", ana, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Data["items"])
	code, _, _ = a.do(http.MethodGet, "/api/quick-templates?showInQuick=maybe", ana, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/quick-templates/%d", tplID), bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/quick-templates/%d", tplID), ana, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env, body = a.do(http.MethodPost, "/api/product-types", ana, map[string]string{"name": "Pension"})
	require.Equal(t, http.StatusCreated, code, body)
	ptID := uint(env.Data["productType"].(map[string]interface{})["id"].(float64))
	code, env, body = a.do(http.MethodPut, fmt.Sprintf("/api/product-types/%d", ptID), ana, map[string]string{"name": "Pension plan"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Pension plan", env.Data["productType"].(map[string]interface{})["name"])
	code, _, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/product-types/%d", ptID), ana, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _, _ = a.do(http.MethodGet, fmt.Sprintf("/api/product-types/%d", ptID), ana, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
