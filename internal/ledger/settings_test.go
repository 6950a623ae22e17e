package ledger_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaultsAndUnknownKeys(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")

	st, err := s.GetSettings(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, st.LastInterestRunDate)
	assert.True(t, ledger.DefaultExchangeRate.Equal(st.ExchangeRateUsdToEur))

	st, err = s.UpdateSettings(ctx, uid, map[string]json.RawMessage{
		"exchangeRateUsdToEur": json.RawMessage(`0.95`),
		"theme":                json.RawMessage(`{"dark":true}`),
	})
	require.NoError(t, err)
	assert.True(t, testutil.D("0.95").Equal(st.ExchangeRateUsdToEur))
	assert.JSONEq(t, `{"dark":true}`, string(st.Extra["theme"]))

	// upsert keeps a single row per key
	_, err = s.UpdateSettings(ctx, uid, map[string]json.RawMessage{"theme": json.RawMessage(`"light"`)})
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&models.AppSetting{}).Where("user_id = ?", uid).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	m := st.Map()
	assert.Contains(t, m, "theme")
	assert.Contains(t, m, ledger.KeyExchangeRateUsdToEur)
}

func TestSettingsRejectBadValues(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")

	for _, raw := range []string{`-1`, `"abc"`, `0`} {
		_, err := s.UpdateSettings(ctx, uid, map[string]json.RawMessage{
			ledger.KeyExchangeRateUsdToEur: json.RawMessage(raw),
		})
		assert.True(t, apperr.IsValidation(err), "rate %s: %v", raw, err)
	}
	_, err := s.UpdateSettings(ctx, uid, map[string]json.RawMessage{
		ledger.KeyLastInterestRunDate: json.RawMessage(`12`),
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestSettingsAreUserScoped(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	ana := testutil.User(t, db, "ana")
	bob := testutil.User(t, db, "bob")

	require.NoError(t, ledger.PutSettingTx(db, ana, ledger.KeyLastInterestRunDate, "2024-03-15"))

	st, err := s.GetSettings(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", st.LastInterestRunDate)

	st, err = s.GetSettings(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, st.LastInterestRunDate)
}
