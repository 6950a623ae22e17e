package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyLastInterestRunDate  = "lastInterestRunDate"
	KeyExchangeRateUsdToEur = "exchangeRateUsdToEur"
)

// DefaultExchangeRate is used when no valid USD→EUR rate is stored.
var DefaultExchangeRate = decimal.RequireFromString("0.92")

// Settings is the typed view over a user's app_settings rows. Keys this
// version does not know are kept in Extra and written back untouched.
type Settings struct {
	LastInterestRunDate  string
	ExchangeRateUsdToEur decimal.Decimal
	Extra                map[string]json.RawMessage
}

// Map flattens s into the wire form.
func (s *Settings) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.LastInterestRunDate != "" {
		out[KeyLastInterestRunDate] = s.LastInterestRunDate
	}
	out[KeyExchangeRateUsdToEur] = s.ExchangeRateUsdToEur
	return out
}

func parseRate(raw json.RawMessage) (decimal.Decimal, bool) {
	str := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	d, err := decimal.NewFromString(str)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// GetSettingsTx reads the settings inside tx.
func GetSettingsTx(tx *gorm.DB, userID uint) (*Settings, error) {
	var rows []models.AppSetting
	if err := tx.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, apperr.Infra("load settings", err)
	}
	st := &Settings{
		ExchangeRateUsdToEur: DefaultExchangeRate,
		Extra:                map[string]json.RawMessage{},
	}
	for _, r := range rows {
		raw := json.RawMessage(r.Value)
		switch r.Key {
		case KeyLastInterestRunDate:
			var v string
			if err := json.Unmarshal(raw, &v); err == nil {
				st.LastInterestRunDate = v
			}
		case KeyExchangeRateUsdToEur:
			if d, ok := parseRate(raw); ok {
				st.ExchangeRateUsdToEur = d
			}
		default:
			if json.Valid(raw) {
				st.Extra[r.Key] = raw
			}
		}
	}
	return st, nil
}

// PutSettingTx upserts one key with a JSON-encoded value.
func PutSettingTx(tx *gorm.DB, userID uint, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return apperr.Invalid(key, "value is not JSON encodable")
	}
	row := models.AppSetting{UserID: userID, Key: key, Value: string(b)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error; err != nil {
		return apperr.Infra("upsert setting "+key, err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context, userID uint) (*Settings, error) {
	return GetSettingsTx(s.db.WithContext(ctx), userID)
}

// UpdateSettings upserts every key of patch. Known keys are validated.
func (s *Store) UpdateSettings(ctx context.Context, userID uint, patch map[string]json.RawMessage) (*Settings, error) {
	for k, v := range patch {
		if strings.TrimSpace(k) == "" || len(k) > 64 {
			return nil, apperr.Invalid("key", "must be 1-64 characters")
		}
		if !json.Valid(v) {
			return nil, apperr.Invalid(k, "value must be JSON")
		}
		switch k {
		case KeyExchangeRateUsdToEur:
			if _, ok := parseRate(v); !ok {
				return nil, apperr.Invalid(k, "must be a positive number")
			}
		case KeyLastInterestRunDate:
			var str string
			if err := json.Unmarshal(v, &str); err != nil {
				return nil, apperr.Invalid(k, "must be a date string")
			}
		}
	}

	var out *Settings
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		for k, v := range patch {
			if err := PutSettingTx(tx, userID, k, v); err != nil {
				return err
			}
		}
		var err error
		out, err = GetSettingsTx(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
