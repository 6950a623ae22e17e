package ledger_test

import (
	"context"
	"testing"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickTemplateLifecycle(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "100")
	cat, err := s.CreateCategory(ctx, uid, "Food", "")
	require.NoError(t, err)

	coffee, err := s.CreateQuickTemplate(ctx, uid, ledger.QuickTemplateInput{
		Type: models.TypeExpense, Name: " Coffee ", Amount: testutil.D("2.5"), AccountID: acc.ID,
		CategoryID: &cat.ID, ShowInQuick: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Coffee", coffee.Name)
	assert.Equal(t, "📁", coffee.Icon)

	_, err = s.CreateQuickTemplate(ctx, uid, ledger.QuickTemplateInput{
		Type: models.TypeIncome, Name: "Tips", Icon: "💶", Amount: testutil.D("5"), AccountID: acc.ID,
	})
	require.NoError(t, err)

	shown := true
	list, err := s.ListQuickTemplates(ctx, uid, ledger.QuickTemplateFilter{ShowInQuick: &shown})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Coffee", list[0].Name)

	list, err = s.ListQuickTemplates(ctx, uid, ledger.QuickTemplateFilter{Type: models.TypeIncome})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].ShowInQuick)

	hidden := false
	upd, err := s.UpdateQuickTemplate(ctx, uid, coffee.ID, ledger.QuickTemplatePatch{
		Amount: ptr(testutil.D("3")), ShowInQuick: &hidden, ClearCategory: true,
	})
	require.NoError(t, err)
	assert.True(t, testutil.D("3").Equal(upd.Amount))
	assert.Nil(t, upd.CategoryID)

	got, err := s.GetQuickTemplate(ctx, uid, coffee.ID)
	require.NoError(t, err)
	assert.False(t, got.ShowInQuick)
	assert.Nil(t, got.CategoryID)

	// templates never move money
	assert.True(t, testutil.D("100").Equal(testutil.Balance(t, db, acc.ID)))

	bob := testutil.User(t, db, "bob")
	_, err = s.GetQuickTemplate(ctx, bob, coffee.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(s.DeleteQuickTemplate(ctx, bob, coffee.ID)))

	require.NoError(t, s.DeleteQuickTemplate(ctx, uid, coffee.ID))
	assert.True(t, apperr.IsNotFound(s.DeleteQuickTemplate(ctx, uid, coffee.ID)))
}

func TestQuickTemplateValidation(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	bob := testutil.User(t, db, "bob")
	acc := testutil.Account(t, db, uid, "Main", "0")
	bobAcc := testutil.Account(t, db, bob, "Bob", "0")
	bobCat, err := s.CreateCategory(ctx, bob, "Bob stuff", "")
	require.NoError(t, err)

	cases := map[string]ledger.QuickTemplateInput{
		"bad type":         {Type: "gift", Name: "x", Amount: testutil.D("1"), AccountID: acc.ID},
		"empty name":       {Type: models.TypeExpense, Name: " ", Amount: testutil.D("1"), AccountID: acc.ID},
		"zero amount":      {Type: models.TypeExpense, Name: "x", Amount: testutil.D("0"), AccountID: acc.ID},
		"foreign account":  {Type: models.TypeExpense, Name: "x", Amount: testutil.D("1"), AccountID: bobAcc.ID},
		"foreign category": {Type: models.TypeExpense, Name: "x", Amount: testutil.D("1"), AccountID: acc.ID, CategoryID: &bobCat.ID},
	}
	for name, in := range cases {
		_, err := s.CreateQuickTemplate(ctx, uid, in)
		assert.True(t, apperr.IsValidation(err), "%s: got %v", name, err)
	}

	tpl, err := s.CreateQuickTemplate(ctx, uid, ledger.QuickTemplateInput{
		Type: models.TypeExpense, Name: "x", Amount: testutil.D("1"), AccountID: acc.ID,
	})
	require.NoError(t, err)
	_, err = s.UpdateQuickTemplate(ctx, uid, tpl.ID, ledger.QuickTemplatePatch{CategoryID: &bobCat.ID})
	assert.True(t, apperr.IsValidation(err))
	_, err = s.UpdateQuickTemplate(ctx, uid, tpl.ID, ledger.QuickTemplatePatch{AccountID: &bobAcc.ID})
	assert.True(t, apperr.IsValidation(err))

	// an account a template points at cannot be deleted
	assert.True(t, apperr.IsValidation(s.DeleteAccount(ctx, uid, acc.ID)))
}

func TestProductTypeUpdateAndDelete(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")

	pt, err := s.CreateProductType(ctx, "Pension Plan", "")
	require.NoError(t, err)
	p, err := s.CreateProduct(ctx, uid, acc.ID, ledger.ProductInput{Name: "Plan", ProductTypeID: &pt.ID})
	require.NoError(t, err)

	name, icon := "Pension", ""
	upd, err := s.UpdateProductType(ctx, pt.ID, &name, &icon)
	require.NoError(t, err)
	assert.Equal(t, "Pension", upd.Name)
	assert.Equal(t, "📦", upd.Icon)
	assert.Equal(t, pt.Slug, upd.Slug)

	blank := " "
	_, err = s.UpdateProductType(ctx, pt.ID, &blank, nil)
	assert.True(t, apperr.IsValidation(err))
	_, err = s.UpdateProductType(ctx, 9999, &name, nil)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, s.DeleteProductType(ctx, pt.ID))
	_, err = s.GetProductType(ctx, pt.ID)
	assert.True(t, apperr.IsNotFound(err))
	var stored models.AccountProduct
	require.NoError(t, db.First(&stored, p.ID).Error)
	assert.Nil(t, stored.ProductTypeID)

	var interest models.ProductType
	require.NoError(t, db.Where("slug = ?", models.ProductTypeInterest).First(&interest).Error)
	assert.True(t, apperr.IsValidation(s.DeleteProductType(ctx, interest.ID)))
	assert.True(t, apperr.IsNotFound(s.DeleteProductType(ctx, pt.ID)))
}
