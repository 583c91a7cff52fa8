package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tenant"
)

func intPtr(n int) *int { return &n }

func TestTenantScopedOperationsRequireCompany(t *testing.T) {
	d, _ := testDeps(t)
	ctx := context.Background()
	noCompany := tenant.Context{UserID: newTenant(t, d.DB, "Acme").UserID}

	_, err := NewAccountService(d).List(ctx, noCompany)
	assert.ErrorIs(t, err, ErrNoTenant)
	_, err = NewTransactionService(d).List(ctx, noCompany, TransactionFilter{})
	assert.ErrorIs(t, err, ErrNoTenant)
	_, err = NewCategoryService(d).Create(ctx, noCompany, CategoryInput{Name: "Food", Type: "expense"})
	assert.ErrorIs(t, err, ErrNoTenant)
	assert.ErrorIs(t, NewContactService(d).Delete(ctx, noCompany, "x"), ErrNoTenant)
	_, err = NewRecurringService(d).List(ctx, tenant.Context{}, "")
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestAccounts(t *testing.T) {
	d, _ := testDeps(t)
	svc := NewAccountService(d)
	ctx := context.Background()
	tc := newTenant(t, d.DB, "Acme")
	limit := decimal.NewFromInt(-5)

	_, err := svc.Create(ctx, tc, AccountInput{
		Name: "Card", Type: "CREDIT_CARD", CurrencyCode: "XXX",
		CardLastFour: "12a4", CreditLimit: &limit, StatementDay: intPtr(0), DueDay: intPtr(32),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unknown_currency", ve.Fields["currencyCode"])
	assert.Equal(t, "invalid_last_four", ve.Fields["cardLastFour"])
	assert.Equal(t, "must_not_be_negative", ve.Fields["creditLimit"])
	assert.Equal(t, "out_of_range", ve.Fields["statementDay"])
	assert.Equal(t, "out_of_range", ve.Fields["dueDay"])

	limit = decimal.NewFromInt(5000)
	card, err := svc.Create(ctx, tc, AccountInput{
		Name: "Card", Type: "CREDIT_CARD", CurrencyCode: "usd",
		CardNetwork: "Visa", CardLastFour: "1234", CreditLimit: &limit, StatementDay: intPtr(5), DueDay: intPtr(15),
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", card.CurrencyCode)
	require.NotNil(t, card.CardLastFour)
	assert.Equal(t, "1234", *card.CardLastFour)

	// Card fields are dropped for other account types.
	cash, err := svc.Update(ctx, tc, card.ID.String(), AccountInput{
		Name: "Wallet", Type: "CASH", CurrencyCode: "BRL", CardLastFour: "9999", DueDay: intPtr(40),
	})
	require.NoError(t, err)
	assert.Nil(t, cash.CardLastFour)
	assert.Nil(t, cash.DueDay)
	assert.False(t, cash.CreditLimit.Valid)

	other := newTenant(t, d.DB, "Other")
	_, err = svc.Get(ctx, other, card.ID.String())
	requireClass(t, ClassNotFound, err)

	txs := NewTransactionService(d)
	_, err = txs.Create(ctx, tc, TransactionInput{
		AccountID: cash.ID.String(), Type: "expense", Amount: decimal.NewFromInt(10), TransactionDate: "2026-01-02",
	})
	require.NoError(t, err)
	err = svc.Delete(ctx, tc, cash.ID.String())
	requireClass(t, ClassReferential, err)
	assert.Equal(t, "1 transaction(s) linked", err.Error())
}

func TestCategories(t *testing.T) {
	d, _ := testDeps(t)
	svc := NewCategoryService(d)
	ctx := context.Background()
	tc := newTenant(t, d.DB, "Acme")

	food, err := svc.Create(ctx, tc, CategoryInput{Name: "Food", Type: "expense", Color: "#ff0000"})
	require.NoError(t, err)
	assert.True(t, food.IsActive)

	_, err = svc.Create(ctx, tc, CategoryInput{Name: "Food", Type: "expense"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeCategoryNameTaken, ce.Code)

	// Same name with another type, or in another tenant, is fine.
	_, err = svc.Create(ctx, tc, CategoryInput{Name: "Food", Type: "income"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, newTenant(t, d.DB, "Other"), CategoryInput{Name: "Food", Type: "expense"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, tc, CategoryInput{Name: "Moves", Type: "transfer", Color: "red"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_choice", ve.Fields["type"])
	assert.Equal(t, "invalid_color", ve.Fields["color"])

	_, err = svc.Update(ctx, tc, food.ID.String(), CategoryInput{Name: "Food", Type: "income"})
	requireClass(t, ClassConflict, err)

	require.NoError(t, svc.SetActive(ctx, tc, food.ID.String(), false))
	got, err := svc.Get(ctx, tc, food.ID.String())
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, err := svc.List(ctx, tc, "expense")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, tc, food.ID.String()))
	requireClass(t, ClassNotFound, svc.SetActive(ctx, tc, food.ID.String(), true))
}

func TestContacts(t *testing.T) {
	d, _ := testDeps(t)
	svc := NewContactService(d)
	ctx := context.Background()
	tc := newTenant(t, d.DB, "Acme")

	acme, err := svc.Create(ctx, tc, ContactInput{Name: "Acme Supplies", Type: "supplier", Email: "sales@acme.test"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, tc, ContactInput{Name: "Bob", Type: "customer"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, tc, ContactInput{Name: "Acme Supplies", Type: "supplier"})
	requireClass(t, ClassConflict, err)

	// The uniqueness check also runs on update.
	_, err = svc.Update(ctx, tc, other.ID.String(), ContactInput{Name: "Acme Supplies", Type: "supplier"})
	requireClass(t, ClassConflict, err)

	updated, err := svc.Update(ctx, tc, acme.ID.String(), ContactInput{Name: "Acme Supplies", Type: "supplier", Notes: " net 30 "})
	require.NoError(t, err)
	assert.Equal(t, "net 30", updated.Notes)
	assert.Equal(t, acme.ID, updated.ID)

	_, err = svc.Create(ctx, tc, ContactInput{Name: "X", Type: "partner", Email: "bad"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 3)

	list, err := svc.List(ctx, tc, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.NoError(t, svc.Delete(ctx, tc, other.ID.String()))
}

func TestTransactions(t *testing.T) {
	d, _ := testDeps(t)
	ctx := context.Background()
	tc := newTenant(t, d.DB, "Acme")
	account, err := NewAccountService(d).Create(ctx, tc, AccountInput{Name: "Main", Type: "CHECKING_ACCOUNT", CurrencyCode: "EUR"})
	require.NoError(t, err)
	salary, err := NewCategoryService(d).Create(ctx, tc, CategoryInput{Name: "Salary", Type: "income"})
	require.NoError(t, err)
	svc := NewTransactionService(d)

	in := TransactionInput{
		AccountID: account.ID.String(), CategoryID: salary.ID.String(),
		Type: "expense", Amount: decimal.NewFromInt(100), TransactionDate: "2026-01-10",
	}
	_, err = svc.Create(ctx, tc, in)
	requireField(t, err, "categoryId", "category_type_mismatch")

	in.Type = "income"
	in.Status = "paid"
	_, err = svc.Create(ctx, tc, in)
	requireField(t, err, "status", "status_type_mismatch")

	in.Status = ""
	income, err := svc.Create(ctx, tc, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, income.Status)
	assert.Equal(t, "EUR", income.CurrencyCode)
	assert.Nil(t, income.PaymentDate)

	paid, err := svc.MarkPaid(ctx, tc, income.ID.String(), date("2026-01-12"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, paid.Status)
	assert.Equal(t, "2026-01-12", day(paid.PaymentDate))

	_, err = svc.MarkPaid(ctx, tc, income.ID.String(), date("2026-01-13"))
	requireClass(t, ClassConflict, err)

	expense, err := svc.Create(ctx, tc, TransactionInput{
		AccountID: account.ID.String(), Type: "expense", Amount: decimal.RequireFromString("19.90"), TransactionDate: "2026-01-11",
	})
	require.NoError(t, err)
	paid, err = svc.MarkPaid(ctx, tc, expense.ID.String(), date("2026-01-11"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)

	_, err = svc.Create(ctx, tc, TransactionInput{AccountID: account.ID.String(), Type: "expense", Amount: decimal.Zero, TransactionDate: "11/01/2026"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must_be_positive", ve.Fields["amount"])
	assert.Equal(t, "invalid_date", ve.Fields["transactionDate"])

	incomes, err := svc.List(ctx, tc, TransactionFilter{Type: models.TypeIncome})
	require.NoError(t, err)
	assert.Len(t, incomes, 1)
	all, err := svc.List(ctx, tc, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, expense.ID, all[0].ID)

	other := newTenant(t, d.DB, "Other")
	requireClass(t, ClassNotFound, svc.Delete(ctx, other, expense.ID.String()))
	require.NoError(t, svc.Delete(ctx, tc, expense.ID.String()))
}

func TestCurrencies(t *testing.T) {
	d, _ := testDeps(t)
	list, err := NewCurrencyService(d).List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, "ARS", list[0].Code)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassOK, Classify(nil))
	assert.Equal(t, ClassValidation, Classify(fieldError("name", "required")))
	assert.Equal(t, ClassAuthorization, Classify(ErrNoTenant))
	assert.Equal(t, ClassAuthorization, Classify(ErrForbidden))
	assert.Equal(t, ClassConflict, Classify(&ConflictError{Field: "name", Code: "x"}))
	assert.Equal(t, ClassReferential, Classify(&ReferentialError{Code: CodeRoleInUse, Count: 3}))
	assert.Equal(t, ClassNotFound, Classify(ErrNotFound))
	assert.Equal(t, ClassUnexpected, Classify(assert.AnError))
	assert.Equal(t, "3 user(s) assigned", (&ReferentialError{Code: CodeRoleInUse, Count: 3}).Error())
}
