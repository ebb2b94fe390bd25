package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	repo := accountstest.NewRepository()
	svc := accounts.NewService(repo, nil)

	inserted, err := svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(accounts.DefaultChart), inserted)

	inserted, err = svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	require.Zero(t, inserted)

	child := repo.Account("4001")
	parent := repo.Account("4000")
	require.NotNil(t, child.ParentID)
	require.Equal(t, parent.ID, *child.ParentID)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := accounts.NewService(accountstest.NewSeeded(), nil)
	_, err := svc.Create(context.Background(), accounts.CreateInput{Code: "1000", Name: "Another Cash", Type: "ASSET"})
	require.ErrorIs(t, err, accounts.ErrDuplicateCode)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := accounts.NewService(accountstest.NewRepository(), nil)
	_, err := svc.Create(context.Background(), accounts.CreateInput{Code: "9000", Name: "Odd", Type: "GAIN"})
	require.ErrorIs(t, err, accounts.ErrInvalidType)
}

func TestTypeLockedOncePosted(t *testing.T) {
	repo := accountstest.NewSeeded()
	svc := accounts.NewService(repo, nil)
	ctx := context.Background()

	liability := "LIABILITY"
	_, err := svc.Update(ctx, "4200", accounts.UpdateInput{Type: &liability})
	require.NoError(t, err)

	repo.MarkPosted("4100")
	_, err = svc.Update(ctx, "4100", accounts.UpdateInput{Type: &liability})
	require.ErrorIs(t, err, accounts.ErrTypeLocked)

	name := "Sundry Income"
	updated, err := svc.Update(ctx, "4100", accounts.UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Sundry Income", updated.Name)
	require.Equal(t, accounts.AccountTypeIncome, updated.Type)
}

func TestUpdateRejectsParentCycle(t *testing.T) {
	svc := accounts.NewService(accountstest.NewSeeded(), nil)
	parent := "4001"
	_, err := svc.Update(context.Background(), "4000", accounts.UpdateInput{ParentCode: &parent})
	require.ErrorIs(t, err, accounts.ErrParentInvalid)
}

func TestDeleteDeactivatesPostedAccount(t *testing.T) {
	repo := accountstest.NewSeeded()
	svc := accounts.NewService(repo, nil)
	ctx := context.Background()

	repo.MarkPosted("5002")
	res, err := svc.Delete(ctx, "5002")
	require.NoError(t, err)
	require.True(t, res.Deactivated)
	require.False(t, repo.Account("5002").IsActive)

	res, err = svc.Delete(ctx, "4200")
	require.NoError(t, err)
	require.True(t, res.Deleted)
	_, err = svc.GetByCode(ctx, "4200")
	require.ErrorIs(t, err, shared.ErrNotFound)

	res, err = svc.Delete(ctx, "5000")
	require.NoError(t, err)
	require.True(t, res.Deactivated, "parents with children are only deactivated")
}

func TestDescendantsRollUp(t *testing.T) {
	svc := accounts.NewService(accountstest.NewSeeded(), nil)
	codes, err := svc.Descendants(context.Background(), "4000")
	require.NoError(t, err)
	require.Equal(t, []string{"4000", "4001", "4002"}, codes)

	codes, err = svc.Descendants(context.Background(), "5099")
	require.NoError(t, err)
	require.Equal(t, []string{"5099"}, codes)

	_, err = svc.Descendants(context.Background(), "0000")
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestIsCashCategories(t *testing.T) {
	repo := accountstest.NewSeeded()
	require.True(t, repo.Account("1000").IsCash())
	require.True(t, repo.Account("1001").IsCash())
	require.True(t, repo.Account("1003").IsCash())
	require.False(t, repo.Account("1100").IsCash())
	require.True(t, repo.Account("2000").IsPayable())
	require.True(t, repo.Account("1100").IsReceivable())
}
