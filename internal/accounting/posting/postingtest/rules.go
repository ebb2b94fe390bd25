// Package postingtest wires posting rules over the default chart for tests.
package postingtest

import (
	"context"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
)

// RoleCodes binds every registry role to the default chart.
var RoleCodes = map[string]string{
	string(resolver.RoleAPDefault):          "2000",
	string(resolver.RoleARDefault):          "1100",
	string(resolver.RoleCashDefault):        "1000",
	string(resolver.RoleMiscExpense):        "5099",
	string(resolver.RoleMaintenanceExpense): "5001",
	string(resolver.RoleRetainedEarnings):   "3100",
}

// Fixture bundles the chart with rules resolved against it.
type Fixture struct {
	Chart    *accountstest.Repository
	Accounts *accounts.Service
	Resolver *resolver.Resolver
	Registry *resolver.Registry
	Rules    *posting.Rules
}

// New seeds the default chart and loads the registry; it panics on setup errors.
func New() Fixture {
	chart := accountstest.NewSeeded()
	svc := accounts.NewService(chart, nil)
	reg, err := resolver.LoadRegistry(context.Background(), svc, RoleCodes)
	if err != nil {
		panic(err)
	}
	res := resolver.New(svc)
	return Fixture{
		Chart:    chart,
		Accounts: svc,
		Resolver: res,
		Registry: reg,
		Rules:    posting.NewRules(res, reg),
	}
}

// PaymentCodes are the asset accounts of the default chart a payment method
// can resolve to.
var PaymentCodes = []string{"1000", "1001", "1002", "1003", "1100"}

// Deactivate hides the given accounts from resolution; it panics on unknown codes.
// The registry keeps the accounts it loaded.
func (f Fixture) Deactivate(codes ...string) {
	for _, code := range codes {
		if _, err := f.Accounts.Deactivate(context.Background(), code); err != nil {
			panic(err)
		}
	}
}
