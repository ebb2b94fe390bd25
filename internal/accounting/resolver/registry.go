package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
)

// Role names a well-known account the posting rules rely on.
type Role string

const (
	RoleAPDefault          Role = "AP_DEFAULT"
	RoleARDefault          Role = "AR_DEFAULT"
	RoleCashDefault        Role = "CASH_DEFAULT"
	RoleMiscExpense        Role = "MISC_EXPENSE"
	RoleMaintenanceExpense Role = "MAINTENANCE_EXPENSE"
	RoleRetainedEarnings   Role = "RETAINED_EARNINGS"
)

var roleTypes = map[Role]accounts.AccountType{
	RoleAPDefault:          accounts.AccountTypeLiability,
	RoleARDefault:          accounts.AccountTypeAsset,
	RoleCashDefault:        accounts.AccountTypeAsset,
	RoleMiscExpense:        accounts.AccountTypeExpense,
	RoleMaintenanceExpense: accounts.AccountTypeExpense,
	RoleRetainedEarnings:   accounts.AccountTypeEquity,
}

// CodeLookup fetches an account by code.
type CodeLookup interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Registry holds the well-known accounts resolved at startup.
type Registry struct {
	accounts map[Role]accounts.Account
}

// LoadRegistry resolves every role in codes and fails when a role is missing,
// inactive or bound to an account of the wrong type.
func LoadRegistry(ctx context.Context, lookup CodeLookup, codes map[string]string) (*Registry, error) {
	reg := &Registry{accounts: make(map[Role]accounts.Account, len(roleTypes))}
	for role, want := range roleTypes {
		code := strings.TrimSpace(codes[string(role)])
		if code == "" {
			return nil, fmt.Errorf("resolver: well-known account %s not configured", role)
		}
		acc, err := lookup.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("resolver: well-known account %s (%s): %w", role, code, err)
		}
		if !acc.IsActive {
			return nil, fmt.Errorf("resolver: well-known account %s (%s) is inactive", role, code)
		}
		if acc.Type != want {
			return nil, fmt.Errorf("resolver: well-known account %s (%s) must be %s, found %s", role, code, want, acc.Type)
		}
		reg.accounts[role] = acc
	}
	return reg, nil
}

// NewStaticRegistry builds a registry from already loaded accounts.
func NewStaticRegistry(bound map[Role]accounts.Account) *Registry {
	reg := &Registry{accounts: make(map[Role]accounts.Account, len(bound))}
	for role, acc := range bound {
		reg.accounts[role] = acc
	}
	return reg
}

// Account returns the account bound to role.
func (r *Registry) Account(role Role) (accounts.Account, error) {
	if r == nil {
		return accounts.Account{}, fmt.Errorf("resolver: registry not loaded")
	}
	acc, ok := r.accounts[role]
	if !ok {
		return accounts.Account{}, fmt.Errorf("resolver: well-known account %s not bound", role)
	}
	return acc, nil
}

// Code returns the code bound to role or an empty string.
func (r *Registry) Code(role Role) string {
	acc, err := r.Account(role)
	if err != nil {
		return ""
	}
	return acc.Code
}

// Roles lists the bound roles in order.
func (r *Registry) Roles() []Role {
	if r == nil {
		return nil
	}
	out := make([]Role, 0, len(r.accounts))
	for role := range r.accounts {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
