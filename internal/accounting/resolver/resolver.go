// Package resolver maps business keys such as payment methods and expense
// categories onto live chart of account nodes.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Kind names the family of business key being resolved.
type Kind string

const (
	KindPaymentMethod   Kind = "payment method"
	KindExpenseCategory Kind = "expense category"
	KindIncomeCategory  Kind = "income category"
)

func (k Kind) accountType() accounts.AccountType {
	switch k {
	case KindPaymentMethod:
		return accounts.AccountTypeAsset
	case KindExpenseCategory:
		return accounts.AccountTypeExpense
	case KindIncomeCategory:
		return accounts.AccountTypeIncome
	}
	return ""
}

func (k Kind) patterns() map[string][]string {
	switch k {
	case KindPaymentMethod:
		return paymentMethodPatterns
	case KindExpenseCategory:
		return expenseCategoryPatterns
	case KindIncomeCategory:
		return incomeCategoryPatterns
	}
	return nil
}

// AccountResolutionError reports that no active account could be found for a key.
type AccountResolutionError struct {
	Kind Kind
	Key  string
}

func (e *AccountResolutionError) Error() string {
	return fmt.Sprintf("no active account found for %s %q; an administrator must add a matching account to the chart of accounts", e.Kind, e.Key)
}

// Unwrap classifies resolution failures as posting failures.
func (e *AccountResolutionError) Unwrap() error {
	return shared.ErrPosting
}

// AccountSource is the read side of the chart of accounts.
type AccountSource interface {
	ActiveByType(ctx context.Context, t accounts.AccountType) ([]accounts.Account, error)
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Resolver resolves keys with a name pattern tier followed by the legacy code table.
type Resolver struct {
	source AccountSource
}

// New constructs a Resolver.
func New(source AccountSource) *Resolver {
	return &Resolver{source: source}
}

// ResolvePaymentMethod returns the cash, bank or wallet account for a payment method.
func (r *Resolver) ResolvePaymentMethod(ctx context.Context, method string) (accounts.Account, error) {
	return r.Resolve(ctx, KindPaymentMethod, method)
}

// ResolveExpenseCategory returns the expense account for a category.
func (r *Resolver) ResolveExpenseCategory(ctx context.Context, category string) (accounts.Account, error) {
	return r.Resolve(ctx, KindExpenseCategory, category)
}

// ResolveIncomeCategory returns the income account for a category.
func (r *Resolver) ResolveIncomeCategory(ctx context.Context, category string) (accounts.Account, error) {
	return r.Resolve(ctx, KindIncomeCategory, category)
}

// Resolve runs the dynamic tier and then the legacy tier for key.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, key string) (accounts.Account, error) {
	normalized := NormalizeKey(key)
	if normalized == "" {
		return accounts.Account{}, &AccountResolutionError{Kind: kind, Key: key}
	}
	candidates, err := r.source.ActiveByType(ctx, kind.accountType())
	if err != nil {
		return accounts.Account{}, fmt.Errorf("resolver: load %s accounts: %w", kind.accountType(), err)
	}
	if acc, ok := matchDynamic(candidates, kind, normalized); ok {
		return acc, nil
	}
	if acc, ok, err := r.matchLegacy(ctx, kind, normalized); err != nil {
		return accounts.Account{}, err
	} else if ok {
		return acc, nil
	}
	return accounts.Account{}, &AccountResolutionError{Kind: kind, Key: key}
}

func matchDynamic(candidates []accounts.Account, kind Kind, key string) (accounts.Account, bool) {
	patterns, ok := kind.patterns()[key]
	if !ok {
		patterns = []string{key}
	}
	names := make([]string, len(candidates))
	for i, acc := range candidates {
		names[i] = fold(acc.Name)
	}
	for _, pattern := range patterns {
		for i, name := range names {
			if strings.Contains(name, pattern) {
				return candidates[i], true
			}
		}
	}
	for _, keyword := range genericKeywords[kind] {
		for i, name := range names {
			if strings.Contains(name, keyword) {
				return candidates[i], true
			}
		}
	}
	return accounts.Account{}, false
}

func (r *Resolver) matchLegacy(ctx context.Context, kind Kind, key string) (accounts.Account, bool, error) {
	code, ok := legacyCodes[kind][key]
	if !ok {
		return accounts.Account{}, false, nil
	}
	acc, err := r.source.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.Account{}, false, nil
		}
		return accounts.Account{}, false, fmt.Errorf("resolver: legacy lookup %s: %w", code, err)
	}
	if !acc.IsActive || acc.Type != kind.accountType() {
		return accounts.Account{}, false, nil
	}
	return acc, true, nil
}

// NormalizeKey folds case and collapses separators so "Bank_Transfer" and
// "bank transfer" resolve identically.
func NormalizeKey(key string) string {
	key = strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(fold(key))
	return strings.Join(strings.Fields(key), " ")
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
