package accounts

import "github.com/odyssey-erp/estate-ledger/internal/shared"

var (
	// ErrAccountNotFound indicates no account carries the code.
	ErrAccountNotFound = shared.NewError(shared.ErrNotFound, "accounts: account not found")
	// ErrDuplicateCode indicates the code is already taken.
	ErrDuplicateCode = shared.NewError(shared.ErrConflict, "accounts: account code already exists")
	// ErrTypeLocked indicates the type cannot change because the account has postings.
	ErrTypeLocked = shared.NewError(shared.ErrConflict, "accounts: type cannot change once the account has postings")
	// ErrInvalidType indicates an unknown account type.
	ErrInvalidType = shared.NewError(shared.ErrValidation, "accounts: type must be one of ASSET, LIABILITY, EQUITY, INCOME, EXPENSE")
	// ErrParentInvalid indicates a missing, inactive or cyclic parent.
	ErrParentInvalid = shared.NewError(shared.ErrValidation, "accounts: parent account is missing, inactive or would create a cycle")
)
