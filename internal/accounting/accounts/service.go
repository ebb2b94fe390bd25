package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Service manages the chart of accounts.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the account service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

// ActiveByType returns the active accounts of the given type.
func (s *Service) ActiveByType(ctx context.Context, t AccountType) ([]Account, error) {
	active := true
	return s.repo.List(ctx, ListFilter{Type: t, Active: &active})
}

// GetByCode returns a single account.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

// Create adds an account to the chart.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	t, ok := ParseAccountType(in.Type)
	if !ok {
		return Account{}, ErrInvalidType
	}
	acc := Account{
		Code:     strings.TrimSpace(in.Code),
		Name:     strings.TrimSpace(in.Name),
		Type:     t,
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		IsActive: true,
	}
	if acc.Code == "" || acc.Name == "" {
		return Account{}, shared.FieldErrors{"code": "is required", "name": "is required"}
	}
	if strings.TrimSpace(in.ParentCode) != "" {
		parent, err := s.repo.GetByCode(ctx, strings.TrimSpace(in.ParentCode))
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return Account{}, ErrParentInvalid
			}
			return Account{}, err
		}
		if !parent.IsActive {
			return Account{}, ErrParentInvalid
		}
		acc.ParentID = &parent.ID
	}
	return s.repo.Insert(ctx, acc)
}

// Update changes name, category, parent and, while the account has no postings, type.
func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (Account, error) {
	acc, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return Account{}, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		acc.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		acc.Category = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	if in.Type != nil {
		t, ok := ParseAccountType(*in.Type)
		if !ok {
			return Account{}, ErrInvalidType
		}
		if t != acc.Type {
			posted, err := s.repo.HasPostings(ctx, acc.ID)
			if err != nil {
				return Account{}, err
			}
			if posted {
				return Account{}, ErrTypeLocked
			}
			acc.Type = t
		}
	}
	if in.ParentCode != nil {
		parentCode := strings.TrimSpace(*in.ParentCode)
		if parentCode == "" {
			acc.ParentID = nil
		} else {
			parent, err := s.repo.GetByCode(ctx, parentCode)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return Account{}, ErrParentInvalid
				}
				return Account{}, err
			}
			all, err := s.repo.List(ctx, ListFilter{})
			if err != nil {
				return Account{}, err
			}
			if !parent.IsActive || parent.ID == acc.ID || wouldCycle(all, acc.ID, parent.ID) {
				return Account{}, ErrParentInvalid
			}
			acc.ParentID = &parent.ID
		}
	}
	return s.repo.Update(ctx, acc)
}

// Deactivate hides the account from resolution and new postings.
func (s *Service) Deactivate(ctx context.Context, code string) (Account, error) {
	acc, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return Account{}, err
	}
	if !acc.IsActive {
		return acc, nil
	}
	acc.IsActive = false
	return s.repo.Update(ctx, acc)
}

// Delete removes an account that was never posted to and has no children.
// Otherwise the account is deactivated.
func (s *Service) Delete(ctx context.Context, code string) (DeleteResult, error) {
	acc, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return DeleteResult{}, err
	}
	posted, err := s.repo.HasPostings(ctx, acc.ID)
	if err != nil {
		return DeleteResult{}, err
	}
	all, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return DeleteResult{}, err
	}
	if posted || len(DescendantCodes(all, acc.Code)) > 1 {
		if _, err := s.Deactivate(ctx, acc.Code); err != nil {
			return DeleteResult{}, err
		}
		return DeleteResult{Code: acc.Code, Deactivated: true}, nil
	}
	if err := s.repo.Delete(ctx, acc.ID); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Code: acc.Code, Deleted: true}, nil
}

// Descendants returns the code plus every child code below it.
func (s *Service) Descendants(ctx context.Context, code string) ([]string, error) {
	all, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	codes := DescendantCodes(all, strings.TrimSpace(code))
	if codes == nil {
		return nil, ErrAccountNotFound
	}
	return codes, nil
}

// SeedDefaults installs DefaultChart entries that are missing and returns how
// many were inserted.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	for _, seed := range DefaultChart {
		_, err := s.repo.GetByCode(ctx, seed.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return inserted, err
		}
		if _, err := s.Create(ctx, CreateInput{
			Code:       seed.Code,
			Name:       seed.Name,
			Type:       string(seed.Type),
			Category:   seed.Category,
			ParentCode: seed.ParentCode,
		}); err != nil {
			return inserted, fmt.Errorf("accounts: seed %s: %w", seed.Code, err)
		}
		inserted++
	}
	if inserted > 0 {
		s.logger.Info("seeded chart of accounts", slog.Int("inserted", inserted))
	}
	return inserted, nil
}
