package services

import (
	"context"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	GetAccount(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, owner core.OwnerID) ([]core.Account, error)
	SetAccountActive(ctx context.Context, owner core.OwnerID, id int64, active bool) (core.Account, error)
	RecomputeBalance(ctx context.Context, owner core.OwnerID, id int64) (before, after core.Account, err error)
}

type AccountService struct {
	store  AccountStore
	logger *log.Logger
}

func NewAccountService(store AccountStore) *AccountService {
	return &AccountService{store: store, logger: log.Default(log.ComponentStorage)}
}

func (s *AccountService) Create(ctx context.Context, a core.Account) (core.Account, error) {
	if a.Kind == "" {
		a.Kind = core.AccountChecking
	}
	a.Active = true
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	return s.store.CreateAccount(ctx, a)
}

func (s *AccountService) Get(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, owner, id)
}

func (s *AccountService) List(ctx context.Context, owner core.OwnerID) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, owner)
}

func (s *AccountService) SetActive(ctx context.Context, owner core.OwnerID, id int64, active bool) (core.Account, error) {
	return s.store.SetAccountActive(ctx, owner, id, active)
}

// Recompute rebuilds the cached balance from the account's entries. A drift
// between the cache and the entries is logged.
func (s *AccountService) Recompute(ctx context.Context, owner core.OwnerID, id int64) (core.Account, error) {
	before, after, err := s.store.RecomputeBalance(ctx, owner, id)
	if err != nil {
		return core.Account{}, err
	}
	if before.CurrentBalance != after.CurrentBalance {
		s.logger.WarnContext(ctx, "Account balance drift repaired",
			log.FieldOwnerID, string(owner),
			"account_id", id,
			"cached_cents", before.CurrentBalance.Cents,
			"actual_cents", after.CurrentBalance.Cents)
	}
	return after, nil
}
