package memory

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/nettuhq/scheduler/domain"
)

// AccountRepo is the in-memory repo.AccountRepo implementation.
type AccountRepo struct {
	mu       sync.Mutex
	accounts map[domain.ID]domain.Account
}

func newAccountRepo() *AccountRepo {
	return &AccountRepo{accounts: make(map[domain.ID]domain.Account)}
}

func (r *AccountRepo) Find(_ context.Context, id domain.ID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	out := cloneAccount(a)
	return &out, nil
}

// FindByAPIKey compares apiKey against every stored account's bcrypt hash.
// Linear and intentionally so: constant-time hash comparison per candidate
// rules out a timing side-channel on which hash matched.
func (r *AccountRepo) FindByAPIKey(_ context.Context, apiKey string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if bcrypt.CompareHashAndPassword([]byte(a.APIKeyHash), []byte(apiKey)) == nil {
			out := cloneAccount(a)
			return &out, nil
		}
	}
	return nil, nil
}

// Insert adds an account as given; APIKeyHash is stored unchanged and is not
// hashed here.
func (r *AccountRepo) Insert(_ context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = domain.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = cloneAccount(*account)
	return nil
}
