package escrow

import (
	"context"
	"sync"

	id "amanah/pkg/domain"
)

// InMemoryStore keeps escrow aggregates in a map with a lock per account.
// The per-account lock is held across the whole read-mutate-write cycle, so
// concurrent Updates on one account serialize while different accounts
// proceed independently.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*accountEntry
}

type accountEntry struct {
	mu      sync.Mutex
	account *Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.AccountID]*accountEntry)}
}

func (s *InMemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.Number]; exists {
		return ErrDuplicateNumber
	}
	s.accounts[account.Number] = &accountEntry{account: account.Clone()}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, number id.AccountID) (*Account, error) {
	s.mu.RLock()
	entry, ok := s.accounts[number]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(number)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.account.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, number id.AccountID, mutate func(*Account) error) (*Account, error) {
	s.mu.RLock()
	entry, ok := s.accounts[number]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(number)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Mutate a copy; a failed mutation must leave the stored aggregate
	// untouched.
	draft := entry.account.Clone()
	if err := mutate(draft); err != nil {
		return nil, err
	}
	entry.account = draft
	return draft.Clone(), nil
}
