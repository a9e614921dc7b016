package installment

import (
	"context"
	"sync"

	id "amanah/pkg/domain"
)

// InMemoryStore keeps plan aggregates in a map with a lock per plan, mirroring
// the escrow memory store: Updates on one plan serialize, different plans
// proceed independently.
type InMemoryStore struct {
	mu    sync.RWMutex
	plans map[id.PlanID]*planEntry
}

type planEntry struct {
	mu   sync.Mutex
	plan *Plan
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{plans: make(map[id.PlanID]*planEntry)}
}

func (s *InMemoryStore) Create(_ context.Context, plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = &planEntry{plan: plan.Clone()}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, planID id.PlanID) (*Plan, error) {
	s.mu.RLock()
	entry, ok := s.plans[planID]
	s.mu.RUnlock()
	if !ok {
		return nil, planNotFound(planID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.plan.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, planID id.PlanID, mutate func(*Plan) error) (*Plan, error) {
	s.mu.RLock()
	entry, ok := s.plans[planID]
	s.mu.RUnlock()
	if !ok {
		return nil, planNotFound(planID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	draft := entry.plan.Clone()
	if err := mutate(draft); err != nil {
		return nil, err
	}
	entry.plan = draft
	return draft.Clone(), nil
}

func (s *InMemoryStore) ListActiveByLead(_ context.Context, leadID id.LeadID) ([]*Plan, error) {
	return s.listActive(func(p *Plan) bool { return p.LeadID == leadID }), nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*Plan, error) {
	return s.listActive(func(*Plan) bool { return true }), nil
}

func (s *InMemoryStore) listActive(match func(*Plan) bool) []*Plan {
	s.mu.RLock()
	entries := make([]*planEntry, 0, len(s.plans))
	for _, entry := range s.plans {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	plans := make([]*Plan, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.plan.Status == PlanActive && match(entry.plan) {
			plans = append(plans, entry.plan.Clone())
		}
		entry.mu.Unlock()
	}
	return plans
}
