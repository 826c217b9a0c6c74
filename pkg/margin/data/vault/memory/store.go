package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

type store struct {
	mu sync.RWMutex

	// records is ordered by id
	records []*vault.Record
	byOwner map[string]*vault.Record
	nextId  uint64
}

func New() vault.Store {
	s := &store{}
	s.reset()
	return s
}

// Save implements vault.Store.Save
func (s *store) Save(_ context.Context, record *vault.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	existing, ok := s.byOwner[record.Owner]
	if !ok {
		record.Id = s.nextId
		s.nextId++
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = record.CreatedAt
		record.Version = 1

		stored := record.Clone()
		s.records = append(s.records, &stored)
		s.byOwner[stored.Owner] = &stored
		return nil
	}

	if existing.Version != record.Version {
		return vault.ErrStaleVersion
	}

	// Derived addresses are fixed at creation
	existing.StakeAccount = pointer.StringCopy(record.StakeAccount)
	existing.State = record.State
	existing.Version++
	existing.UpdatedAt = now

	existing.CopyTo(record)
	return nil
}

// GetByOwner implements vault.Store.GetByOwner
func (s *store) GetByOwner(_ context.Context, owner string) (*vault.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byOwner[owner]
	if !ok {
		return nil, vault.ErrNotFound
	}
	cloned := record.Clone()
	return &cloned, nil
}

// GetByVault implements vault.Store.GetByVault
func (s *store) GetByVault(_ context.Context, address string) (*vault.Record, error) {
	matches := s.selectWhere(func(r *vault.Record) bool { return r.Vault == address })
	if len(matches) == 0 {
		return nil, vault.ErrNotFound
	}
	return matches[0], nil
}

// GetAllByState implements vault.Store.GetAllByState
func (s *store) GetAllByState(_ context.Context, state lifecycle.State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*vault.Record, error) {
	page := query.PageSlice(
		s.selectWhere(func(r *vault.Record) bool { return r.State == state }),
		func(r *vault.Record) uint64 { return r.Id },
		cursor,
		limit,
		direction,
	)
	if len(page) == 0 {
		return nil, vault.ErrNotFound
	}
	return page, nil
}

// CountByState implements vault.Store.CountByState
func (s *store) CountByState(_ context.Context, state lifecycle.State) (uint64, error) {
	matches := s.selectWhere(func(r *vault.Record) bool { return r.State == state })
	return uint64(len(matches)), nil
}

// selectWhere returns clones of the matching records in id order.
func (s *store) selectWhere(match func(*vault.Record) bool) []*vault.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*vault.Record
	for _, record := range s.records {
		if match(record) {
			cloned := record.Clone()
			res = append(res, &cloned)
		}
	}
	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.byOwner = make(map[string]*vault.Record)
	s.nextId = 1
}
