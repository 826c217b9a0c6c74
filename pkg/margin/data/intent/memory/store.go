package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/pointer"
)

type store struct {
	mu sync.RWMutex

	// records is ordered by id
	records    []*intent.Record
	byIntentId map[string]*intent.Record
	nextId     uint64
}

func New() intent.Store {
	s := &store{}
	s.reset()
	return s
}

// Save implements intent.Store.Save
func (s *store) Save(_ context.Context, record *intent.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byIntentId[record.IntentId]
	if !ok {
		record.Id = s.nextId
		s.nextId++
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
		record.Version = 1

		stored := record.Clone()
		s.records = append(s.records, &stored)
		s.byIntentId[stored.IntentId] = &stored
		return nil
	}

	if existing.Version != record.Version {
		return intent.ErrStaleVersion
	}

	// Only the outcome of an intent is mutable
	updated := existing.Clone()
	updated.Signature = pointer.StringCopy(record.Signature)
	updated.LastValidBlockHeight = record.LastValidBlockHeight
	updated.State = record.State
	updated.ErrorClass = pointer.StringCopy(record.ErrorClass)
	updated.ErrorMessage = pointer.StringCopy(record.ErrorMessage)
	updated.Version++

	*existing = updated
	existing.CopyTo(record)
	return nil
}

// GetById implements intent.Store.GetById
func (s *store) GetById(_ context.Context, id string) (*intent.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byIntentId[id]
	if !ok {
		return nil, intent.ErrNotFound
	}
	cloned := record.Clone()
	return &cloned, nil
}

// GetBySignature implements intent.Store.GetBySignature
func (s *store) GetBySignature(_ context.Context, signature string) (*intent.Record, error) {
	matches := s.selectWhere(func(r *intent.Record) bool {
		return r.Signature != nil && *r.Signature == signature
	})
	if len(matches) == 0 {
		return nil, intent.ErrNotFound
	}
	return matches[0], nil
}

// GetAllByOwner implements intent.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*intent.Record, error) {
	page := query.PageSlice(
		s.selectWhere(func(r *intent.Record) bool { return r.Owner == owner }),
		func(r *intent.Record) uint64 { return r.Id },
		cursor,
		limit,
		direction,
	)
	if len(page) == 0 {
		return nil, intent.ErrNotFound
	}
	return page, nil
}

// GetAllByState implements intent.Store.GetAllByState
func (s *store) GetAllByState(_ context.Context, state intent.State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*intent.Record, error) {
	page := query.PageSlice(
		s.selectWhere(func(r *intent.Record) bool { return r.State == state }),
		func(r *intent.Record) uint64 { return r.Id },
		cursor,
		limit,
		direction,
	)
	if len(page) == 0 {
		return nil, intent.ErrNotFound
	}
	return page, nil
}

// GetAllByOwnerAndState implements intent.Store.GetAllByOwnerAndState
func (s *store) GetAllByOwnerAndState(_ context.Context, owner string, state intent.State) ([]*intent.Record, error) {
	matches := s.selectWhere(func(r *intent.Record) bool {
		return r.Owner == owner && r.State == state
	})
	if len(matches) == 0 {
		return nil, intent.ErrNotFound
	}
	return matches, nil
}

// CountByState implements intent.Store.CountByState
func (s *store) CountByState(_ context.Context, state intent.State) (uint64, error) {
	matches := s.selectWhere(func(r *intent.Record) bool { return r.State == state })
	return uint64(len(matches)), nil
}

// selectWhere returns clones of the matching records in id order.
func (s *store) selectWhere(match func(*intent.Record) bool) []*intent.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*intent.Record
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
	s.byIntentId = make(map[string]*intent.Record)
	s.nextId = 1
}
