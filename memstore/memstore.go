// Package memstore is the in-memory TransactionStore. It backs the test
// suite and single-node deployments; the Redis store is the production
// implementation. Both enforce the same check-and-set contract.
package memstore

import (
	"context"
	"sort"
	"sync"

	"goaetherbridge/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type record struct {
	tx  types.BridgeTransaction
	seq uint64 // insertion order, breaks TsCreated ties in ListByUser
}

type Store struct {
	mu      sync.Mutex
	records map[string]*record
	nextSeq uint64
}

func New() *Store {
	return &Store{records: make(map[string]*record)}
}

var _ types.TransactionStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, tx *types.BridgeTransaction) (*types.BridgeTransaction, error) {
	if tx == nil {
		return nil, errors.New("null object to store")
	}
	if !tx.Status.Valid() {
		return nil, errors.Errorf("unknown status %q", tx.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if _, exists := s.records[stored.ID]; exists {
		return nil, errors.Errorf("duplicate transaction id %s", stored.ID)
	}

	s.nextSeq++
	s.records[stored.ID] = &record{tx: stored, seq: s.nextSeq}

	out := stored
	return &out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "id %s", id)
	}

	out := rec.tx
	return &out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next types.Status, patch types.Metadata, mutate func(*types.BridgeTransaction)) (*types.BridgeTransaction, error) {
	if !next.Valid() {
		return nil, errors.Errorf("unknown status %q", next)
	}
	if !expected.CanTransitionTo(next) {
		return nil, errors.Wrapf(types.ErrInvalidTransition, "%s -> %s", expected, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "id %s", id)
	}
	if rec.tx.Status != expected {
		return nil, errors.Wrapf(types.ErrConflict, "id %s is %s, expected %s", id, rec.tx.Status, expected)
	}

	updated := rec.tx
	updated.Status = next
	updated.Metadata = updated.Metadata.Merge(patch)
	if mutate != nil {
		mutate(&updated)
	}
	rec.tx = updated

	out := updated
	return &out, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*record
	for _, rec := range s.records {
		if rec.tx.UserID == userID {
			recs = append(recs, rec)
		}
	}

	// newest first
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].tx.TsCreated != recs[j].tx.TsCreated {
			return recs[i].tx.TsCreated > recs[j].tx.TsCreated
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]*types.BridgeTransaction, 0, len(recs))
	for _, rec := range recs {
		tx := rec.tx
		out = append(out, &tx)
	}
	return out, nil
}

func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]*types.BridgeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.BridgeTransaction, 0)
	for _, rec := range s.records {
		if rec.tx.Status == status {
			tx := rec.tx
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (s *Store) FindOneByStatus(ctx context.Context, status types.Status) (*types.BridgeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.tx.Status == status {
			tx := rec.tx
			return &tx, nil
		}
	}
	return nil, nil
}
