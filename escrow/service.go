package escrow

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for lookups by an unknown escrow id.
var ErrNotFound = errors.New("escrow: transaction not found")

// Service holds escrow transactions and reputation aggregates. Mutations on
// one transaction are serialized under the service lock, so a (state,
// event) check and its write are atomic.
type Service struct {
	mu          sync.Mutex
	escrows     map[string]*Transaction
	reputations map[string]*Reputation
	logger      *logrus.Logger
}

func NewService(logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		escrows:     make(map[string]*Transaction),
		reputations: make(map[string]*Reputation),
		logger:      logger,
	}
}

// Create opens a new escrow between buyer and seller.
func (s *Service) Create(buyerID, sellerID, amount string) (*Transaction, error) {
	if buyerID == "" || sellerID == "" {
		return nil, errors.New("escrow: buyer and seller required")
	}
	if buyerID == sellerID {
		return nil, errors.New("escrow: buyer and seller must differ")
	}

	tx := NewTransaction(buyerID, sellerID, amount)

	s.mu.Lock()
	s.escrows[tx.ID] = tx
	out := *tx
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"id": tx.ID, "buyer": buyerID, "seller": sellerID, "amount": amount}).Info("created escrow")
	return &out, nil
}

// Get returns a copy of the escrow, or ErrNotFound.
func (s *Service) Get(id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.escrows[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	out := *tx
	return &out, nil
}

// Apply fires event on escrow id as actorID. detail carries the evidence
// reference for submit_evidence and the reason for dispute; it is ignored
// for other events.
func (s *Service) Apply(id string, event Event, actorID, detail string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.escrows[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}

	role, err := tx.RoleOf(actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.apply(event, role); err != nil {
		return nil, err
	}

	switch event {
	case EventSubmitEvidence:
		tx.EvidenceRef = detail
	case EventDispute:
		tx.DisputeReason = detail
		s.reputation(tx.BuyerID).recordDisputed()
		s.reputation(tx.SellerID).recordDisputed()
	}

	switch tx.Status {
	case StatusCompleted:
		s.reputation(tx.BuyerID).recordCompleted(RoleBuyer)
		s.reputation(tx.SellerID).recordCompleted(RoleSeller)
	case StatusRefunded:
		s.reputation(tx.BuyerID).recordRefunded(RoleBuyer)
		s.reputation(tx.SellerID).recordRefunded(RoleSeller)
	}

	s.logger.WithFields(logrus.Fields{"id": id, "event": event, "actor": actorID, "status": tx.Status}).Info("escrow transition")

	out := *tx
	return &out, nil
}

// ReputationOf returns the user's aggregate, creating a neutral one on
// first reference.
func (s *Service) ReputationOf(userID string) *Reputation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *s.reputation(userID)
	return &out
}

// reputation must be called with the lock held.
func (s *Service) reputation(userID string) *Reputation {
	rep, ok := s.reputations[userID]
	if !ok {
		rep = newReputation(userID)
		s.reputations[userID] = rep
	}
	return rep
}
