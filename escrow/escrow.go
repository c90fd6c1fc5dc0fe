// Package escrow is a buyer/seller escrow lifecycle built on the same
// transition-table discipline as the bridge: a per-(state, event) table is
// consulted before every mutation, and role gating decides who may fire
// which event.
package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusInitiated         Status = "INITIATED"
	StatusFunded            Status = "FUNDED"
	StatusEvidenceSubmitted Status = "EVIDENCE_SUBMITTED"
	StatusVerified          Status = "VERIFIED"
	StatusCompleted         Status = "COMPLETED"
	StatusDisputed          Status = "DISPUTED"
	StatusRefunded          Status = "REFUNDED"
	StatusCancelled         Status = "CANCELLED"
)

type Event string

const (
	EventFund           Event = "fund"
	EventSubmitEvidence Event = "submit_evidence"
	EventVerify         Event = "verify"
	EventComplete       Event = "complete"
	EventDispute        Event = "dispute"
	EventResolveRelease Event = "resolve_release"
	EventResolveRefund  Event = "resolve_refund"
	EventRefund         Event = "refund"
	EventCancel         Event = "cancel"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// transitions maps (current state, event) to the next state. Combinations
// not in the table are rejected before any mutation.
var transitions = map[Status]map[Event]Status{
	StatusInitiated: {
		EventFund:   StatusFunded,
		EventCancel: StatusCancelled,
	},
	StatusFunded: {
		EventSubmitEvidence: StatusEvidenceSubmitted,
		EventDispute:        StatusDisputed,
		EventRefund:         StatusRefunded,
	},
	StatusEvidenceSubmitted: {
		EventVerify:  StatusVerified,
		EventDispute: StatusDisputed,
		EventRefund:  StatusRefunded,
	},
	StatusVerified: {
		EventComplete: StatusCompleted,
		EventDispute:  StatusDisputed,
		EventRefund:   StatusRefunded,
	},
	StatusDisputed: {
		EventResolveRelease: StatusCompleted,
		EventResolveRefund:  StatusRefunded,
	},
	// terminal
	StatusCompleted: {},
	StatusRefunded:  {},
	StatusCancelled: {},
}

// eventRoles gates who may fire each event. Events absent from the map are
// open to both parties (disputes and dispute resolutions).
var eventRoles = map[Event]Role{
	EventFund:           RoleBuyer,
	EventVerify:         RoleBuyer,
	EventComplete:       RoleBuyer,
	EventSubmitEvidence: RoleSeller,
	EventRefund:         RoleSeller,
}

// Terminal reports whether no event is accepted from s.
func (s Status) Terminal() bool {
	events, ok := transitions[s]
	return ok && len(events) == 0
}

// Transaction is one escrow agreement between a buyer and a seller.
type Transaction struct {
	ID            string `json:"id"`
	BuyerID       string `json:"buyerId"`
	SellerID      string `json:"sellerId"`
	Amount        string `json:"amount"` // smallest unit, decimal string
	Status        Status `json:"status"`
	EvidenceRef   string `json:"evidenceRef,omitempty"`
	DisputeReason string `json:"disputeReason,omitempty"`
	TsCreated     int64  `json:"tsCreated"`
	TsUpdated     int64  `json:"tsUpdated"`
}

// NewTransaction starts an escrow in INITIATED.
func NewTransaction(buyerID, sellerID, amount string) *Transaction {
	now := time.Now().Unix()
	return &Transaction{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    amount,
		Status:    StatusInitiated,
		TsCreated: now,
		TsUpdated: now,
	}
}

var (
	// ErrInvalidTransition is returned for a (state, event) pair not in the
	// table.
	ErrInvalidTransition = errors.New("escrow: invalid transition")

	// ErrRoleNotAllowed is returned when the actor's role may not fire the
	// event.
	ErrRoleNotAllowed = errors.New("escrow: role not allowed for event")

	// ErrNotParty is returned when the actor is neither buyer nor seller.
	ErrNotParty = errors.New("escrow: actor is not a party to the transaction")
)

// RoleOf resolves a user id to its role on this transaction.
func (t *Transaction) RoleOf(userID string) (Role, error) {
	switch userID {
	case t.BuyerID:
		return RoleBuyer, nil
	case t.SellerID:
		return RoleSeller, nil
	default:
		return "", errors.Wrapf(ErrNotParty, "user %s", userID)
	}
}

// Next returns the state the event would lead to from the current state,
// without mutating anything.
func (t *Transaction) Next(event Event) (Status, error) {
	next, ok := transitions[t.Status][event]
	if !ok {
		return "", errors.Wrapf(ErrInvalidTransition, "%s on %s", event, t.Status)
	}
	return next, nil
}

// apply fires event as role, mutating the transaction. The table is
// consulted first, then the role gate; any rejection leaves the transaction
// untouched.
func (t *Transaction) apply(event Event, role Role) error {
	next, err := t.Next(event)
	if err != nil {
		return err
	}

	if required, gated := eventRoles[event]; gated && role != required {
		return errors.Wrapf(ErrRoleNotAllowed, "%s may not %s", role, event)
	}

	t.Status = next
	t.TsUpdated = time.Now().Unix()
	return nil
}
