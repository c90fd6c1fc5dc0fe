package types

import "context"

// TransactionStore persists bridge transactions. UpdateStatus is the atomic
// check-and-set every mutating operation goes through: it must compare the
// stored status against expected before writing, in the store itself, since
// multiple process instances may run concurrently.
type TransactionStore interface {
	// Insert persists a new record, assigning ID if empty. Creation is a
	// single logical write, a record is never visible half-populated.
	Insert(ctx context.Context, tx *BridgeTransaction) (*BridgeTransaction, error)

	// GetByID returns ErrNotFound for unknown ids, never an empty record.
	GetByID(ctx context.Context, id string) (*BridgeTransaction, error)

	// UpdateStatus transitions id from expected to next atomically, merging
	// patch into the record metadata and applying mutate (may be nil) to the
	// record before the write. Returns ErrConflict when the stored status is
	// no longer expected, ErrNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id string, expected, next Status, patch Metadata, mutate func(*BridgeTransaction)) (*BridgeTransaction, error)

	// ListByUser returns a user's transactions, newest first by TsCreated.
	ListByUser(ctx context.Context, userID string) ([]*BridgeTransaction, error)

	// ListByStatus returns all transactions currently in status.
	ListByStatus(ctx context.Context, status Status) ([]*BridgeTransaction, error)

	// FindOneByStatus returns any single transaction in status, or nil when
	// none exist. Used by the execution poller.
	FindOneByStatus(ctx context.Context, status Status) (*BridgeTransaction, error)
}

// NetworkAdapter abstracts one external chain. Implementations wrap the
// chain's RPC client; failures are reported as *AdapterError so callers can
// tell transient from permanent.
type NetworkAdapter interface {
	// VerifySource checks that txRef funds sourceAddress with amount and has
	// reached the chain's required confirmations. false with nil error means
	// not confirmed yet, which is distinct from failing to reach the node.
	VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error)

	// Settle performs the destination-side mint/release and returns the
	// settlement transaction reference.
	Settle(ctx context.Context, destAddress, amount string) (string, error)

	// Compensate returns funds on the source side when a transfer cannot be
	// completed, returning the compensation transaction reference.
	Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error)
}
