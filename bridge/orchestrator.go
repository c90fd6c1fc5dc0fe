package bridge

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"goaetherbridge/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Orchestrator drives the bridge transaction state machine. It owns no
// mutable state of its own: all record state lives in the store, all chain
// interaction goes through the injected adapters, and every mutation is an
// atomic status check-and-set so progression is at-most-once per id even
// with multiple process instances running.
type Orchestrator struct {
	store    types.TransactionStore
	adapters map[types.Network]types.NetworkAdapter
	registry *Registry
	logger   *logrus.Logger
}

// New constructs an orchestrator with its collaborators passed in.
func New(store types.TransactionStore, adapters map[types.Network]types.NetworkAdapter, registry *Registry, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		store:    store,
		adapters: adapters,
		registry: registry,
		logger:   logger,
	}
}

// CreateParams are the inputs for a new transfer request. SourceTxHash is
// the user's funding transaction on the source network; the API requires it,
// since verification polls that reference for confirmations.
type CreateParams struct {
	UserID        string
	SourceAddress string
	DestAddress   string
	Amount        string
	Direction     types.Direction
	SourceTxHash  string
}

// Create validates the request, computes the fee and persists a new record
// with status INITIATED. Validation failures reject before any write, so a
// record is never persisted half-populated.
func (o *Orchestrator) Create(ctx context.Context, p CreateParams) (*types.BridgeTransaction, error) {
	source, dest, ok := p.Direction.Resolve()
	if !ok {
		return nil, errors.Wrapf(types.ErrUnsupportedPair, "unknown direction %q", p.Direction)
	}

	pc, err := o.registry.Lookup(p.Direction)
	if err != nil {
		return nil, err
	}

	amountBI, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return nil, errors.Wrapf(types.ErrAmountOutOfBounds, "amount %q is not a base-10 integer", p.Amount)
	}
	if err := o.registry.CheckAmount(p.Direction, amountBI); err != nil {
		return nil, err
	}

	fee := CalculateFee(amountBI, pc.FeeBasisPoints)

	tx := &types.BridgeTransaction{
		ID:            uuid.New().String(),
		UserID:        p.UserID,
		SourceNetwork: source,
		DestNetwork:   dest,
		SourceAddress: p.SourceAddress,
		DestAddress:   p.DestAddress,
		Amount:        amountBI.String(),
		Fee:           fee.String(),
		Direction:     p.Direction,
		Status:        types.StatusInitiated,
		SourceTxHash:  p.SourceTxHash,
		TsCreated:     time.Now().Unix(),
	}

	stored, err := o.store.Insert(ctx, tx)
	if err != nil {
		return nil, errors.Wrap(err, "storing bridge transaction")
	}

	o.logger.WithFields(logrus.Fields{
		"id":        stored.ID,
		"user":      stored.UserID,
		"direction": stored.Direction,
		"amount":    stored.Amount,
		"fee":       stored.Fee,
	}).Info("created bridge transaction")

	return stored, nil
}

// VerifySource asks the source network whether the funding transaction has
// reached its required confirmations. It never mutates status: the caller
// (poller or API handler) advances state via ConfirmSource when this
// returns true. false with nil error means not confirmed yet, which is
// distinct from failing to reach the node (a transient *AdapterError).
func (o *Orchestrator) VerifySource(ctx context.Context, id string) (bool, error) {
	tx, err := o.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	adapter, err := o.adapterFor(tx.SourceNetwork)
	if err != nil {
		return false, err
	}

	confirmed, err := adapter.VerifySource(ctx, tx.SourceAddress, tx.Amount, tx.SourceTxHash)
	if err != nil {
		return false, err
	}
	return confirmed, nil
}

// ConfirmSource advances INITIATED to CONFIRMED_SOURCE, recording the
// funding tx reference when provided. Callers invoke it after VerifySource
// reported true.
func (o *Orchestrator) ConfirmSource(ctx context.Context, id string, sourceTxHash string) (*types.BridgeTransaction, error) {
	if err := o.checkTransition(ctx, id, types.StatusConfirmedSource); err != nil {
		return nil, err
	}

	updated, err := o.store.UpdateStatus(ctx, id, types.StatusInitiated, types.StatusConfirmedSource, types.Metadata{}, func(tx *types.BridgeTransaction) {
		if tx.SourceTxHash == "" && sourceTxHash != "" {
			tx.SourceTxHash = sourceTxHash
		}
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{"id": id, "sourceTxHash": updated.SourceTxHash}).Info("source transaction confirmed")
	return updated, nil
}

// Complete settles the transfer on the destination network. The record must
// be exactly CONFIRMED_SOURCE: status moves to MINTING before the settle
// call so a crash mid-call leaves an auditable intermediate state, and the
// adapter call runs outside any critical section. Settlement failure is not
// an error to the caller: the record transitions to FAILED with the failure
// captured in metadata and is returned for inspection.
func (o *Orchestrator) Complete(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	if err := o.checkTransition(ctx, id, types.StatusMinting); err != nil {
		return nil, err
	}

	tx, err := o.store.UpdateStatus(ctx, id, types.StatusConfirmedSource, types.StatusMinting, types.Metadata{}, nil)
	if err != nil {
		return nil, err
	}

	adapter, err := o.adapterFor(tx.DestNetwork)
	if err != nil {
		// no way to settle, record it and park the transaction in FAILED
		return o.markFailed(ctx, id, types.StatusMinting, "NO_ADAPTER", err.Error())
	}

	// the user receives amount minus the bridge fee
	amountBI, ok := tx.AmountBig()
	if !ok {
		return o.markFailed(ctx, id, types.StatusMinting, "CORRUPT_AMOUNT", "stored amount is not a base-10 integer")
	}
	feeBI, ok := new(big.Int).SetString(tx.Fee, 10)
	if !ok {
		return o.markFailed(ctx, id, types.StatusMinting, "CORRUPT_FEE", "stored fee is not a base-10 integer")
	}
	netAmount := new(big.Int).Sub(amountBI, feeBI)

	o.logger.WithFields(logrus.Fields{
		"id":      tx.ID,
		"network": tx.DestNetwork,
		"to":      tx.DestAddress,
		"amount":  netAmount.String(),
		"fee":     tx.Fee,
	}).Info("settling on destination network")

	destTxHash, err := adapter.Settle(ctx, tx.DestAddress, netAmount.String())
	if err != nil {
		o.logger.WithError(err).WithField("id", tx.ID).Error("destination settlement failed")
		return o.markFailed(ctx, id, types.StatusMinting, "SETTLE_FAILED", err.Error())
	}

	completed, err := o.store.UpdateStatus(ctx, id, types.StatusMinting, types.StatusCompleted, types.Metadata{}, func(tx *types.BridgeTransaction) {
		tx.DestTxHash = destTxHash
		if tx.TsCompleted == 0 {
			tx.TsCompleted = time.Now().Unix()
		}
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{"id": id, "destTxHash": destTxHash}).Info("bridge transaction completed")
	return completed, nil
}

// Revert runs the compensating action for a FAILED transfer, returning
// funds on the source side. Status moves FAILED -> REVERTING around the
// adapter call; if compensation itself fails the record goes back to FAILED
// rather than sticking in REVERTING, so the revert can be retried.
func (o *Orchestrator) Revert(ctx context.Context, id string, reason string) (*types.BridgeTransaction, error) {
	if err := o.checkTransition(ctx, id, types.StatusReverting); err != nil {
		return nil, err
	}

	tx, err := o.store.UpdateStatus(ctx, id, types.StatusFailed, types.StatusReverting, types.Metadata{RevertReason: reason}, nil)
	if err != nil {
		return nil, err
	}

	adapter, err := o.adapterFor(tx.SourceNetwork)
	if err != nil {
		return o.markFailed(ctx, id, types.StatusReverting, "NO_ADAPTER", err.Error())
	}

	o.logger.WithFields(logrus.Fields{
		"id":      tx.ID,
		"network": tx.SourceNetwork,
		"to":      tx.SourceAddress,
		"amount":  tx.Amount,
		"reason":  reason,
	}).Info("compensating on source network")

	compTxHash, err := adapter.Compensate(ctx, tx.SourceAddress, tx.Amount, tx.SourceTxHash)
	if err != nil {
		o.logger.WithError(err).WithField("id", tx.ID).Error("compensation failed")
		return o.markFailed(ctx, id, types.StatusReverting, "COMPENSATE_FAILED", err.Error())
	}

	reverted, err := o.store.UpdateStatus(ctx, id, types.StatusReverting, types.StatusReverted,
		types.Metadata{Extra: map[string]string{"compensationTxHash": compTxHash}},
		func(tx *types.BridgeTransaction) {
			if tx.TsCompleted == 0 {
				tx.TsCompleted = time.Now().Unix()
			}
		})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{"id": id, "compensationTxHash": compTxHash}).Info("bridge transaction reverted")
	return reverted, nil
}

// RecoverInterrupted parks records left in-flight by an interrupted run
// back in FAILED so the standard revert path applies. MINTING and REVERTING
// are only ever held across an adapter call, so at startup, before the
// execution worker runs, any record still in them belongs to a process that
// died mid-call. A conflict means the record moved on its own and is
// skipped.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	for _, status := range []types.Status{types.StatusMinting, types.StatusReverting} {
		txs, err := o.store.ListByStatus(ctx, status)
		if err != nil {
			return errors.Wrapf(err, "listing %s transactions", status)
		}
		for _, tx := range txs {
			_, err := o.store.UpdateStatus(ctx, tx.ID, status, types.StatusFailed, types.Metadata{
				ErrorCode:    "INTERRUPTED",
				ErrorMessage: fmt.Sprintf("process exited while %s", status),
			}, nil)
			if err != nil {
				if errors.Is(err, types.ErrConflict) {
					continue
				}
				return errors.Wrapf(err, "recovering transaction %s", tx.ID)
			}
			o.logger.WithFields(logrus.Fields{"id": tx.ID, "was": status}).Warn("recovered interrupted transaction")
		}
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	return o.store.GetByID(ctx, id)
}

// ListByUser returns a user's transactions, newest first.
func (o *Orchestrator) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	return o.store.ListByUser(ctx, userID)
}

// checkTransition rejects with ErrInvalidTransition before any mutation
// when the current status does not permit moving to next. The store's CAS
// re-checks under atomicity; this pre-check exists to give callers a typed
// error instead of a conflict for plainly illegal requests.
func (o *Orchestrator) checkTransition(ctx context.Context, id string, next types.Status) error {
	tx, err := o.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !tx.Status.CanTransitionTo(next) {
		return errors.Wrapf(types.ErrInvalidTransition, "cannot move %s from %s to %s", id, tx.Status, next)
	}
	return nil
}

func (o *Orchestrator) adapterFor(network types.Network) (types.NetworkAdapter, error) {
	adapter, ok := o.adapters[network]
	if !ok {
		return nil, errors.Errorf("no adapter registered for network %s", network)
	}
	return adapter, nil
}

// markFailed parks the transaction in FAILED with the error recorded in
// metadata, returning the updated record. The ledger reflects reality even
// when the chain said no.
func (o *Orchestrator) markFailed(ctx context.Context, id string, from types.Status, code, message string) (*types.BridgeTransaction, error) {
	return o.store.UpdateStatus(ctx, id, from, types.StatusFailed, types.Metadata{
		ErrorCode:    code,
		ErrorMessage: message,
	}, nil)
}
