package workers

import (
	"context"
	"sync/atomic"
	"time"

	"goaetherbridge/bridge"
	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// shutdown signals all worker loops to exit. Set by the HTTP worker on
// SIGINT/SIGTERM.
var shutdown atomic.Bool

// Worker_processExecution drives pending transactions forward: INITIATED
// records are verified on the source network and confirmed, CONFIRMED_SOURCE
// records are settled on the destination.
func Worker_processExecution(orch *bridge.Orchestrator, store types.TransactionStore, logger *logrus.Logger) {
	for !shutdown.Load() {
		time.Sleep(3 * time.Second)
		processPending(context.Background(), orch, store, logger)
	}
}

// processPending walks every pending record once per tick. A record that
// cannot progress (unconfirmed source, unreachable node) is skipped, so it
// never blocks the records behind it.
func processPending(ctx context.Context, orch *bridge.Orchestrator, store types.TransactionStore, logger *logrus.Logger) {
	initiated, err := store.ListByStatus(ctx, types.StatusInitiated)
	if err != nil {
		logger.WithError(err).Error("error listing initiated bridge transactions")
	} else {
		for _, tx := range initiated {
			processInitiated(ctx, orch, tx, logger)
		}
	}

	confirmed, err := store.ListByStatus(ctx, types.StatusConfirmedSource)
	if err != nil {
		logger.WithError(err).Error("error listing confirmed bridge transactions")
	} else {
		for _, tx := range confirmed {
			processConfirmed(ctx, orch, tx, logger)
		}
	}
}

func processInitiated(ctx context.Context, orch *bridge.Orchestrator, tx *types.BridgeTransaction, logger *logrus.Logger) {
	confirmed, err := orch.VerifySource(ctx, tx.ID)
	if err != nil {
		if types.IsTransient(err) {
			// node unreachable, try again next tick
			logger.WithError(err).WithField("id", tx.ID).Warn("source verification unavailable")
			return
		}
		logger.WithError(err).WithField("id", tx.ID).Error("source verification failed")
		return
	}
	if !confirmed {
		// not enough confirmations yet
		return
	}

	if _, err := orch.ConfirmSource(ctx, tx.ID, ""); err != nil {
		if errors.Is(err, types.ErrConflict) || errors.Is(err, types.ErrInvalidTransition) {
			logger.WithField("id", tx.ID).Debug("transaction advanced by another instance")
			return
		}
		logger.WithError(err).WithField("id", tx.ID).Error("error confirming source transaction")
	}
}

func processConfirmed(ctx context.Context, orch *bridge.Orchestrator, tx *types.BridgeTransaction, logger *logrus.Logger) {
	updated, err := orch.Complete(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, types.ErrConflict) || errors.Is(err, types.ErrInvalidTransition) {
			logger.WithField("id", tx.ID).Debug("transaction advanced by another instance")
			return
		}
		logger.WithError(err).WithField("id", tx.ID).Error("error completing bridge transaction")
		return
	}

	if updated.Status == types.StatusFailed {
		logger.WithFields(logrus.Fields{"id": updated.ID, "error": updated.Metadata.ErrorMessage}).Warn("bridge transaction failed, awaiting revert")
	}
}
