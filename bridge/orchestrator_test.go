package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"goaetherbridge/memstore"
	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a deterministic network adapter: it fails exactly when a
// test tells it to, and counts calls so at-most-once settlement can be
// asserted.
type fakeAdapter struct {
	mu sync.Mutex

	verifyResult  bool
	verifyErr     error
	settleErr     error
	compensateErr error

	settleCalls     int32
	compensateCalls int32
}

func (f *fakeAdapter) VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyResult, f.verifyErr
}

func (f *fakeAdapter) Settle(ctx context.Context, destAddress, amount string) (string, error) {
	atomic.AddInt32(&f.settleCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return "", f.settleErr
	}
	return "0xdeadbeef", nil
}

func (f *fakeAdapter) Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error) {
	atomic.AddInt32(&f.compensateCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.compensateErr != nil {
		return "", f.compensateErr
	}
	return "comp-tx-1", nil
}

// countingStore wraps a store and counts Insert calls.
type countingStore struct {
	types.TransactionStore
	inserts int32
}

func (c *countingStore) Insert(ctx context.Context, tx *types.BridgeTransaction) (*types.BridgeTransaction, error) {
	atomic.AddInt32(&c.inserts, 1)
	return c.TransactionStore.Insert(ctx, tx)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type testRig struct {
	orch   *Orchestrator
	store  *countingStore
	source *fakeAdapter
	dest   *fakeAdapter
}

func newTestRig() *testRig {
	store := &countingStore{TransactionStore: memstore.New()}
	source := &fakeAdapter{verifyResult: true}
	dest := &fakeAdapter{}

	adapters := map[types.Network]types.NetworkAdapter{
		types.NetworkAethercoin:  source,
		types.NetworkFractalcoin: dest,
	}
	return &testRig{
		orch:   New(store, adapters, DefaultRegistry(), quietLogger()),
		store:  store,
		source: source,
		dest:   dest,
	}
}

func createTx(t *testing.T, rig *testRig) *types.BridgeTransaction {
	t.Helper()
	tx, err := rig.orch.Create(context.Background(), CreateParams{
		UserID:        "user-1",
		SourceAddress: "aether1qsource",
		DestAddress:   "fractal1qdest",
		Amount:        "1000000000000000000000",
		Direction:     types.DirectionAetherToFractal,
		SourceTxHash:  "srctx-1",
	})
	require.NoError(t, err)
	return tx
}

func TestCreate_RoundTrip(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	tx := createTx(t, rig)

	got, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, got.Status)
	assert.EqualValues(t, 0, got.TsCompleted)
	assert.Equal(t, types.NetworkAethercoin, got.SourceNetwork)
	assert.Equal(t, types.NetworkFractalcoin, got.DestNetwork)

	// fee matches the quote-only path with the same inputs
	quoted, err := rig.orch.QuoteFee(got.Amount, got.Direction)
	require.NoError(t, err)
	assert.Equal(t, quoted, got.Fee)
	assert.Equal(t, "1000000000000000000", got.Fee)
}

func TestCreate_RejectsWithoutPersisting(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	// below the pair minimum
	_, err := rig.orch.Create(ctx, CreateParams{
		UserID:        "user-1",
		SourceAddress: "a",
		DestAddress:   "b",
		Amount:        "500",
		Direction:     types.DirectionAetherToFractal,
	})
	assert.ErrorIs(t, err, types.ErrAmountOutOfBounds)

	// unknown direction
	_, err = rig.orch.Create(ctx, CreateParams{
		UserID:        "user-1",
		SourceAddress: "a",
		DestAddress:   "b",
		Amount:        "1000000000000000000",
		Direction:     types.Direction("mars_to_venus"),
	})
	assert.ErrorIs(t, err, types.ErrUnsupportedPair)

	// malformed amount
	_, err = rig.orch.Create(ctx, CreateParams{
		UserID:        "user-1",
		SourceAddress: "a",
		DestAddress:   "b",
		Amount:        "1e18",
		Direction:     types.DirectionAetherToFractal,
	})
	assert.ErrorIs(t, err, types.ErrAmountOutOfBounds)

	assert.EqualValues(t, 0, atomic.LoadInt32(&rig.store.inserts), "insert must not be called for rejected requests")
}

func TestVerifySource(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	confirmed, err := rig.orch.VerifySource(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, confirmed)

	// verification does not advance status by itself
	got, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, got.Status)

	// transient node failure is distinguishable from "not confirmed"
	rig.source.verifyErr = types.NewTransientAdapterError(types.NetworkAethercoin, "verify", errors.New("connection refused"))
	_, err = rig.orch.VerifySource(ctx, tx.ID)
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))

	// unknown id, no side effects
	_, err = rig.orch.VerifySource(ctx, "no-such-id")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCompleteLifecycle(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)

	completed, err := rig.orch.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, completed.Status)
	assert.Equal(t, "0xdeadbeef", completed.DestTxHash)
	assert.NotZero(t, completed.TsCompleted)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rig.dest.settleCalls))

	// fee and amount never change after creation
	assert.Equal(t, tx.Amount, completed.Amount)
	assert.Equal(t, tx.Fee, completed.Fee)
}

func TestComplete_RequiresConfirmedSource(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	// INITIATED cannot be completed, no skipping
	_, err := rig.orch.Complete(ctx, tx.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.EqualValues(t, 0, atomic.LoadInt32(&rig.dest.settleCalls))
}

func TestComplete_SettleFailureParksInFailed(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)

	rig.dest.settleErr = types.NewPermanentAdapterError(types.NetworkFractalcoin, "settle", errors.New("destination rejected"))

	// settlement failure is data, not an error
	failed, err := rig.orch.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Equal(t, "SETTLE_FAILED", failed.Metadata.ErrorCode)
	assert.Contains(t, failed.Metadata.ErrorMessage, "destination rejected")
	assert.Empty(t, failed.DestTxHash)
	assert.Zero(t, failed.TsCompleted)
}

func TestRevert(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)
	rig.dest.settleErr = errors.New("destination rejected")
	_, err = rig.orch.Complete(ctx, tx.ID)
	require.NoError(t, err)

	reverted, err := rig.orch.Revert(ctx, tx.ID, "manual retry")
	require.NoError(t, err)
	assert.Equal(t, types.StatusReverted, reverted.Status)
	assert.Equal(t, "manual retry", reverted.Metadata.RevertReason)
	assert.Equal(t, "comp-tx-1", reverted.Metadata.Extra["compensationTxHash"])
	assert.NotZero(t, reverted.TsCompleted)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rig.source.compensateCalls))

	// the original failure stays on the record
	assert.Contains(t, reverted.Metadata.ErrorMessage, "destination rejected")
}

func TestRevert_OnlyFromFailed(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.Revert(ctx, tx.ID, "nope")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.EqualValues(t, 0, atomic.LoadInt32(&rig.source.compensateCalls))
}

func TestRevert_CompensateFailureStaysFailed(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)
	rig.dest.settleErr = errors.New("destination rejected")
	_, err = rig.orch.Complete(ctx, tx.ID)
	require.NoError(t, err)

	rig.source.compensateErr = errors.New("source node unavailable")

	failed, err := rig.orch.Revert(ctx, tx.ID, "try return")
	require.NoError(t, err)
	// not stuck in REVERTING, stays retryable
	assert.Equal(t, types.StatusFailed, failed.Status)

	rig.source.compensateErr = nil
	reverted, err := rig.orch.Revert(ctx, tx.ID, "second try")
	require.NoError(t, err)
	assert.Equal(t, types.StatusReverted, reverted.Status)
	assert.Equal(t, "second try", reverted.Metadata.RevertReason)
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	ctx := context.Background()

	terminalRecord := func(t *testing.T, rig *testRig, terminal types.Status) *types.BridgeTransaction {
		t.Helper()
		tx := createTx(t, rig)
		_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
		require.NoError(t, err)
		switch terminal {
		case types.StatusCompleted:
			_, err = rig.orch.Complete(ctx, tx.ID)
			require.NoError(t, err)
		case types.StatusReverted:
			rig.dest.settleErr = errors.New("boom")
			_, err = rig.orch.Complete(ctx, tx.ID)
			require.NoError(t, err)
			_, err = rig.orch.Revert(ctx, tx.ID, "return")
			require.NoError(t, err)
		}
		return tx
	}

	for _, terminal := range []types.Status{types.StatusCompleted, types.StatusReverted} {
		t.Run(string(terminal), func(t *testing.T) {
			rig := newTestRig()
			tx := terminalRecord(t, rig, terminal)

			before, err := rig.orch.Get(ctx, tx.ID)
			require.NoError(t, err)
			tsCompleted := before.TsCompleted

			_, err = rig.orch.ConfirmSource(ctx, tx.ID, "late")
			assert.ErrorIs(t, err, types.ErrInvalidTransition)
			_, err = rig.orch.Complete(ctx, tx.ID)
			assert.ErrorIs(t, err, types.ErrInvalidTransition)
			_, err = rig.orch.Revert(ctx, tx.ID, "late")
			assert.ErrorIs(t, err, types.ErrInvalidTransition)

			after, err := rig.orch.Get(ctx, tx.ID)
			require.NoError(t, err)
			assert.Equal(t, terminal, after.Status)
			assert.Equal(t, tsCompleted, after.TsCompleted, "TsCompleted must be set at most once")
		})
	}
}

func TestConcurrentComplete_AtMostOnce(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = rig.orch.Complete(ctx, tx.ID)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			isRace := errors.Is(err, types.ErrConflict) || errors.Is(err, types.ErrInvalidTransition)
			assert.True(t, isRace, "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent complete must win")
	assert.EqualValues(t, 1, atomic.LoadInt32(&rig.dest.settleCalls), "destination must be settled exactly once")

	final, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, final.Status)
	assert.Equal(t, "0xdeadbeef", final.DestTxHash)
}

func TestRecoverInterrupted(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)

	// simulate a crash between the in-flight write and the settle call
	_, err = rig.store.UpdateStatus(ctx, tx.ID, types.StatusConfirmedSource, types.StatusMinting, types.Metadata{}, nil)
	require.NoError(t, err)

	require.NoError(t, rig.orch.RecoverInterrupted(ctx))

	failed, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Equal(t, "INTERRUPTED", failed.Metadata.ErrorCode)

	// the standard revert path now applies
	reverted, err := rig.orch.Revert(ctx, tx.ID, "interrupted settlement")
	require.NoError(t, err)
	assert.Equal(t, types.StatusReverted, reverted.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rig.source.compensateCalls))
}

func TestRecoverInterrupted_LeavesHealthyRecordsAlone(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	_, err := rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)

	require.NoError(t, rig.orch.RecoverInterrupted(ctx))

	got, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmedSource, got.Status)
}

func TestListByUser_NewestFirst(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	first := createTx(t, rig)
	second := createTx(t, rig)

	txs, err := rig.orch.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)

	none, err := rig.orch.ListByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGet_Idempotent(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	tx := createTx(t, rig)

	first, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	second, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// a mutating call changes the view
	_, err = rig.orch.ConfirmSource(ctx, tx.ID, "")
	require.NoError(t, err)
	third, err := rig.orch.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmedSource, third.Status)
}
