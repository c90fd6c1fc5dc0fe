package workers

import (
	"context"
	"testing"

	"goaetherbridge/bridge"
	"goaetherbridge/memstore"
	"goaetherbridge/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAdapter confirms only the funding refs a test whitelists.
type scriptedAdapter struct {
	confirmed map[string]bool
}

func (f *scriptedAdapter) VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error) {
	return f.confirmed[txRef], nil
}

func (f *scriptedAdapter) Settle(ctx context.Context, destAddress, amount string) (string, error) {
	return "0xsettled", nil
}

func (f *scriptedAdapter) Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error) {
	return "0xcomp", nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestProcessPending_StuckRecordDoesNotStarveOthers(t *testing.T) {
	store := memstore.New()
	adapter := &scriptedAdapter{confirmed: map[string]bool{"good-tx": true}}
	adapters := map[types.Network]types.NetworkAdapter{
		types.NetworkAethercoin:  adapter,
		types.NetworkFractalcoin: adapter,
	}
	orch := bridge.New(store, adapters, bridge.DefaultRegistry(), quietLogger())
	ctx := context.Background()

	stuck, err := orch.Create(ctx, bridge.CreateParams{
		UserID:        "u1",
		SourceAddress: "aether1qa",
		DestAddress:   "fractal1qb",
		Amount:        "1000000000000000000000",
		Direction:     types.DirectionAetherToFractal,
		SourceTxHash:  "never-confirms",
	})
	require.NoError(t, err)

	healthy, err := orch.Create(ctx, bridge.CreateParams{
		UserID:        "u2",
		SourceAddress: "aether1qc",
		DestAddress:   "fractal1qd",
		Amount:        "1000000000000000000000",
		Direction:     types.DirectionAetherToFractal,
		SourceTxHash:  "good-tx",
	})
	require.NoError(t, err)

	// first pass confirms the funded record, second pass settles it
	processPending(ctx, orch, store, quietLogger())
	processPending(ctx, orch, store, quietLogger())

	got, err := orch.Get(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status, "an unconfirmable record must not block others")

	still, err := orch.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, still.Status)
}

func TestProcessPending_SettlesEveryConfirmedRecord(t *testing.T) {
	store := memstore.New()
	adapter := &scriptedAdapter{confirmed: map[string]bool{"tx-a": true, "tx-b": true}}
	adapters := map[types.Network]types.NetworkAdapter{
		types.NetworkAethercoin:  adapter,
		types.NetworkFractalcoin: adapter,
	}
	orch := bridge.New(store, adapters, bridge.DefaultRegistry(), quietLogger())
	ctx := context.Background()

	var ids []string
	for _, ref := range []string{"tx-a", "tx-b"} {
		tx, err := orch.Create(ctx, bridge.CreateParams{
			UserID:        "u1",
			SourceAddress: "aether1qa",
			DestAddress:   "fractal1qb",
			Amount:        "1000000000000000000000",
			Direction:     types.DirectionAetherToFractal,
			SourceTxHash:  ref,
		})
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	processPending(ctx, orch, store, quietLogger())
	processPending(ctx, orch, store, quietLogger())

	for _, id := range ids {
		got, err := orch.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusCompleted, got.Status)
	}
}
