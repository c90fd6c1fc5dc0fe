package types

import (
	"math/big"
	"time"
)

// Network identifies one of the chains the bridge custodies funds on.
type Network string

const (
	NetworkAethercoin  Network = "AETHERCOIN"
	NetworkFractalcoin Network = "FRACTALCOIN"
	NetworkEthereum    Network = "ETHEREUM"
)

// Direction is a named shorthand for an ordered (source, destination)
// network pair. The API accepts directions, not raw pairs.
type Direction string

const (
	DirectionAetherToFractal   Direction = "aether_to_fractal"
	DirectionFractalToAether   Direction = "fractal_to_aether"
	DirectionAetherToEthereum  Direction = "aether_to_ethereum"
	DirectionEthereumToAether  Direction = "ethereum_to_aether"
	DirectionFractalToEthereum Direction = "fractal_to_ethereum"
	DirectionEthereumToFractal Direction = "ethereum_to_fractal"
)

var directionPairs = map[Direction][2]Network{
	DirectionAetherToFractal:   {NetworkAethercoin, NetworkFractalcoin},
	DirectionFractalToAether:   {NetworkFractalcoin, NetworkAethercoin},
	DirectionAetherToEthereum:  {NetworkAethercoin, NetworkEthereum},
	DirectionEthereumToAether:  {NetworkEthereum, NetworkAethercoin},
	DirectionFractalToEthereum: {NetworkFractalcoin, NetworkEthereum},
	DirectionEthereumToFractal: {NetworkEthereum, NetworkFractalcoin},
}

// Resolve returns the (source, destination) pair for a direction.
func (d Direction) Resolve() (Network, Network, bool) {
	pair, ok := directionPairs[d]
	if !ok {
		return "", "", false
	}
	return pair[0], pair[1], true
}

// Status is the lifecycle state of a bridge transaction.
type Status string

const (
	StatusInitiated       Status = "INITIATED"
	StatusConfirmedSource Status = "CONFIRMED_SOURCE"
	StatusMinting         Status = "MINTING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusReverting       Status = "REVERTING"
	StatusReverted        Status = "REVERTED"
)

// AllStatuses lists every lifecycle state, used by stores to build indexes.
var AllStatuses = []Status{
	StatusInitiated,
	StatusConfirmedSource,
	StatusMinting,
	StatusCompleted,
	StatusFailed,
	StatusReverting,
	StatusReverted,
}

// statusTransitions is the single source of truth for legal status edges.
// Every mutating operation consults it before touching the store, and the
// store re-checks the current status atomically.
var statusTransitions = map[Status][]Status{
	StatusInitiated:       {StatusConfirmedSource, StatusFailed},
	StatusConfirmedSource: {StatusMinting, StatusFailed},
	StatusMinting:         {StatusCompleted, StatusFailed},
	StatusFailed:          {StatusReverting},
	StatusReverting:       {StatusReverted, StatusFailed},
	// COMPLETED and REVERTED are terminal
	StatusCompleted: {},
	StatusReverted:  {},
}

// CanTransitionTo reports whether the edge s -> next is in the table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	allowed, ok := statusTransitions[s]
	return ok && len(allowed) == 0
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Metadata is the diagnostic bag on a bridge transaction. The known fields
// are typed; Extra is the escape hatch for adapter-specific values.
type Metadata struct {
	ErrorCode    string            `json:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	RevertReason string            `json:"revertReason,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Merge applies patch on top of m, field by field. Empty patch fields leave
// the existing value untouched, error messages accumulate, Extra keys merge
// last-writer-wins without clobbering unrelated keys.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m
	if patch.ErrorCode != "" {
		out.ErrorCode = patch.ErrorCode
	}
	if patch.ErrorMessage != "" {
		if out.ErrorMessage == "" {
			out.ErrorMessage = patch.ErrorMessage
		} else {
			out.ErrorMessage += "; " + patch.ErrorMessage
		}
	}
	if patch.RevertReason != "" {
		out.RevertReason = patch.RevertReason
	}
	if len(patch.Extra) > 0 {
		merged := make(map[string]string, len(m.Extra)+len(patch.Extra))
		for k, v := range m.Extra {
			merged[k] = v
		}
		for k, v := range patch.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// BridgeTransaction is a single cross-network transfer and its lifecycle.
// Records are never deleted, only advanced through Status, so the store is
// a permanent audit trail.
type BridgeTransaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	SourceNetwork Network   `json:"sourceNetwork"`
	DestNetwork   Network   `json:"destNetwork"`
	SourceAddress string    `json:"sourceAddress"`
	DestAddress   string    `json:"destAddress"`
	Amount        string    `json:"amount"` // smallest unit, decimal string
	Fee           string    `json:"fee"`    // smallest unit, fixed at creation
	Direction     Direction `json:"direction"`
	Status        Status    `json:"status"`
	SourceTxHash  string    `json:"sourceTxHash,omitempty"`
	DestTxHash    string    `json:"destTxHash,omitempty"`
	TsCreated     int64     `json:"tsCreated"`
	TsCompleted   int64     `json:"tsCompleted,omitempty"` // 0 until first terminal state
	Metadata      Metadata  `json:"metadata,omitempty"`
}

// AmountBig parses the ledger amount. Amounts are validated at creation so
// a parse failure on a stored record means the record was corrupted.
func (t *BridgeTransaction) AmountBig() (*big.Int, bool) {
	return new(big.Int).SetString(t.Amount, 10)
}

// Age returns how long ago the transaction was created.
func (t *BridgeTransaction) Age() time.Duration {
	return time.Since(time.Unix(t.TsCreated, 0))
}
