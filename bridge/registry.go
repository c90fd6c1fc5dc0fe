package bridge

import (
	"math/big"

	"goaetherbridge/config"
	"goaetherbridge/types"

	"github.com/pkg/errors"
)

// Registry is the static table of supported directed network pairs. It is
// built once at startup and read-only thereafter, so lookups need no lock.
type Registry struct {
	pairs map[types.Direction]config.PairConfig
}

// NewRegistry builds a registry from a pair table. The table is copied so
// later mutation of the argument cannot change lookup results.
func NewRegistry(pairs map[types.Direction]config.PairConfig) *Registry {
	copied := make(map[types.Direction]config.PairConfig, len(pairs))
	for d, pc := range pairs {
		copied[d] = pc
	}
	return &Registry{pairs: copied}
}

// DefaultRegistry uses the built-in pair table.
func DefaultRegistry() *Registry {
	return NewRegistry(config.BridgePairs)
}

// Lookup returns the config for a direction. A missing entry is
// ErrUnsupportedPair, the reverse direction's entry is never substituted.
func (r *Registry) Lookup(direction types.Direction) (config.PairConfig, error) {
	pc, ok := r.pairs[direction]
	if !ok {
		return config.PairConfig{}, errors.Wrapf(types.ErrUnsupportedPair, "direction %s", direction)
	}
	return pc, nil
}

// CheckAmount validates amount against the pair's transfer bounds.
func (r *Registry) CheckAmount(direction types.Direction, amount *big.Int) error {
	pc, err := r.Lookup(direction)
	if err != nil {
		return err
	}

	min, ok := new(big.Int).SetString(pc.MinAmount, 10)
	if !ok {
		return errors.Errorf("malformed min amount in pair config for %s", direction)
	}
	max, ok := new(big.Int).SetString(pc.MaxAmount, 10)
	if !ok {
		return errors.Errorf("malformed max amount in pair config for %s", direction)
	}

	if amount.Sign() <= 0 || amount.Cmp(min) < 0 || amount.Cmp(max) > 0 {
		return errors.Wrapf(types.ErrAmountOutOfBounds, "amount %s not in [%s, %s]", amount, pc.MinAmount, pc.MaxAmount)
	}
	return nil
}

// Directions returns every supported direction, for handlers that enumerate.
func (r *Registry) Directions() []types.Direction {
	out := make([]types.Direction, 0, len(r.pairs))
	for d := range r.pairs {
		out = append(out, d)
	}
	return out
}
