package bridge

import (
	"math/big"

	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var feeDivisor = big.NewInt(10000)

// CalculateFee computes floor(amount * feeBasisPoints / 10000) with integer
// arithmetic exclusively. Ledger amounts never touch floating point, so
// repeated calls with identical inputs are bit-identical.
func CalculateFee(amount *big.Int, feeBasisPoints int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(feeBasisPoints))
	return fee.Div(fee, feeDivisor)
}

// QuoteFee is the quote-only entry point: same integer rule as creation,
// persists nothing.
func (o *Orchestrator) QuoteFee(amount string, direction types.Direction) (string, error) {
	pc, err := o.registry.Lookup(direction)
	if err != nil {
		return "", err
	}

	amountBI, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", errors.Wrapf(types.ErrAmountOutOfBounds, "amount %q is not a base-10 integer", amount)
	}
	if amountBI.Sign() < 0 {
		return "", errors.Wrapf(types.ErrAmountOutOfBounds, "amount %q is negative", amount)
	}

	return CalculateFee(amountBI, pc.FeeBasisPoints).String(), nil
}

// EstimateOutput applies the pair's conversion rate to the post-fee amount.
// Display and quoting only: the rate never reaches the ledger record.
func (o *Orchestrator) EstimateOutput(amount string, direction types.Direction) (string, error) {
	pc, err := o.registry.Lookup(direction)
	if err != nil {
		return "", err
	}

	amountBI, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", errors.Wrapf(types.ErrAmountOutOfBounds, "amount %q is not a base-10 integer", amount)
	}

	rate, err := decimal.NewFromString(pc.ConversionRate)
	if err != nil {
		return "", errors.Wrapf(err, "malformed conversion rate for %s", direction)
	}

	net := new(big.Int).Sub(amountBI, CalculateFee(amountBI, pc.FeeBasisPoints))
	out := decimal.NewFromBigInt(net, 0).Mul(rate)
	return out.Floor().String(), nil
}
