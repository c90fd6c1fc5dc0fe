// Package AetherRPC is the AETHERCOIN network adapter, speaking the node's
// wallet JSON-RPC.
package AetherRPC

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"
)

// coinDecimals is the precision of the ledger's smallest unit. The node
// wallet API deals in whole coins.
const coinDecimals = 18

// RPC error code the node returns for a transaction its wallet has not seen.
const errCodeUnknownTx = -5

type Adapter struct {
	client        jsonrpc.RPCClient
	confirmations int
	logger        *logrus.Logger
}

var _ types.NetworkAdapter = (*Adapter)(nil)

func NewAdapter(rpcURL, rpcUser, rpcPassword string, confirmations int, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}

	opts := &jsonrpc.RPCClientOpts{}
	if rpcUser != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(rpcUser + ":" + rpcPassword))
		opts.CustomHeaders = map[string]string{"Authorization": "Basic " + auth}
	}

	return &Adapter{
		client:        jsonrpc.NewClientWithOpts(rpcURL, opts),
		confirmations: confirmations,
		logger:        logger,
	}
}

type walletTransaction struct {
	Confirmations int64            `json:"confirmations"`
	TxID          string           `json:"txid"`
	Details       []walletTxDetail `json:"details"`
}

type walletTxDetail struct {
	Address  string      `json:"address"`
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"` // whole coins
}

// VerifySource checks that txRef actually pays sourceAddress at least amount
// and is buried under the confirmation threshold. A transaction the wallet
// does not know yet is "not confirmed", an unreachable node is a transient
// error, a confirmed transaction paying someone else or too little is a
// permanent one.
func (a *Adapter) VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error) {
	if txRef == "" {
		return false, nil
	}

	amountBI, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return false, types.NewPermanentAdapterError(types.NetworkAethercoin, "verify", errors.Errorf("amount %q is not a base-10 integer", amount))
	}
	required := decimal.NewFromBigInt(amountBI, -coinDecimals)

	resp, err := a.client.Call("gettransaction", txRef)
	if err != nil {
		return false, types.NewTransientAdapterError(types.NetworkAethercoin, "verify", err)
	}
	if resp.Error != nil {
		if resp.Error.Code == errCodeUnknownTx {
			return false, nil
		}
		return false, types.NewPermanentAdapterError(types.NetworkAethercoin, "verify", errors.Errorf("node error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	var tx walletTransaction
	if err := resp.GetObject(&tx); err != nil {
		return false, types.NewPermanentAdapterError(types.NetworkAethercoin, "verify", errors.Wrap(err, "malformed gettransaction reply"))
	}

	paid := decimal.Zero
	for _, d := range tx.Details {
		if d.Category != "receive" || d.Address != sourceAddress {
			continue
		}
		v, err := decimal.NewFromString(d.Amount.String())
		if err != nil {
			return false, types.NewPermanentAdapterError(types.NetworkAethercoin, "verify", errors.Wrapf(err, "malformed amount in gettransaction detail for %s", txRef))
		}
		paid = paid.Add(v)
	}
	if paid.LessThan(required) {
		return false, types.NewPermanentAdapterError(types.NetworkAethercoin, "verify",
			errors.Errorf("transaction %s pays %s to %s, deposit requires %s", txRef, paid, sourceAddress, required))
	}

	return tx.Confirmations >= int64(a.confirmations), nil
}

func (a *Adapter) Settle(ctx context.Context, destAddress, amount string) (string, error) {
	return a.send("settle", destAddress, amount)
}

func (a *Adapter) Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error) {
	return a.send("compensate", sourceAddress, amount)
}

func (a *Adapter) send(op, address, amount string) (string, error) {
	amountBI, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", types.NewPermanentAdapterError(types.NetworkAethercoin, op, errors.Errorf("amount %q is not a base-10 integer", amount))
	}

	// the wallet API wants whole coins
	coins := decimal.NewFromBigInt(amountBI, -coinDecimals).String()

	resp, err := a.client.Call("sendtoaddress", address, coins)
	if err != nil {
		return "", types.NewTransientAdapterError(types.NetworkAethercoin, op, err)
	}
	if resp.Error != nil {
		return "", types.NewPermanentAdapterError(types.NetworkAethercoin, op, errors.Errorf("node error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	txid, err := resp.GetString()
	if err != nil {
		return "", types.NewPermanentAdapterError(types.NetworkAethercoin, op, errors.Wrap(err, "malformed sendtoaddress reply"))
	}

	a.logger.WithFields(logrus.Fields{"op": op, "to": address, "amount": coins, "tx": txid}).Info(fmt.Sprintf("AetherCoin %s sent", op))
	return txid, nil
}
