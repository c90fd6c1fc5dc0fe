// Package FractalRPC is the FRACTALCOIN network adapter. The node exposes a
// Filecoin-style namespaced JSON-RPC with bearer-token auth.
package FractalRPC

import (
	"context"
	"math/big"

	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"
)

type Adapter struct {
	client        jsonrpc.RPCClient
	confirmations int
	logger        *logrus.Logger
}

var _ types.NetworkAdapter = (*Adapter)(nil)

func NewAdapter(rpcURL, rpcToken string, confirmations int, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}

	opts := &jsonrpc.RPCClientOpts{}
	if rpcToken != "" {
		opts.CustomHeaders = map[string]string{"Authorization": "Bearer " + rpcToken}
	}

	return &Adapter{
		client:        jsonrpc.NewClientWithOpts(rpcURL, opts),
		confirmations: confirmations,
		logger:        logger,
	}
}

type messageLookup struct {
	Height   int64  `json:"height"`
	ExitCode int64  `json:"exitCode"`
	To       string `json:"to"`
	Value    string `json:"value"` // base units, decimal string
}

type chainHead struct {
	Height int64 `json:"height"`
}

// VerifySource searches for the funding message, checks it pays
// sourceAddress at least amount and compares its burial depth against the
// confirmation threshold (the including block counts as one). ExitCode != 0
// means the chain executed and rejected the message, which manual
// intervention only fixes.
func (a *Adapter) VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error) {
	if txRef == "" {
		return false, nil
	}

	required, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("amount %q is not a base-10 integer", amount))
	}

	resp, err := a.client.Call("Fractal.SearchMessage", txRef)
	if err != nil {
		return false, types.NewTransientAdapterError(types.NetworkFractalcoin, "verify", err)
	}
	if resp.Error != nil {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("node error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if resp.Result == nil {
		// not on chain yet
		return false, nil
	}

	var msg messageLookup
	if err := resp.GetObject(&msg); err != nil {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Wrap(err, "malformed SearchMessage reply"))
	}
	if msg.ExitCode != 0 {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("message %s failed with exit code %d", txRef, msg.ExitCode))
	}
	if msg.To != sourceAddress {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("message %s pays %s, deposit expected on %s", txRef, msg.To, sourceAddress))
	}
	value, ok := new(big.Int).SetString(msg.Value, 10)
	if !ok {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("malformed value %q in message %s", msg.Value, txRef))
	}
	if value.Cmp(required) < 0 {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Errorf("message %s pays %s, deposit requires %s", txRef, msg.Value, amount))
	}

	headResp, err := a.client.Call("Fractal.ChainHead")
	if err != nil {
		return false, types.NewTransientAdapterError(types.NetworkFractalcoin, "verify", err)
	}
	var head chainHead
	if err := headResp.GetObject(&head); err != nil {
		return false, types.NewPermanentAdapterError(types.NetworkFractalcoin, "verify", errors.Wrap(err, "malformed ChainHead reply"))
	}

	return head.Height-msg.Height+1 >= int64(a.confirmations), nil
}

func (a *Adapter) Settle(ctx context.Context, destAddress, amount string) (string, error) {
	return a.send("settle", destAddress, amount)
}

func (a *Adapter) Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error) {
	return a.send("compensate", sourceAddress, amount)
}

func (a *Adapter) send(op, address, amount string) (string, error) {
	if _, ok := new(big.Int).SetString(amount, 10); !ok {
		return "", types.NewPermanentAdapterError(types.NetworkFractalcoin, op, errors.Errorf("amount %q is not a base-10 integer", amount))
	}

	resp, err := a.client.Call("Fractal.SendFunds", address, amount)
	if err != nil {
		return "", types.NewTransientAdapterError(types.NetworkFractalcoin, op, err)
	}
	if resp.Error != nil {
		return "", types.NewPermanentAdapterError(types.NetworkFractalcoin, op, errors.Errorf("node error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	cid, err := resp.GetString()
	if err != nil {
		return "", types.NewPermanentAdapterError(types.NetworkFractalcoin, op, errors.Wrap(err, "malformed SendFunds reply"))
	}

	a.logger.WithFields(logrus.Fields{"op": op, "to": address, "amount": amount, "cid": cid}).Info("FractalCoin transfer sent")
	return cid, nil
}
