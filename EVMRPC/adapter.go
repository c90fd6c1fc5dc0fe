package EVMRPC

import (
	"context"
	"math/big"
	"strings"

	"goaetherbridge/config"
	"goaetherbridge/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const transferGasLimit = 21000

// Adapter is the ETHEREUM network adapter. Verification is receipt-based;
// settlement and compensation are value transfers signed with the custodian
// key.
type Adapter struct {
	chainID       int64
	custodian     string
	privateKeyHex string
	confirmations int
	logger        *logrus.Logger
}

var _ types.NetworkAdapter = (*Adapter)(nil)

func NewAdapter(chainID int64, custodian, privateKeyHex string, confirmations int, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{
		chainID:       chainID,
		custodian:     custodian,
		privateKeyHex: privateKeyHex,
		confirmations: confirmations,
		logger:        logger,
	}
}

// matchesTransfer reports whether a mined value transfer pays address at
// least amount (base units).
func matchesTransfer(to *common.Address, value *big.Int, address, amount string) bool {
	required, ok := new(big.Int).SetString(amount, 10)
	if !ok || to == nil || value == nil {
		return false
	}
	if !strings.EqualFold(to.Hex(), address) {
		return false
	}
	return value.Cmp(required) >= 0
}

// confirmationDepth counts confirmations for a transaction mined in block
// mined with the chain head at head. Inclusion in the head block is one
// confirmation.
func confirmationDepth(head, mined uint64) int {
	if head < mined {
		return 0
	}
	return int(head-mined) + 1
}

// VerifySource checks that txRef is mined, succeeded, actually transfers
// amount to sourceAddress and is buried under the required number of
// confirmations. An unknown transaction is "not confirmed yet", not an
// error; a reverted or unrelated one is a permanent failure.
func (a *Adapter) VerifySource(ctx context.Context, sourceAddress, amount, txRef string) (bool, error) {
	if txRef == "" {
		// nothing to look up until the deposit tx is reported
		return false, nil
	}

	type receiptInfo struct {
		status      uint64
		blockNumber uint64
		head        uint64
		found       bool
		to          *common.Address
		value       *big.Int
	}

	info, err := WithClient(func(client *ethclient.Client) (receiptInfo, error) {
		receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txRef))
		if errors.Is(err, ethereum.NotFound) {
			return receiptInfo{found: false}, nil
		}
		if err != nil {
			return receiptInfo{}, err
		}

		tx, _, err := client.TransactionByHash(ctx, common.HexToHash(txRef))
		if err != nil {
			return receiptInfo{}, err
		}

		head, err := client.BlockNumber(ctx)
		if err != nil {
			return receiptInfo{}, err
		}

		return receiptInfo{
			status:      receipt.Status,
			blockNumber: receipt.BlockNumber.Uint64(),
			head:        head,
			found:       true,
			to:          tx.To(),
			value:       tx.Value(),
		}, nil
	})
	if err != nil {
		return false, types.NewTransientAdapterError(types.NetworkEthereum, "verify", err)
	}
	if !info.found {
		return false, nil
	}
	if info.status != ethtypes.ReceiptStatusSuccessful {
		return false, types.NewPermanentAdapterError(types.NetworkEthereum, "verify", errors.Errorf("transaction %s reverted on chain", txRef))
	}
	if !matchesTransfer(info.to, info.value, sourceAddress, amount) {
		return false, types.NewPermanentAdapterError(types.NetworkEthereum, "verify",
			errors.Errorf("transaction %s does not transfer %s to %s", txRef, amount, sourceAddress))
	}

	return confirmationDepth(info.head, info.blockNumber) >= a.confirmations, nil
}

// Settle sends amount (smallest unit) to destAddress from the custodian
// wallet.
func (a *Adapter) Settle(ctx context.Context, destAddress, amount string) (string, error) {
	return a.send(ctx, "settle", destAddress, amount)
}

// Compensate returns amount to sourceAddress. On Ethereum the compensating
// action is the same value transfer as settlement.
func (a *Adapter) Compensate(ctx context.Context, sourceAddress, amount, txRef string) (string, error) {
	return a.send(ctx, "compensate", sourceAddress, amount)
}

func (a *Adapter) send(ctx context.Context, op, address, amount string) (string, error) {
	amountBI, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", types.NewPermanentAdapterError(types.NetworkEthereum, op, errors.Errorf("amount %q is not a base-10 integer", amount))
	}

	privateKey, err := crypto.HexToECDSA(a.privateKeyHex)
	if err != nil {
		return "", types.NewPermanentAdapterError(types.NetworkEthereum, op, errors.Wrap(err, "error instantiating private key"))
	}

	var sent *ethtypes.Transaction
	var reterr error
	for i := 0; i < config.EVM_RETRIES; i++ {
		sent, reterr = func() (*ethtypes.Transaction, error) {
			return WithClient(func(client *ethclient.Client) (*ethtypes.Transaction, error) {
				nonce, err := client.PendingNonceAt(ctx, common.HexToAddress(a.custodian))
				if err != nil {
					return nil, errors.Wrap(err, "error getting nonce for wallet")
				}

				gasPrice, err := client.SuggestGasPrice(ctx)
				if err != nil {
					return nil, errors.Wrap(err, "error getting suggested gas price")
				}

				tx := ethtypes.NewTransaction(nonce, common.HexToAddress(address), amountBI, transferGasLimit, gasPrice, nil)
				signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(a.chainID)), privateKey)
				if err != nil {
					return nil, errors.Wrap(err, "error signing transaction")
				}

				if err := client.SendTransaction(ctx, signed); err != nil {
					return nil, errors.Wrap(err, "error broadcasting transaction")
				}
				return signed, nil
			})
		}()
		if reterr == nil {
			a.logger.WithFields(logrus.Fields{"op": op, "to": address, "amount": amount, "tx": sent.Hash().Hex()}).Info("Ethereum transfer sent")
			return sent.Hash().Hex(), nil
		}
		a.logger.WithError(reterr).WithField("op", op).Warn("Ethereum send attempt failed")
	}

	return "", types.NewTransientAdapterError(types.NetworkEthereum, op, reterr)
}
