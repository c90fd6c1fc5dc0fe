package EVMRPC

import (
	"goaetherbridge/config"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// WithClient runs f against the configured Ethereum RPC endpoints in order,
// moving to the next endpoint on connection or call failure.
func WithClient[T any](f func(client *ethclient.Client) (T, error)) (res T, err error) {
	var client *ethclient.Client
	for _, url := range config.EthereumRPCs {
		client, err = ethclient.Dial(url)
		if err != nil {
			logrus.WithError(err).WithField("url", url).Warn("error connecting to Ethereum RPC")
			continue
		}

		res, err = f(client)
		client.Close()
		if err == nil {
			return
		}
	}
	return
}
