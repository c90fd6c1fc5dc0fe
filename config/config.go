package config

import "goaetherbridge/types"

type Configuration struct {
	// Server config
	Server struct {
		UseSSL    bool   `yaml:"ssl"`
		Port      int    `yaml:"port"`
		RedisPort int    `yaml:"redis_port"`
		RedisHost string `yaml:"redis_host"`
	} `yaml:"server"`
	// AetherCoin node config
	Aether struct {
		RPCURL string `yaml:"rpc_url"`
		// important private stuff
		RPCUser     string `yaml:"rpc_user"`
		RPCPassword string `yaml:"rpc_pass"`
	} `yaml:"aether"`
	// FractalCoin node config
	Fractal struct {
		RPCURL   string `yaml:"rpc_url"`
		RPCToken string `yaml:"rpc_token"`
	} `yaml:"fractal"`
	// Ethereum custodian config
	EVM struct {
		PublicAddress string `yaml:"address"`
		PrivateKey    string `yaml:"private_key"`
		ChainID       int    `yaml:"chain_id"`
	} `yaml:"EVM"`
}

var Config Configuration

// maximum number of EVM RPC retries
const EVM_RETRIES = 3

// Ethereum RPC endpoints, tried in order on failure
var EthereumRPCs = []string{"https://eth.drpc.org", "https://eth.llamarpc.com"}

// PairConfig is one registry entry for a directed network pair.
// Fee is kept in basis points so fee math stays in integers end to end.
type PairConfig struct {
	ConversionRate        string // display/quoting only, never on the ledger
	FeeBasisPoints        int64
	RequiredConfirmations int
	MinAmount             string // smallest unit
	MaxAmount             string // smallest unit
}

// BridgePairs is the static registry table: three undirected network pairs,
// both directions. Loaded at process start, read-only thereafter. A pair's
// reverse never substitutes for a missing entry.
var BridgePairs = map[types.Direction]PairConfig{
	types.DirectionAetherToFractal: {
		ConversionRate:        "1",
		FeeBasisPoints:        10, // 0.1%
		RequiredConfirmations: 6,
		MinAmount:             "1000000000000000000",
		MaxAmount:             "1000000000000000000000000",
	},
	types.DirectionFractalToAether: {
		ConversionRate:        "1",
		FeeBasisPoints:        10,
		RequiredConfirmations: 12,
		MinAmount:             "1000000000000000000",
		MaxAmount:             "1000000000000000000000000",
	},
	types.DirectionAetherToEthereum: {
		ConversionRate:        "0.0425",
		FeeBasisPoints:        25, // 0.25%
		RequiredConfirmations: 6,
		MinAmount:             "10000000000000000000",
		MaxAmount:             "500000000000000000000000",
	},
	types.DirectionEthereumToAether: {
		ConversionRate:        "23.5",
		FeeBasisPoints:        25,
		RequiredConfirmations: 3,
		MinAmount:             "100000000000000000",
		MaxAmount:             "20000000000000000000000",
	},
	types.DirectionFractalToEthereum: {
		ConversionRate:        "0.0425",
		FeeBasisPoints:        25,
		RequiredConfirmations: 12,
		MinAmount:             "10000000000000000000",
		MaxAmount:             "500000000000000000000000",
	},
	types.DirectionEthereumToFractal: {
		ConversionRate:        "23.5",
		FeeBasisPoints:        25,
		RequiredConfirmations: 3,
		MinAmount:             "100000000000000000",
		MaxAmount:             "20000000000000000000000",
	},
}

// RedisStatusSets maps a lifecycle status to the Redis set holding its
// record keys. Multiple sets never contain the same operation.
var RedisStatusSets = map[types.Status]string{
	types.StatusInitiated:       "bridgetx:initiated",
	types.StatusConfirmedSource: "bridgetx:confirmedsource",
	types.StatusMinting:         "bridgetx:minting",
	types.StatusCompleted:       "bridgetx:completed",
	types.StatusFailed:          "bridgetx:failed",
	types.StatusReverting:       "bridgetx:reverting",
	types.StatusReverted:        "bridgetx:reverted",
}
