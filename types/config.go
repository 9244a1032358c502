package types

import "time"

type (
	Config struct {
		Type                int
		Name                string
		RPC                 string
		WSRPC               string
		NativeTokenSymbol   string
		NativeTokenDecimals uint8

		Commitment     string
		WatchBlockHash bool
		SkipPreflight  bool
		ConfirmTimeout time.Duration

		ComputeUnitLimit uint32
		PriorityFee      uint64 // micro-lamports per compute unit

		// Mint the token before creating the master edition. Deployments of the
		// metadata program that require supply == 1 at edition time need this.
		MintBeforeEdition bool
	}
)
