package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/meme-bots/go-nft/types"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

const (
	defaultConfirmTimeout = 60 * time.Second

	// maxComputeUnitLimit is the per-transaction compute cap of the cluster.
	maxComputeUnitLimit = 1_400_000
)

func configFromFlags(c *cli.Context) (*types.Config, error) {
	computeUnitLimit := c.Uint("compute_unit_limit")
	if computeUnitLimit > maxComputeUnitLimit {
		return nil, errors.Errorf("compute_unit_limit %d exceeds the maximum of %d", computeUnitLimit, maxComputeUnitLimit)
	}

	return &types.Config{
		Type:                types.NetworkTypeSol,
		Name:                "solana",
		RPC:                 c.String("rpc"),
		WSRPC:               c.String("ws_rpc"),
		NativeTokenSymbol:   "SOL",
		NativeTokenDecimals: 9,
		Commitment:          c.String("commitment"),
		WatchBlockHash:      false,
		SkipPreflight:       c.Bool("skip_preflight"),
		ConfirmTimeout:      lo.Ternary(c.Bool("dry_run"), 0, c.Duration("confirm_timeout")),
		ComputeUnitLimit:    uint32(computeUnitLimit),
		PriorityFee:         c.Uint64("priority_fee"),
		MintBeforeEdition:   c.Bool("mint_before_edition"),
	}, nil
}

// loadPrivateKey accepts a solana-keygen JSON file or a base58 private key.
func loadPrivateKey(value string) (solana.PrivateKey, error) {
	if value == "" {
		return nil, errors.New("private key is required")
	}

	path := value
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if _, err := os.Stat(path); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load key from %s", path)
		}
		return key, nil
	}

	key, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, errors.Wrap(types.ErrMissingSignature, "key is neither a keygen file nor a base58 private key")
	}
	return key, nil
}

func parseAttributes(values []string) ([]types.Attribute, error) {
	attributes := make([]types.Attribute, 0, len(values))
	for _, value := range values {
		trait, v, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(trait) == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected trait=value", value)
		}
		attributes = append(attributes, types.Attribute{
			TraitType: strings.TrimSpace(trait),
			Value:     strings.TrimSpace(v),
		})
	}
	return attributes, nil
}

func formatNFT(nft *types.GetNFTResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "mint:              %s\n", nft.Mint)
	fmt.Fprintf(&b, "name:              %s\n", nft.Name)
	fmt.Fprintf(&b, "symbol:            %s\n", nft.Symbol)
	fmt.Fprintf(&b, "uri:               %s\n", nft.Uri)
	fmt.Fprintf(&b, "royalty:           %d bps\n", nft.SellerFeeBasisPoints)
	for i, creator := range nft.Creators {
		fmt.Fprintf(&b, "creator[%d]:        %s verified=%t share=%d\n", i, creator.Address, creator.Verified, creator.Share)
	}
	fmt.Fprintf(&b, "update authority:  %s\n", nft.UpdateAuthority)
	fmt.Fprintf(&b, "mutable:           %t\n", nft.IsMutable)
	fmt.Fprintf(&b, "master edition:    %s\n", lo.If(nft.MasterEdition == "", "-").Else(nft.MasterEdition))
	fmt.Fprintf(&b, "max supply:        %s\n", lo.TernaryF(
		nft.MaxSupply == nil,
		func() string { return "unlimited" },
		func() string { return fmt.Sprintf("%d", *nft.MaxSupply) },
	))
	fmt.Fprintf(&b, "supply:            %d\n", nft.Supply)
	if nft.Balance != nil {
		fmt.Fprintf(&b, "balance:           %s\n", nft.Balance.String())
	}
	if nft.OffChain != nil {
		fmt.Fprintf(&b, "image:             %s\n", nft.OffChain.Image)
	}

	return b.String()
}
