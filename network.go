package gonft

import (
	"context"

	"github.com/meme-bots/go-nft/sol"
	"github.com/meme-bots/go-nft/types"
)

// NewMinter returns the minter for cfg.Type. Only Solana is supported.
func NewMinter(ctx context.Context, cfg types.Config) (types.MinterInterface, error) {
	if cfg.Type == types.NetworkTypeSol {
		return sol.NewSolana(ctx, &cfg)
	}
	return nil, types.ErrNotImplemented
}
