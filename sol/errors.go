package sol

import (
	"strings"

	"github.com/meme-bots/go-nft/types"
	"github.com/pkg/errors"
)

// Substrings of RPC preflight errors and program logs, per error class.
var errorPatterns = []struct {
	target   error
	patterns []string
}{
	{types.ErrMissingSignature, []string{
		"missing required signature",
		"MissingRequiredSignature",
		"signature verification failure",
	}},
	{types.ErrAccountAlreadyInitialized, []string{
		"already in use",
		"AccountAlreadyInitialized",
		"AlreadyInitialized",
		"already initialized",
	}},
	{types.ErrInsufficientFunds, []string{
		"insufficient lamports",
		"insufficient funds",
		"InsufficientFunds",
		"no record of a prior credit",
	}},
	{types.ErrInvalidCreatorShares, []string{
		"Share total must equal 100",
		"ShareTotalMustBe100",
	}},
	{types.ErrAuthorityMismatch, []string{
		"owner does not match",
		"OwnerMismatch",
		"InvalidMintAuthority",
		"Mint authority provided does not match",
		"UpdateAuthorityIncorrect",
		"Update Authority given does not match",
	}},
}

// ParseError maps an RPC or program failure onto the error taxonomy. The
// original error text is kept as context. Unknown failures are returned as is.
func ParseError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, p := range errorPatterns {
		if errors.Is(err, p.target) {
			return err
		}
		for _, pattern := range p.patterns {
			if strings.Contains(msg, pattern) {
				return errors.Wrap(p.target, msg)
			}
		}
	}

	return err
}
