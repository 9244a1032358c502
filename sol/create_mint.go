package sol

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/types"
	"github.com/meme-bots/go-nft/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NFTDecimals is the decimals of every mint created for an NFT.
const NFTDecimals uint8 = 0

// BuildCreateMintInstructions returns the instructions creating an
// uninitialized account for mint and initializing it as a 0-decimal mint with
// payer as mint and freeze authority.
func BuildCreateMintInstructions(
	mint solana.PublicKey,
	payer solana.PublicKey,
	rent uint64,
	opts *BuildOptions,
) []solana.Instruction {
	instructions := make([]solana.Instruction, 0, 4)
	if opts != nil && opts.ComputeUnitLimit > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(opts.ComputeUnitLimit).Build())
	}
	if opts != nil && opts.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(opts.PriorityFee).Build())
	}

	return append(instructions,
		system.NewCreateAccountInstruction(
			rent,
			common.MintSize,
			common.TokenProgramID,
			payer,
			mint,
		).Build(),
		token.NewInitializeMint2Instruction(
			NFTDecimals,
			payer,
			payer,
			mint,
		).Build(),
	)
}

func (s *Solana) BuildCreateMintTransaction(req *types.CreateMintRequest, privateKey string) (*solana.Transaction, *types.CreateMintResponse, error) {
	payer, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, nil, errors.Wrap(types.ErrMissingSignature, "invalid payer private key")
	}

	var mint solana.PrivateKey
	if req.MintPrivateKey != "" {
		mint, err = solana.PrivateKeyFromBase58(req.MintPrivateKey)
		if err != nil {
			return nil, nil, errors.Wrap(types.ErrMissingSignature, "invalid mint private key")
		}
	} else {
		mint, err = solana.NewRandomPrivateKey()
		if err != nil {
			return nil, nil, err
		}
	}

	rent, err := s.getRentExemption(common.MintSize)
	if err != nil {
		return nil, nil, err
	}

	balance, err := s.client.GetBalance(s.ctx, payer.PublicKey(), s.commitment())
	if err != nil {
		return nil, nil, err
	}
	if cost := rent + s.transactionFee(2); balance.Value < cost {
		return nil, nil, errors.Wrapf(types.ErrInsufficientFunds, "payer has %s, needs %s", utils.FormatLamports(balance.Value), utils.FormatLamports(cost))
	}

	instructions := BuildCreateMintInstructions(mint.PublicKey(), payer.PublicKey(), rent, &BuildOptions{
		ComputeUnitLimit: s.cfg.ComputeUnitLimit,
		PriorityFee:      s.cfg.PriorityFee,
	})

	tx, err := s.buildTransaction(instructions, payer, mint)
	if err != nil {
		return nil, nil, err
	}

	return tx, &types.CreateMintResponse{
		TxHash: tx.Signatures[0].String(),
		Mint:   mint.PublicKey().String(),
	}, nil
}

// CreateMint creates a fresh NFT mint owned by the payer.
func (s *Solana) CreateMint(req *types.CreateMintRequest, privateKey string) (*types.CreateMintResponse, error) {
	log := s.log.WithField("method", "CreateMint")

	tx, resp, err := s.BuildCreateMintTransaction(req, privateKey)
	if err != nil {
		return nil, err
	}
	log = log.WithField("mint", resp.Mint)

	signature, err := s.sendTransaction(tx)
	if err != nil {
		log.WithError(err).Warn("failed to send create mint transaction")
		return nil, err
	}
	resp.TxHash = signature.String()

	if s.cfg.ConfirmTimeout > 0 {
		err = s.WatchTransaction(&types.WatchTransactionRequest{TxHash: resp.TxHash, Duration: s.cfg.ConfirmTimeout})
		if err != nil {
			log.WithError(err).WithField("signature", resp.TxHash).Warn("create mint transaction not confirmed")
			return resp, err
		}
	}

	log.WithFields(logrus.Fields{
		"signature": resp.TxHash,
	}).Info("created mint")
	return resp, nil
}
