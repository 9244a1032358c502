package sol

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/sol/metadata"
	"github.com/meme-bots/go-nft/types"
	"github.com/meme-bots/go-nft/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// MintAmount is the number of tokens minted to the payer.
const MintAmount uint64 = 1

type (
	MintNFTArgs struct {
		Name   string
		Symbol string
		Uri    string
	}

	BuildOptions struct {
		// Prepend an associated token account create instruction.
		CreateTokenAccount bool

		ComputeUnitLimit uint32
		PriorityFee      uint64

		MintBeforeEdition bool
	}
)

// NewCreateMetadataArgs returns the fixed metadata payload for a mint whose
// sole creator is payer.
func NewCreateMetadataArgs(args *MintNFTArgs, payer solana.PublicKey) *common.CreateMetadataAccountArgsV3 {
	creators := []common.Creator{
		{
			Address:  payer,
			Verified: true,
			Share:    types.CreatorShare,
		},
	}

	return &common.CreateMetadataAccountArgsV3{
		Data: common.DataV2{
			Name:                 args.Name,
			Symbol:               args.Symbol,
			Uri:                  args.Uri,
			SellerFeeBasisPoints: types.SellerFeeBasisPoints,
			Creators:             &creators,
			Collection:           nil,
			Uses:                 nil,
		},
		IsMutable:         true,
		CollectionDetails: nil,
	}
}

// ValidateCreators checks that a non-empty creator list shares exactly 100.
func ValidateCreators(creators []common.Creator) error {
	if len(creators) == 0 {
		return nil
	}

	var total int
	for _, creator := range creators {
		total += int(creator.Share)
	}
	if total != 100 {
		return errors.Wrapf(types.ErrInvalidCreatorShares, "creator shares total %d", total)
	}
	return nil
}

// BuildMintNFTInstructions returns the ordered instructions of a MintNFT
// transaction: compute budget, token account create, metadata, master
// edition, mint to.
func BuildMintNFTInstructions(
	accounts *MintNFTAccounts,
	args *MintNFTArgs,
	opts *BuildOptions,
) ([]solana.Instruction, error) {
	if err := accounts.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &BuildOptions{}
	}

	metadataArgs := NewCreateMetadataArgs(args, accounts.Payer)
	if err := ValidateCreators(*metadataArgs.Data.Creators); err != nil {
		return nil, err
	}

	instructions := make([]solana.Instruction, 0, 7)

	if opts.ComputeUnitLimit > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(opts.ComputeUnitLimit).Build())
	}
	if opts.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(opts.PriorityFee).Build())
	}

	if opts.CreateTokenAccount {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			accounts.Payer,
			accounts.Payer,
			accounts.Mint,
		).Build())
	}

	createMetadata, err := metadata.NewCreateMetadataAccountV3Instruction(
		&metadata.CreateMetadataAccountV3Accounts{
			Metadata:        accounts.Metadata,
			Mint:            accounts.Mint,
			MintAuthority:   accounts.Payer,
			Payer:           accounts.Payer,
			UpdateAuthority: accounts.Payer,
		},
		metadataArgs,
		true,
	)
	if err != nil {
		return nil, err
	}

	createEdition, err := metadata.NewCreateMasterEditionV3Instruction(
		&metadata.CreateMasterEditionV3Accounts{
			Edition:         accounts.MasterEdition,
			Mint:            accounts.Mint,
			UpdateAuthority: accounts.Payer,
			MintAuthority:   accounts.Payer,
			Payer:           accounts.Payer,
			Metadata:        accounts.Metadata,
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	mintTo := token.NewMintToInstruction(
		MintAmount,
		accounts.Mint,
		accounts.TokenAccount,
		accounts.Payer,
		nil,
	).Build()

	instructions = append(instructions, createMetadata)
	if opts.MintBeforeEdition {
		instructions = append(instructions, mintTo, createEdition)
	} else {
		instructions = append(instructions, createEdition, mintTo)
	}

	return instructions, nil
}

// mintNFTState is the on-chain state MintNFT depends on, read in one round
// trip.
type mintNFTState struct {
	payerLamports      uint64
	tokenAccountExists bool
}

func (s *Solana) fetchMintNFTState(accounts *MintNFTAccounts) (*mintNFTState, error) {
	ret, err := s.client.GetMultipleAccountsWithOpts(
		s.ctx,
		[]solana.PublicKey{accounts.Payer, accounts.Mint, accounts.TokenAccount, accounts.Metadata, accounts.MasterEdition},
		&rpc.GetMultipleAccountsOpts{Commitment: s.commitment()},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get accounts")
	}
	if len(ret.Value) != 5 {
		return nil, errors.Errorf("expected 5 accounts, got %d", len(ret.Value))
	}

	payerAccount, mintAccount, tokenAccount, metadataAccount, editionAccount := ret.Value[0], ret.Value[1], ret.Value[2], ret.Value[3], ret.Value[4]

	if mintAccount == nil {
		return nil, errors.Wrapf(types.ErrMintNotFound, "mint %s", accounts.Mint)
	}
	if !mintAccount.Owner.Equals(common.TokenProgramID) {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "mint %s is owned by %s", accounts.Mint, mintAccount.Owner)
	}

	var mint token.Mint
	err = mint.UnmarshalWithDecoder(bin.NewBorshDecoder(mintAccount.Data.GetBinary()))
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "mint %s: %s", accounts.Mint, err)
	}
	if !mint.IsInitialized {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "mint %s is not initialized", accounts.Mint)
	}
	if metadataAccount != nil {
		return nil, errors.Wrapf(types.ErrAccountAlreadyInitialized, "metadata %s", accounts.Metadata)
	}
	if editionAccount != nil {
		return nil, errors.Wrapf(types.ErrAccountAlreadyInitialized, "master edition %s", accounts.MasterEdition)
	}

	if mint.MintAuthority == nil || !mint.MintAuthority.Equals(accounts.Payer) {
		return nil, errors.Wrapf(types.ErrAuthorityMismatch, "payer %s is not the mint authority of %s", accounts.Payer, accounts.Mint)
	}

	if tokenAccount != nil {
		var account token.Account
		err = account.UnmarshalWithDecoder(bin.NewBorshDecoder(tokenAccount.Data.GetBinary()))
		if err != nil {
			return nil, errors.Wrapf(types.ErrInvalidAccount, "token account %s: %s", accounts.TokenAccount, err)
		}
		if !account.Owner.Equals(accounts.Payer) || !account.Mint.Equals(accounts.Mint) {
			return nil, errors.Wrapf(types.ErrAuthorityMismatch, "token account %s does not belong to payer", accounts.TokenAccount)
		}
	}

	return &mintNFTState{
		payerLamports:      lo.TernaryF(payerAccount == nil, func() uint64 { return 0 }, func() uint64 { return payerAccount.Lamports }),
		tokenAccountExists: tokenAccount != nil,
	}, nil
}

// mintNFTCost is the lamports the payer spends on rent and fees.
func (s *Solana) mintNFTCost(createTokenAccount bool) (uint64, error) {
	sizes := []uint64{common.MetadataSize, common.MasterEditionSize}
	if createTokenAccount {
		sizes = append(sizes, common.TokenAccountSize)
	}

	var total uint64
	for _, size := range sizes {
		rent, err := s.getRentExemption(size)
		if err != nil {
			return 0, err
		}
		total += rent
	}

	return total + s.transactionFee(1), nil
}

func (s *Solana) transactionFee(signatures uint64) uint64 {
	fee := signatures * common.BaseFee
	if s.cfg.PriorityFee > 0 {
		units := uint64(lo.Ternary(s.cfg.ComputeUnitLimit > 0, s.cfg.ComputeUnitLimit, defaultComputeUnitLimit))
		fee += (units*s.cfg.PriorityFee + 999_999) / 1_000_000
	}
	return fee
}

// defaultComputeUnitLimit applies when a priority fee is set without a limit.
const defaultComputeUnitLimit = 200_000

// BuildMintNFTTransaction validates req against chain state and returns the
// signed transaction without sending it.
func (s *Solana) BuildMintNFTTransaction(req *types.MintNFTRequest, privateKey string) (*solana.Transaction, *types.MintNFTResponse, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "BuildMintNFTTransaction",
		"mint":   req.Mint,
	})

	payer, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, nil, errors.Wrap(types.ErrMissingSignature, "invalid payer private key")
	}

	accounts, err := mintNFTAccountsFromRequest(req, payer.PublicKey())
	if err != nil {
		return nil, nil, err
	}
	log = log.WithField("payer", accounts.Payer.String())

	state, err := s.fetchMintNFTState(accounts)
	if err != nil {
		log.WithError(err).Debug("pre-flight check failed")
		return nil, nil, err
	}

	createTokenAccount := !state.tokenAccountExists
	cost, err := s.mintNFTCost(createTokenAccount)
	if err != nil {
		return nil, nil, err
	}
	if state.payerLamports < cost {
		return nil, nil, errors.Wrapf(
			types.ErrInsufficientFunds,
			"payer has %s, needs %s",
			utils.FormatLamports(state.payerLamports),
			utils.FormatLamports(cost),
		)
	}

	instructions, err := BuildMintNFTInstructions(
		accounts,
		&MintNFTArgs{Name: req.Name, Symbol: req.Symbol, Uri: req.Uri},
		&BuildOptions{
			CreateTokenAccount: createTokenAccount,
			ComputeUnitLimit:   s.cfg.ComputeUnitLimit,
			PriorityFee:        s.cfg.PriorityFee,
			MintBeforeEdition:  s.cfg.MintBeforeEdition,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.buildTransaction(instructions, payer)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"instructions":         len(instructions),
		"create_token_account": createTokenAccount,
		"cost":                 utils.FormatLamports(cost),
	}).Debug("built mint transaction")

	return tx, &types.MintNFTResponse{
		TxHash:              tx.Signatures[0].String(),
		Mint:                accounts.Mint.String(),
		TokenAccount:        accounts.TokenAccount.String(),
		Metadata:            accounts.Metadata.String(),
		MasterEdition:       accounts.MasterEdition.String(),
		TokenAccountCreated: createTokenAccount,
	}, nil
}

// MintNFT creates the metadata and master edition of req.Mint and mints one
// token to the payer in a single transaction. The payer signs everything and
// must be the mint authority.
func (s *Solana) MintNFT(req *types.MintNFTRequest, privateKey string) (*types.MintNFTResponse, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "MintNFT",
		"mint":   req.Mint,
	})

	tx, resp, err := s.BuildMintNFTTransaction(req, privateKey)
	if err != nil {
		return nil, err
	}

	signature, err := s.sendTransaction(tx)
	if err != nil {
		log.WithError(err).Warn("failed to send mint transaction")
		return nil, err
	}
	resp.TxHash = signature.String()

	if s.cfg.ConfirmTimeout > 0 {
		err = s.WatchTransaction(&types.WatchTransactionRequest{TxHash: resp.TxHash, Duration: s.cfg.ConfirmTimeout})
		if err != nil {
			log.WithError(err).WithField("signature", resp.TxHash).Warn("mint transaction not confirmed")
			return resp, err
		}
	}

	log.WithField("signature", resp.TxHash).Info("minted nft")
	return resp, nil
}
