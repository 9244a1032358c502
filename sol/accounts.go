package sol

import (
	"github.com/gagliardetto/solana-go"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/sol/metadata"
	"github.com/meme-bots/go-nft/types"
	"github.com/pkg/errors"
)

// MintNFTAccounts is the fixed account list of a MintNFT call. Every address
// is checked by Validate before any instruction is built.
type MintNFTAccounts struct {
	Mint          solana.PublicKey
	TokenAccount  solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
	Payer         solana.PublicKey

	Rent                   solana.PublicKey
	SystemProgram          solana.PublicKey
	TokenProgram           solana.PublicKey
	AssociatedTokenProgram solana.PublicKey
	TokenMetadataProgram   solana.PublicKey
}

// NewMintNFTAccounts derives the full account list for minting mint to payer.
func NewMintNFTAccounts(mint, payer solana.PublicKey) (*MintNFTAccounts, error) {
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive token account")
	}

	metadataAddr, err := metadata.FindMetadataAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive metadata account")
	}

	editionAddr, err := metadata.FindMasterEditionAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive master edition account")
	}

	return &MintNFTAccounts{
		Mint:                   mint,
		TokenAccount:           tokenAccount,
		Metadata:               metadataAddr,
		MasterEdition:          editionAddr,
		Payer:                  payer,
		Rent:                   common.SysVarRentPubkey,
		SystemProgram:          common.SystemProgramID,
		TokenProgram:           common.TokenProgramID,
		AssociatedTokenProgram: common.AssociatedTokenProgramID,
		TokenMetadataProgram:   common.TokenMetadataProgramID,
	}, nil
}

func (a *MintNFTAccounts) Validate() error {
	if a.Mint.IsZero() {
		return errors.Wrap(types.ErrInvalidAccount, "mint is required")
	}
	if a.Payer.IsZero() {
		return errors.Wrap(types.ErrInvalidAccount, "payer is required")
	}
	if a.Mint.Equals(a.Payer) {
		return errors.Wrap(types.ErrInvalidAccount, "mint and payer must differ")
	}

	expected, err := NewMintNFTAccounts(a.Mint, a.Payer)
	if err != nil {
		return err
	}

	checks := []struct {
		name     string
		actual   solana.PublicKey
		expected solana.PublicKey
	}{
		{"token account", a.TokenAccount, expected.TokenAccount},
		{"metadata", a.Metadata, expected.Metadata},
		{"master edition", a.MasterEdition, expected.MasterEdition},
		{"rent sysvar", a.Rent, expected.Rent},
		{"system program", a.SystemProgram, expected.SystemProgram},
		{"token program", a.TokenProgram, expected.TokenProgram},
		{"associated token program", a.AssociatedTokenProgram, expected.AssociatedTokenProgram},
		{"token metadata program", a.TokenMetadataProgram, expected.TokenMetadataProgram},
	}
	for _, check := range checks {
		if !check.actual.Equals(check.expected) {
			return errors.Wrapf(types.ErrInvalidAccount, "%s mismatch: got %s, expected %s", check.name, check.actual, check.expected)
		}
	}

	return nil
}

// mintNFTAccountsFromRequest derives the account list and applies any
// caller-supplied overrides, which must still pass Validate.
func mintNFTAccountsFromRequest(req *types.MintNFTRequest, payer solana.PublicKey) (*MintNFTAccounts, error) {
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid mint %q", req.Mint)
	}

	accounts, err := NewMintNFTAccounts(mint, payer)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		value string
		dst   *solana.PublicKey
	}{
		{req.TokenAccount, &accounts.TokenAccount},
		{req.Metadata, &accounts.Metadata},
		{req.MasterEdition, &accounts.MasterEdition},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(o.value)
		if err != nil {
			return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid address %q", o.value)
		}
		*o.dst = key
	}

	return accounts, accounts.Validate()
}
