package sol

import (
	"bytes"
	"context"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/sol/localnet"
	"github.com/meme-bots/go-nft/sol/metadata"
	"github.com/meme-bots/go-nft/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTokenAccountForTest(account token.Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := account.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exampleRequest(mint solana.PublicKey) *types.MintNFTRequest {
	return &types.MintNFTRequest{
		Name:   "Farcaster Frame #1",
		Symbol: "FCPRO",
		Uri:    "https://example.com/1.json",
		Mint:   mint.String(),
	}
}

func TestMintNFT_Example(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	resp, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)
	assert.True(t, resp.TokenAccountCreated)
	assert.NotEmpty(t, resp.TxHash)

	accounts, err := NewMintNFTAccounts(mint, env.payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, accounts.TokenAccount.String(), resp.TokenAccount)
	assert.Equal(t, accounts.Metadata.String(), resp.Metadata)
	assert.Equal(t, accounts.MasterEdition.String(), resp.MasterEdition)

	nft, err := env.minter.GetNFT(&types.GetNFTRequest{Mint: mint.String(), Owner: env.payer.PublicKey().String()})
	require.NoError(t, err)

	assert.Equal(t, "Farcaster Frame #1", nft.Name)
	assert.Equal(t, "FCPRO", nft.Symbol)
	assert.Equal(t, "https://example.com/1.json", nft.Uri)
	assert.Equal(t, uint16(500), nft.SellerFeeBasisPoints)
	assert.Equal(t, []types.Creator{
		{Address: env.payer.PublicKey().String(), Verified: true, Share: 100},
	}, nft.Creators)
	assert.Equal(t, env.payer.PublicKey().String(), nft.UpdateAuthority)
	assert.True(t, nft.IsMutable)
	assert.False(t, nft.PrimarySaleHappened)
	assert.False(t, nft.HasCollection)
	assert.False(t, nft.HasUses)

	assert.Equal(t, resp.MasterEdition, nft.MasterEdition)
	assert.Nil(t, nft.MaxSupply)
	assert.Equal(t, uint64(0), nft.EditionSupply)

	assert.Equal(t, uint64(1), nft.Supply)
	assert.Equal(t, uint8(0), nft.Decimals)
	assert.Equal(t, int64(1), nft.Balance.Int64())
}

func TestMintNFT_PreservesSurroundingSpaces(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	req := &types.MintNFTRequest{
		Name:   " Frame #1 ",
		Symbol: " FC ",
		Uri:    "https://example.com/1.json ",
		Mint:   mint.String(),
	}
	_, err := env.minter.MintNFT(req, env.payer.String())
	require.NoError(t, err)

	nft, err := env.minter.GetNFT(&types.GetNFTRequest{Mint: mint.String()})
	require.NoError(t, err)
	assert.Equal(t, req.Name, nft.Name)
	assert.Equal(t, req.Symbol, nft.Symbol)
	assert.Equal(t, req.Uri, nft.Uri)
}

func TestMintNFT_MetadataRecordLayout(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	resp, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)

	account := env.ledger.Account(solana.MustPublicKeyFromBase58(resp.Metadata))
	require.NotNil(t, account)
	assert.Equal(t, common.TokenMetadataProgramID, account.Owner)
	assert.Len(t, account.Data, common.MetadataSize)

	record, err := common.MetadataDeserialize(account.Data)
	require.NoError(t, err)
	assert.Equal(t, common.KeyMetadataV1, record.Key)
	assert.Equal(t, mint, record.Mint)
	assert.Nil(t, record.Collection)
	assert.Nil(t, record.Uses)
	assert.Nil(t, record.CollectionDetails)
	require.NotNil(t, record.TokenStandard)
	assert.Equal(t, common.TokenStandardNonFungible, *record.TokenStandard)

	edition := env.ledger.Account(solana.MustPublicKeyFromBase58(resp.MasterEdition))
	require.NotNil(t, edition)
	decoded, err := common.MasterEditionDeserialize(edition.Data)
	require.NoError(t, err)
	assert.Equal(t, common.KeyMasterEditionV2, decoded.Key)
	assert.Nil(t, decoded.MaxSupply)
}

func TestMintNFT_ChargesRentAndFees(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)
	before := env.ledger.Account(env.payer.PublicKey()).Lamports

	_, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)

	cost := common.RentExempt(common.MetadataSize) +
		common.RentExempt(common.MasterEditionSize) +
		common.RentExempt(common.TokenAccountSize) +
		common.BaseFee
	assert.Equal(t, before-cost, env.ledger.Account(env.payer.PublicKey()).Lamports)
}

func TestMintNFT_SecondCallFails(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	_, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)
	before := env.ledger.Snapshot()

	_, err = env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	assert.ErrorIs(t, err, types.ErrAccountAlreadyInitialized)
	assert.Equal(t, before, env.ledger.Snapshot())

	balance, err := env.minter.GetTokenBalance(&types.GetTokenBalanceRequest{
		Owner: env.payer.PublicKey().String(),
		Token: mint.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance.Int64())
}

func TestMintNFT_ExistingTokenAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	ata, _, err := solana.FindAssociatedTokenAddress(env.payer.PublicKey(), mint)
	require.NoError(t, err)
	setTokenAccount(t, env.ledger, ata, token.Account{
		Mint:  mint,
		Owner: env.payer.PublicKey(),
		State: token.Initialized,
	})

	resp, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)
	assert.False(t, resp.TokenAccountCreated)

	account, err := env.ledger.TokenAccount(ata)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), account.Amount)
}

func TestMintNFT_ForeignTokenAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	ata, _, err := solana.FindAssociatedTokenAddress(env.payer.PublicKey(), mint)
	require.NoError(t, err)
	setTokenAccount(t, env.ledger, ata, token.Account{
		Mint:  mint,
		Owner: solana.NewWallet().PublicKey(),
		State: token.Initialized,
	})

	_, err = env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	assert.ErrorIs(t, err, types.ErrAuthorityMismatch)
}

func TestMintNFT_AuthorityMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	other := solana.NewWallet().PrivateKey
	env.ledger.Airdrop(other.PublicKey(), 10*solana.LAMPORTS_PER_SOL)
	before := env.ledger.Snapshot()

	_, err := env.minter.MintNFT(exampleRequest(mint), other.String())
	assert.ErrorIs(t, err, types.ErrAuthorityMismatch)
	assert.Equal(t, before, env.ledger.Snapshot())
}

func TestMintNFT_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t, nil)

	poor := solana.NewWallet().PrivateKey
	env.ledger.Airdrop(poor.PublicKey(), common.RentExempt(common.MetadataSize))
	mint := solana.NewWallet().PublicKey()
	authority := poor.PublicKey()
	require.NoError(t, env.ledger.SetMint(mint, token.Mint{
		MintAuthority: &authority,
		IsInitialized: true,
	}))
	before := env.ledger.Snapshot()

	_, err := env.minter.MintNFT(exampleRequest(mint), poor.String())
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Equal(t, before, env.ledger.Snapshot())
}

func TestMintNFT_MintNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.minter.MintNFT(exampleRequest(solana.NewWallet().PublicKey()), env.payer.String())
	assert.ErrorIs(t, err, types.ErrMintNotFound)
}

func TestMintNFT_MintNotOwnedByTokenProgram(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := solana.NewWallet().PublicKey()
	env.ledger.Airdrop(mint, solana.LAMPORTS_PER_SOL)

	_, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	assert.ErrorIs(t, err, types.ErrInvalidAccount)
}

func TestMintNFT_InvalidAccountOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	req := exampleRequest(mint)
	req.Metadata = solana.NewWallet().PublicKey().String()
	_, err := env.minter.MintNFT(req, env.payer.String())
	assert.ErrorIs(t, err, types.ErrInvalidAccount)

	req = exampleRequest(mint)
	req.Mint = "invalid"
	_, err = env.minter.MintNFT(req, env.payer.String())
	assert.ErrorIs(t, err, types.ErrInvalidAccount)
}

func TestMintNFT_InvalidPrivateKey(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	_, err := env.minter.MintNFT(exampleRequest(mint), "invalid")
	assert.ErrorIs(t, err, types.ErrMissingSignature)
}

func TestMintNFT_MissingSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	tx, _, err := env.minter.BuildMintNFTTransaction(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)
	tx.Signatures[0] = solana.Signature{}
	before := env.ledger.Snapshot()

	_, err = env.minter.sendTransaction(tx)
	assert.ErrorIs(t, err, types.ErrMissingSignature)
	assert.Equal(t, before, env.ledger.Snapshot())
}

func TestMintNFT_LedgerRejectionIsAtomic(t *testing.T) {
	env := newTestEnv(t, nil)
	mint := env.createMint(t)

	tx, resp, err := env.minter.BuildMintNFTTransaction(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)
	require.True(t, resp.TokenAccountCreated)

	// The edition appears between the pre-flight read and execution.
	env.ledger.SetAccount(solana.MustPublicKeyFromBase58(resp.MasterEdition), &localnet.Account{
		Lamports: common.RentExempt(common.MasterEditionSize),
		Owner:    common.TokenMetadataProgramID,
		Data:     make([]byte, common.MasterEditionSize),
	})
	before := env.ledger.Snapshot()

	_, err = env.minter.sendTransaction(tx)
	assert.ErrorIs(t, err, types.ErrAccountAlreadyInitialized)
	assert.Equal(t, before, env.ledger.Snapshot())
	assert.Nil(t, env.ledger.Account(solana.MustPublicKeyFromBase58(resp.TokenAccount)))
	assert.Nil(t, env.ledger.Account(solana.MustPublicKeyFromBase58(resp.Metadata)))
}

func TestMintNFT_StrictEditions(t *testing.T) {
	env := newTestEnv(t, nil, localnet.WithStrictEditions())
	mint := env.createMint(t)
	before := env.ledger.Snapshot()

	_, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Editions must have exactly one token")
	assert.Equal(t, before, env.ledger.Snapshot())

	env.minter.cfg.MintBeforeEdition = true
	resp, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)

	decoded, err := env.ledger.Mint(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), decoded.Supply)
	assert.Equal(t, resp.MasterEdition, decoded.MintAuthority.String())
}

func TestMintNFT_ConfirmReportsInstructionFailure(t *testing.T) {
	env := newTestEnv(t, &types.Config{
		SkipPreflight:  true,
		ConfirmTimeout: time.Second,
	}, localnet.WithStrictEditions())
	mint := env.createMint(t)

	resp, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	assert.ErrorIs(t, err, types.ErrInstructionFailed)
	require.NotNil(t, resp)
	statuses, err := env.ledger.GetSignatureStatuses(context.Background(), true, solana.MustSignatureFromBase58(resp.TxHash))
	require.NoError(t, err)
	require.NotNil(t, statuses.Value[0])
	assert.NotNil(t, statuses.Value[0].Err)

	nft, err := env.minter.GetNFT(&types.GetNFTRequest{Mint: mint.String()})
	assert.Nil(t, nft)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMintNFT_PriorityFee(t *testing.T) {
	env := newTestEnv(t, &types.Config{
		ComputeUnitLimit: 300_000,
		PriorityFee:      10_000,
	})
	mint := env.createMint(t)
	before := env.ledger.Account(env.payer.PublicKey()).Lamports

	_, err := env.minter.MintNFT(exampleRequest(mint), env.payer.String())
	require.NoError(t, err)

	cost := common.RentExempt(common.MetadataSize) +
		common.RentExempt(common.MasterEditionSize) +
		common.RentExempt(common.TokenAccountSize) +
		common.BaseFee + 3_000
	assert.Equal(t, before-cost, env.ledger.Account(env.payer.PublicKey()).Lamports)
}

func TestBuildMintNFTInstructions(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	accounts, err := NewMintNFTAccounts(mint, payer)
	require.NoError(t, err)

	args := &MintNFTArgs{Name: "Farcaster Frame #1", Symbol: "FCPRO", Uri: "https://example.com/1.json"}

	instructions, err := BuildMintNFTInstructions(accounts, args, &BuildOptions{CreateTokenAccount: true})
	require.NoError(t, err)
	require.Len(t, instructions, 4)

	assert.Equal(t, common.AssociatedTokenProgramID, instructions[0].ProgramID())
	assert.Equal(t, common.TokenMetadataProgramID, instructions[1].ProgramID())
	assert.Equal(t, common.TokenMetadataProgramID, instructions[2].ProgramID())
	assert.Equal(t, common.TokenProgramID, instructions[3].ProgramID())

	ataAccounts := instructions[0].Accounts()
	assert.Equal(t, payer, ataAccounts[0].PublicKey)
	assert.Equal(t, accounts.TokenAccount, ataAccounts[1].PublicKey)
	assert.Equal(t, payer, ataAccounts[2].PublicKey)
	assert.Equal(t, mint, ataAccounts[3].PublicKey)

	data, err := instructions[1].Data()
	require.NoError(t, err)
	decoded, err := metadata.DecodeInstruction(instructions[1].Accounts(), data)
	require.NoError(t, err)
	require.NotNil(t, decoded.CreateMetadataAccountV3)
	metadataArgs := decoded.CreateMetadataAccountV3
	assert.Equal(t, args.Name, metadataArgs.Data.Name)
	assert.Equal(t, args.Symbol, metadataArgs.Data.Symbol)
	assert.Equal(t, args.Uri, metadataArgs.Data.Uri)
	assert.Equal(t, types.SellerFeeBasisPoints, metadataArgs.Data.SellerFeeBasisPoints)
	require.NotNil(t, metadataArgs.Data.Creators)
	assert.Equal(t, []common.Creator{{Address: payer, Verified: true, Share: 100}}, *metadataArgs.Data.Creators)
	assert.Nil(t, metadataArgs.Data.Collection)
	assert.Nil(t, metadataArgs.Data.Uses)
	assert.True(t, metadataArgs.IsMutable)
	assert.Nil(t, metadataArgs.CollectionDetails)
	assert.True(t, decoded.Accounts[4].IsSigner)

	data, err = instructions[2].Data()
	require.NoError(t, err)
	decoded, err = metadata.DecodeInstruction(instructions[2].Accounts(), data)
	require.NoError(t, err)
	require.NotNil(t, decoded.CreateMasterEditionV3)
	assert.Nil(t, decoded.CreateMasterEditionV3.MaxSupply)

	data, err = instructions[3].Data()
	require.NoError(t, err)
	mintTo, err := token.DecodeInstruction(instructions[3].Accounts(), data)
	require.NoError(t, err)
	impl, ok := mintTo.Impl.(*token.MintTo)
	require.True(t, ok)
	assert.Equal(t, uint64(1), *impl.Amount)
	assert.Equal(t, mint, impl.GetMintAccount().PublicKey)
	assert.Equal(t, accounts.TokenAccount, impl.GetDestinationAccount().PublicKey)
	assert.Equal(t, payer, impl.GetAuthorityAccount().PublicKey)
	assert.True(t, impl.GetAuthorityAccount().IsSigner)
}

func TestBuildMintNFTInstructions_Options(t *testing.T) {
	accounts, err := NewMintNFTAccounts(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	args := &MintNFTArgs{Name: "n", Symbol: "s", Uri: "u"}

	instructions, err := BuildMintNFTInstructions(accounts, args, nil)
	require.NoError(t, err)
	require.Len(t, instructions, 3)
	for _, inst := range instructions {
		assert.NotEqual(t, associatedtokenaccount.ProgramID, inst.ProgramID())
	}

	instructions, err = BuildMintNFTInstructions(accounts, args, &BuildOptions{
		ComputeUnitLimit:  400_000,
		PriorityFee:       1,
		MintBeforeEdition: true,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 5)
	assert.Equal(t, common.ComputeBudgetProgramID, instructions[0].ProgramID())
	assert.Equal(t, common.ComputeBudgetProgramID, instructions[1].ProgramID())
	assert.Equal(t, common.TokenMetadataProgramID, instructions[2].ProgramID())
	assert.Equal(t, common.TokenProgramID, instructions[3].ProgramID())
	assert.Equal(t, common.TokenMetadataProgramID, instructions[4].ProgramID())

	accounts.Metadata = accounts.MasterEdition
	_, err = BuildMintNFTInstructions(accounts, args, nil)
	assert.ErrorIs(t, err, types.ErrInvalidAccount)
}

func TestValidateCreators(t *testing.T) {
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	assert.NoError(t, ValidateCreators(nil))
	assert.NoError(t, ValidateCreators([]common.Creator{{Address: a, Share: 100}}))
	assert.NoError(t, ValidateCreators([]common.Creator{{Address: a, Share: 60}, {Address: b, Share: 40}}))
	assert.ErrorIs(t, ValidateCreators([]common.Creator{{Address: a, Share: 99}}), types.ErrInvalidCreatorShares)
	assert.ErrorIs(t, ValidateCreators([]common.Creator{{Address: a, Share: 100}, {Address: b, Share: 100}}), types.ErrInvalidCreatorShares)
}
