package localnet

import (
	"math"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/sol/metadata"
	"github.com/pkg/errors"
)

// maxCreators is the creator list limit of the token metadata program.
const maxCreators = 5

type executor struct {
	state          map[solana.PublicKey]*Account
	strictEditions bool
}

// run executes every instruction of tx in order. On failure it returns the
// index of the failing instruction.
func (ex *executor) run(tx *solana.Transaction) (int, error) {
	for i, ci := range tx.Message.Instructions {
		programID, err := tx.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return i, err
		}
		metas, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return i, err
		}

		switch {
		case programID.Equals(common.ComputeBudgetProgramID):
		case programID.Equals(common.SystemProgramID):
			err = ex.system(metas, ci.Data)
		case programID.Equals(common.TokenProgramID):
			err = ex.token(metas, ci.Data)
		case programID.Equals(common.AssociatedTokenProgramID):
			err = ex.associatedToken(metas)
		case programID.Equals(common.TokenMetadataProgramID):
			err = ex.metadata(metas, ci.Data)
		default:
			err = errors.Errorf("Attempt to load a program that does not exist: %s", programID)
		}
		if err != nil {
			return i, err
		}
	}
	return 0, nil
}

func requireSigner(meta *solana.AccountMeta, role string) error {
	if !meta.IsSigner {
		return errors.Errorf("%s %s: missing required signature for instruction", role, meta.PublicKey)
	}
	return nil
}

func (ex *executor) debit(from solana.PublicKey, lamports uint64) error {
	account, ok := ex.state[from]
	if !ok || account.Lamports < lamports {
		var have uint64
		if ok {
			have = account.Lamports
		}
		return errors.Errorf("Transfer: insufficient lamports %d, need %d", have, lamports)
	}
	account.Lamports -= lamports
	return nil
}

// createAccount funds and allocates address the way the system program does.
func (ex *executor) createAccount(funding, address, owner solana.PublicKey, lamports, space uint64) error {
	if existing, ok := ex.state[address]; ok && (existing.Lamports > 0 || len(existing.Data) > 0) {
		return errors.Errorf("Allocate: account Address { address: %s, base: None } already in use", address)
	}
	if err := ex.debit(funding, lamports); err != nil {
		return err
	}
	ex.state[address] = &Account{
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	}
	return nil
}

func (ex *executor) system(metas []*solana.AccountMeta, data []byte) error {
	inst, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return errors.Wrap(err, "invalid instruction data")
	}

	switch impl := inst.Impl.(type) {
	case *system.CreateAccount:
		funding, newAccount := impl.GetFundingAccount(), impl.GetNewAccount()
		if err := requireSigner(funding, "funding account"); err != nil {
			return err
		}
		if err := requireSigner(newAccount, "new account"); err != nil {
			return err
		}
		return ex.createAccount(funding.PublicKey, newAccount.PublicKey, *impl.Owner, *impl.Lamports, *impl.Space)
	default:
		return errors.Errorf("unsupported system instruction %d", inst.TypeID.Uint32())
	}
}

func (ex *executor) mint(address solana.PublicKey) (*token.Mint, error) {
	account, ok := ex.state[address]
	if !ok || !account.Owner.Equals(common.TokenProgramID) || len(account.Data) != common.MintSize {
		return nil, errors.Errorf("invalid account data for instruction: mint %s", address)
	}
	mint, err := decodeMint(account.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, errors.Errorf("UninitializedState: mint %s", address)
	}
	return mint, nil
}

func (ex *executor) putMint(address solana.PublicKey, mint *token.Mint) error {
	data, err := encodeMint(*mint)
	if err != nil {
		return err
	}
	ex.state[address].Data = data
	return nil
}

func (ex *executor) token(metas []*solana.AccountMeta, data []byte) error {
	inst, err := token.DecodeInstruction(metas, data)
	if err != nil {
		return errors.Wrap(err, "invalid instruction data")
	}

	switch impl := inst.Impl.(type) {
	case *token.InitializeMint2:
		address := impl.GetMintAccount().PublicKey
		account, ok := ex.state[address]
		if !ok || !account.Owner.Equals(common.TokenProgramID) || len(account.Data) != common.MintSize {
			return errors.Errorf("invalid account data for instruction: mint %s", address)
		}
		if current, err := decodeMint(account.Data); err == nil && current.IsInitialized {
			return errors.New("Error: account or token already in use")
		}
		if account.Lamports < common.RentExempt(common.MintSize) {
			return errors.New("Error: Lamport balance below rent-exempt threshold")
		}
		return ex.putMint(address, &token.Mint{
			MintAuthority:   impl.MintAuthority,
			Decimals:        *impl.Decimals,
			IsInitialized:   true,
			FreezeAuthority: impl.FreezeAuthority,
		})

	case *token.MintTo:
		mintAddr := impl.GetMintAccount().PublicKey
		mint, err := ex.mint(mintAddr)
		if err != nil {
			return err
		}

		authority := impl.GetAuthorityAccount()
		if mint.MintAuthority == nil || !mint.MintAuthority.Equals(authority.PublicKey) {
			return errors.New("Error: owner does not match")
		}
		if err := requireSigner(authority, "mint authority"); err != nil {
			return err
		}

		destAddr := impl.GetDestinationAccount().PublicKey
		dest, ok := ex.state[destAddr]
		if !ok || !dest.Owner.Equals(common.TokenProgramID) {
			return errors.Errorf("invalid account data for instruction: destination %s does not exist", destAddr)
		}
		account, err := decodeTokenAccount(dest.Data)
		if err != nil {
			return err
		}
		if !account.Mint.Equals(mintAddr) {
			return errors.New("Error: Account not associated with this Mint")
		}

		amount := *impl.Amount
		if mint.Supply > math.MaxUint64-amount || account.Amount > math.MaxUint64-amount {
			return errors.New("Error: Operation overflowed")
		}
		mint.Supply += amount
		account.Amount += amount

		if err := ex.putMint(mintAddr, mint); err != nil {
			return err
		}
		dest.Data, err = encodeTokenAccount(*account)
		return err

	default:
		return errors.Errorf("unsupported token instruction %d", inst.TypeID.Uint8())
	}
}

// associatedToken handles Create: payer, account, wallet, mint, system
// program, token program, rent.
func (ex *executor) associatedToken(metas []*solana.AccountMeta) error {
	if len(metas) < 6 {
		return errors.New("NotEnoughAccountKeys")
	}
	payer, ata, wallet, mintMeta := metas[0], metas[1], metas[2], metas[3]

	if err := requireSigner(payer, "payer"); err != nil {
		return err
	}

	expected, _, err := solana.FindAssociatedTokenAddress(wallet.PublicKey, mintMeta.PublicKey)
	if err != nil {
		return err
	}
	if !expected.Equals(ata.PublicKey) {
		return errors.New("Associated address does not match seed derivation")
	}

	if _, err := ex.mint(mintMeta.PublicKey); err != nil {
		return err
	}

	err = ex.createAccount(payer.PublicKey, ata.PublicKey, common.TokenProgramID, common.RentExempt(common.TokenAccountSize), common.TokenAccountSize)
	if err != nil {
		return err
	}

	ex.state[ata.PublicKey].Data, err = encodeTokenAccount(token.Account{
		Mint:  mintMeta.PublicKey,
		Owner: wallet.PublicKey,
		State: token.Initialized,
	})
	return err
}

func (ex *executor) metadata(metas []*solana.AccountMeta, data []byte) error {
	inst, err := metadata.DecodeInstruction(metas, data)
	if err != nil {
		return err
	}

	switch {
	case inst.CreateMetadataAccountV3 != nil:
		return ex.createMetadata(inst.Accounts, inst.CreateMetadataAccountV3)
	case inst.CreateMasterEditionV3 != nil:
		return ex.createMasterEdition(inst.Accounts, inst.CreateMasterEditionV3)
	default:
		return errors.New("unsupported token metadata instruction")
	}
}

// puffOut pads s with NUL bytes to size, as the metadata program stores
// strings.
func puffOut(s string, size int) string {
	if len(s) >= size {
		return s
	}
	return s + strings.Repeat("\x00", size-len(s))
}

func validateData(data *common.DataV2, signers map[solana.PublicKey]bool) error {
	if len(data.Name) > common.MaxNameLength {
		return errors.New("Name too long")
	}
	if len(data.Symbol) > common.MaxSymbolLength {
		return errors.New("Symbol too long")
	}
	if len(data.Uri) > common.MaxUriLength {
		return errors.New("URI too long")
	}
	if data.SellerFeeBasisPoints > 10000 {
		return errors.New("Basis points cannot be more than 10000")
	}

	if data.Creators == nil {
		return nil
	}
	creators := *data.Creators
	if len(creators) == 0 {
		return errors.New("Creators must be at least one if set")
	}
	if len(creators) > maxCreators {
		return errors.New("Creators list too long")
	}

	var total int
	seen := make(map[solana.PublicKey]bool, len(creators))
	for _, creator := range creators {
		if seen[creator.Address] {
			return errors.New("No duplicate creator addresses")
		}
		seen[creator.Address] = true
		if creator.Verified && !signers[creator.Address] {
			return errors.New("Cannot unilaterally verify another creator, they must sign")
		}
		total += int(creator.Share)
	}
	if total != 100 {
		return errors.New("Share total must equal 100 for creator array")
	}
	return nil
}

// createMetadata accounts: metadata, mint, mint authority, payer, update
// authority, system program, rent.
func (ex *executor) createMetadata(metas []*solana.AccountMeta, args *common.CreateMetadataAccountArgsV3) error {
	metadataMeta, mintMeta, mintAuthority, payer, updateAuthority := metas[0], metas[1], metas[2], metas[3], metas[4]

	expected, err := metadata.FindMetadataAddress(mintMeta.PublicKey)
	if err != nil {
		return err
	}
	if !expected.Equals(metadataMeta.PublicKey) {
		return errors.New("Derived key invalid")
	}

	mint, err := ex.mint(mintMeta.PublicKey)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil || !mint.MintAuthority.Equals(mintAuthority.PublicKey) {
		return errors.New("Mint authority provided does not match the authority on the mint")
	}
	if err := requireSigner(mintAuthority, "mint authority"); err != nil {
		return err
	}
	if err := requireSigner(payer, "payer"); err != nil {
		return err
	}

	signers := make(map[solana.PublicKey]bool)
	for _, meta := range metas {
		if meta.IsSigner {
			signers[meta.PublicKey] = true
		}
	}
	if err := validateData(&args.Data, signers); err != nil {
		return err
	}

	err = ex.createAccount(payer.PublicKey, metadataMeta.PublicKey, common.TokenMetadataProgramID, common.RentExempt(common.MetadataSize), common.MetadataSize)
	if err != nil {
		return err
	}

	tokenStandard := common.TokenStandardFungible
	if mint.Decimals == 0 {
		tokenStandard = common.TokenStandardFungibleAsset
	}

	record := common.Metadata{
		Key:             common.KeyMetadataV1,
		UpdateAuthority: updateAuthority.PublicKey,
		Mint:            mintMeta.PublicKey,
		Data: common.Data{
			Name:                 puffOut(args.Data.Name, common.MaxNameLength),
			Symbol:               puffOut(args.Data.Symbol, common.MaxSymbolLength),
			Uri:                  puffOut(args.Data.Uri, common.MaxUriLength),
			SellerFeeBasisPoints: args.Data.SellerFeeBasisPoints,
			Creators:             args.Data.Creators,
		},
		IsMutable:         args.IsMutable,
		TokenStandard:     &tokenStandard,
		Collection:        args.Data.Collection,
		Uses:              args.Data.Uses,
		CollectionDetails: args.CollectionDetails,
	}

	ex.state[metadataMeta.PublicKey].Data, err = common.MetadataSerialize(record)
	return err
}

// createMasterEdition accounts: edition, mint, update authority, mint
// authority, payer, metadata, token program, system program, rent.
func (ex *executor) createMasterEdition(metas []*solana.AccountMeta, args *common.CreateMasterEditionArgs) error {
	editionMeta, mintMeta, updateAuthority, mintAuthority, payer, metadataMeta := metas[0], metas[1], metas[2], metas[3], metas[4], metas[5]

	expected, err := metadata.FindMasterEditionAddress(mintMeta.PublicKey)
	if err != nil {
		return err
	}
	if !expected.Equals(editionMeta.PublicKey) {
		return errors.New("Derived key invalid")
	}

	metadataAccount, ok := ex.state[metadataMeta.PublicKey]
	if !ok || !metadataAccount.Owner.Equals(common.TokenMetadataProgramID) {
		return errors.New("Uninitialized")
	}
	record, err := common.MetadataDeserialize(metadataAccount.Data)
	if err != nil {
		return err
	}
	if !record.Mint.Equals(mintMeta.PublicKey) {
		return errors.New("Mint given does not match mint on Metadata")
	}
	if !record.UpdateAuthority.Equals(updateAuthority.PublicKey) {
		return errors.New("Update Authority given does not match")
	}
	if err := requireSigner(updateAuthority, "update authority"); err != nil {
		return err
	}

	mint, err := ex.mint(mintMeta.PublicKey)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil || !mint.MintAuthority.Equals(mintAuthority.PublicKey) {
		return errors.New("Mint authority provided does not match the authority on the mint")
	}
	if err := requireSigner(mintAuthority, "mint authority"); err != nil {
		return err
	}
	if err := requireSigner(payer, "payer"); err != nil {
		return err
	}
	if mint.Decimals != 0 {
		return errors.New("Editions must have exactly one token")
	}
	if ex.strictEditions && mint.Supply != 1 {
		return errors.New("Editions must have exactly one token")
	}

	err = ex.createAccount(payer.PublicKey, editionMeta.PublicKey, common.TokenMetadataProgramID, common.RentExempt(common.MasterEditionSize), common.MasterEditionSize)
	if err != nil {
		return err
	}

	ex.state[editionMeta.PublicKey].Data, err = common.MasterEditionSerialize(common.MasterEditionV2{
		Key:       common.KeyMasterEditionV2,
		Supply:    0,
		MaxSupply: args.MaxSupply,
	})
	if err != nil {
		return err
	}

	nonFungible := common.TokenStandardNonFungible
	record.TokenStandard = &nonFungible
	metadataAccount.Data, err = common.MetadataSerialize(record)
	if err != nil {
		return err
	}

	if ex.strictEditions {
		edition := editionMeta.PublicKey
		mint.MintAuthority = &edition
		mint.FreezeAuthority = &edition
		return ex.putMint(mintMeta.PublicKey, mint)
	}
	return nil
}
