package metadata

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/treeout"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	InstructionCreateMasterEditionV3    uint8 = 17
	InstructionCreateMetadataAccountV3  uint8 = 33
	createMetadataAccountV3AccountsSize       = 7
	createMasterEditionV3AccountsSize         = 9
)

var (
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

func init() {
	solana.RegisterInstructionDecoder(common.TokenMetadataProgramID, registryDecodeInstruction)
}

type CreateMetadataAccountV3Accounts struct {
	Metadata        solana.PublicKey
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
}

type CreateMasterEditionV3Accounts struct {
	Edition         solana.PublicKey
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	Metadata        solana.PublicKey
}

func NewCreateMetadataAccountV3Instruction(
	accounts *CreateMetadataAccountV3Accounts,
	args *common.CreateMetadataAccountArgsV3,
	updateAuthorityIsSigner bool,
) (solana.Instruction, error) {
	payload, err := borsh.Serialize(*args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize create metadata args")
	}

	data := append([]byte{InstructionCreateMetadataAccountV3}, payload...)

	return solana.NewInstruction(
		common.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Metadata, true, false),
			solana.NewAccountMeta(accounts.Mint, false, false),
			solana.NewAccountMeta(accounts.MintAuthority, false, true),
			solana.NewAccountMeta(accounts.Payer, true, true),
			solana.NewAccountMeta(accounts.UpdateAuthority, false, updateAuthorityIsSigner),
			solana.NewAccountMeta(common.SystemProgramID, false, false),
			solana.NewAccountMeta(common.SysVarRentPubkey, false, false),
		},
		data,
	), nil
}

func NewCreateMasterEditionV3Instruction(
	accounts *CreateMasterEditionV3Accounts,
	maxSupply *uint64,
) (solana.Instruction, error) {
	payload, err := borsh.Serialize(common.CreateMasterEditionArgs{MaxSupply: maxSupply})
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize create master edition args")
	}

	data := append([]byte{InstructionCreateMasterEditionV3}, payload...)

	return solana.NewInstruction(
		common.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Edition, true, false),
			solana.NewAccountMeta(accounts.Mint, true, false),
			solana.NewAccountMeta(accounts.UpdateAuthority, false, true),
			solana.NewAccountMeta(accounts.MintAuthority, false, true),
			solana.NewAccountMeta(accounts.Payer, true, true),
			solana.NewAccountMeta(accounts.Metadata, true, false),
			solana.NewAccountMeta(common.TokenProgramID, false, false),
			solana.NewAccountMeta(common.SystemProgramID, false, false),
			solana.NewAccountMeta(common.SysVarRentPubkey, false, false),
		},
		data,
	), nil
}

// Instruction is a decoded token metadata instruction. Exactly one of the
// argument fields is set.
type Instruction struct {
	TypeID   uint8
	Accounts []*solana.AccountMeta

	CreateMetadataAccountV3 *common.CreateMetadataAccountArgsV3
	CreateMasterEditionV3   *common.CreateMasterEditionArgs
}

func registryDecodeInstruction(accounts []*solana.AccountMeta, data []byte) (interface{}, error) {
	inst, err := DecodeInstruction(accounts, data)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func DecodeInstruction(accounts []*solana.AccountMeta, data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidInstructionData, "missing discriminator")
	}

	inst := &Instruction{TypeID: data[0], Accounts: accounts}
	decoder := bin.NewBorshDecoder(data[1:])

	switch inst.TypeID {
	case InstructionCreateMetadataAccountV3:
		if len(accounts) < createMetadataAccountV3AccountsSize-1 {
			return nil, errors.Wrapf(ErrInvalidInstructionData, "invalid number of accounts: %d", len(accounts))
		}
		var args common.CreateMetadataAccountArgsV3
		if err := decoder.Decode(&args); err != nil {
			return nil, errors.Wrap(err, "failed to decode create metadata args")
		}
		inst.CreateMetadataAccountV3 = &args
	case InstructionCreateMasterEditionV3:
		if len(accounts) < createMasterEditionV3AccountsSize-1 {
			return nil, errors.Wrapf(ErrInvalidInstructionData, "invalid number of accounts: %d", len(accounts))
		}
		var args common.CreateMasterEditionArgs
		if err := decoder.Decode(&args); err != nil {
			return nil, errors.Wrap(err, "failed to decode create master edition args")
		}
		inst.CreateMasterEditionV3 = &args
	default:
		return nil, errors.Wrapf(ErrInvalidInstructionData, "unsupported instruction %d", inst.TypeID)
	}

	return inst, nil
}

func (inst *Instruction) Name() string {
	switch inst.TypeID {
	case InstructionCreateMetadataAccountV3:
		return "CreateMetadataAccountV3"
	case InstructionCreateMasterEditionV3:
		return "CreateMasterEditionV3"
	}
	return "Unknown"
}

func (inst *Instruction) accountNames() []string {
	switch inst.TypeID {
	case InstructionCreateMetadataAccountV3:
		return []string{"metadata", "mint", "mintAuthority", "payer", "updateAuthority", "systemProgram", "rent"}
	case InstructionCreateMasterEditionV3:
		return []string{"edition", "mint", "updateAuthority", "mintAuthority", "payer", "metadata", "tokenProgram", "systemProgram", "rent"}
	}
	return nil
}

func (inst *Instruction) EncodeToTree(parent treeout.Branches) {
	parent.Child("Program: TokenMetadata " + common.TokenMetadataProgramID.String()).
		ParentFunc(func(programBranch treeout.Branches) {
			programBranch.Child("Instruction: " + inst.Name()).
				ParentFunc(func(instructionBranch treeout.Branches) {
					instructionBranch.Child("Params").ParentFunc(func(paramsBranch treeout.Branches) {
						if args := inst.CreateMetadataAccountV3; args != nil {
							paramsBranch.Child(fmt.Sprintf("Name: %q", args.Data.Name))
							paramsBranch.Child(fmt.Sprintf("Symbol: %q", args.Data.Symbol))
							paramsBranch.Child(fmt.Sprintf("Uri: %q", args.Data.Uri))
							paramsBranch.Child(fmt.Sprintf("SellerFeeBasisPoints: %d", args.Data.SellerFeeBasisPoints))
							if args.Data.Creators != nil {
								for i, c := range *args.Data.Creators {
									paramsBranch.Child(fmt.Sprintf("Creators[%d]: %s verified=%t share=%d", i, c.Address, c.Verified, c.Share))
								}
							}
							paramsBranch.Child(fmt.Sprintf("IsMutable: %t", args.IsMutable))
						}
						if args := inst.CreateMasterEditionV3; args != nil {
							paramsBranch.Child("MaxSupply: " + lo.TernaryF(
								args.MaxSupply == nil,
								func() string { return "unlimited" },
								func() string { return fmt.Sprintf("%d", *args.MaxSupply) },
							))
						}
					})

					names := inst.accountNames()
					instructionBranch.Child(fmt.Sprintf("Accounts[len=%d]", len(inst.Accounts))).ParentFunc(func(accountsBranch treeout.Branches) {
						for i, meta := range inst.Accounts {
							name := fmt.Sprintf("accounts[%d]", i)
							if i < len(names) {
								name = names[i]
							}
							accountsBranch.Child(formatMeta(name, meta))
						}
					})
				})
		})
}

func formatMeta(name string, meta *solana.AccountMeta) string {
	if meta == nil {
		return name + ": <nil>"
	}
	flags := make([]string, 0, 2)
	if meta.IsWritable {
		flags = append(flags, "WRITE")
	}
	if meta.IsSigner {
		flags = append(flags, "SIGN")
	}
	return fmt.Sprintf("%s: %s %v", name, meta.PublicKey, flags)
}
