package common

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// Account keys of the token metadata program.
const (
	KeyUninitialized   uint8 = 0
	KeyEditionV1       uint8 = 1
	KeyMasterEditionV1 uint8 = 2
	KeyMetadataV1      uint8 = 4
	KeyMasterEditionV2 uint8 = 6
)

const (
	TokenStandardNonFungible   uint8 = 0
	TokenStandardFungibleAsset uint8 = 1
	TokenStandardFungible      uint8 = 2
)

// Account layouts are decoded with the borsh decoder from
// gagliardetto/binary so that absent options stay nil. Instruction arguments
// are encoded with near/borsh-go.

type Data struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator `bin:"optional"`
}

type DataV2 struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator  `bin:"optional"`
	Collection           *Collection `bin:"optional"`
	Uses                 *Uses       `bin:"optional"`
}

type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

type Metadata struct {
	Key                 uint8
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                Data
	PrimarySaleHappened bool
	IsMutable           bool
	EditionNonce        *uint8              `bin:"optional"`
	TokenStandard       *uint8              `bin:"optional"`
	Collection          *Collection         `bin:"optional"`
	Uses                *Uses               `bin:"optional"`
	CollectionDetails   *CollectionDetails  `bin:"optional"`
	ProgrammableConfig  *ProgrammableConfig `bin:"optional"`
}

type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

type CollectionDetails struct {
	Enum bin.BorshEnum `borsh_enum:"true"`
	V1   CollectionDetailsV1
}

type CollectionDetailsV1 struct {
	Size uint64
}

type ProgrammableConfig struct {
	Enum bin.BorshEnum `borsh_enum:"true"`
	V1   ProgrammableConfigV1
}

type ProgrammableConfigV1 struct {
	RuleSet *solana.PublicKey `bin:"optional"`
}

type MasterEditionV2 struct {
	Key       uint8
	Supply    uint64
	MaxSupply *uint64 `bin:"optional"`
}

// CreateMetadataAccountArgsV3 is the argument payload of the
// CreateMetadataAccountV3 instruction.
type CreateMetadataAccountArgsV3 struct {
	Data              DataV2
	IsMutable         bool
	CollectionDetails *CollectionDetails `bin:"optional"`
}

// CreateMasterEditionArgs is the argument payload of the
// CreateMasterEditionV3 instruction. A nil MaxSupply means unlimited.
type CreateMasterEditionArgs struct {
	MaxSupply *uint64 `bin:"optional"`
}

func MetadataDeserialize(data []byte) (Metadata, error) {
	var metadata Metadata

	err := bin.NewBorshDecoder(data).Decode(&metadata)
	return metadata, err
}

func MasterEditionDeserialize(data []byte) (MasterEditionV2, error) {
	var edition MasterEditionV2

	err := bin.NewBorshDecoder(data).Decode(&edition)
	return edition, err
}

// MetadataSerialize encodes a metadata account and pads it to the fixed
// account size.
func MetadataSerialize(metadata Metadata) ([]byte, error) {
	return serializePadded(metadata, MetadataSize)
}

func MasterEditionSerialize(edition MasterEditionV2) ([]byte, error) {
	return serializePadded(edition, MasterEditionSize)
}

func serializePadded(v interface{}, size int) ([]byte, error) {
	data, err := borsh.Serialize(v)
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data, nil
}
