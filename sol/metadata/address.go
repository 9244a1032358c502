package metadata

import (
	"github.com/gagliardetto/solana-go"
	"github.com/meme-bots/go-nft/sol/common"
)

const (
	metadataSeed = "metadata"
	editionSeed  = "edition"
)

// FindMetadataAddress derives the metadata PDA of a mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(metadataSeed),
			common.TokenMetadataProgramID.Bytes(),
			mint.Bytes(),
		},
		common.TokenMetadataProgramID,
	)
	return addr, err
}

// FindMasterEditionAddress derives the master edition PDA of a mint.
func FindMasterEditionAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(metadataSeed),
			common.TokenMetadataProgramID.Bytes(),
			mint.Bytes(),
			[]byte(editionSeed),
		},
		common.TokenMetadataProgramID,
	)
	return addr, err
}
