package common

import "github.com/gagliardetto/solana-go"

const (
	RentBase  = 128
	RentPrice = 6960

	MintSize          = 82
	TokenAccountSize  = 165
	MetadataSize      = 679
	MasterEditionSize = 282

	RentATA = uint64((RentBase + TokenAccountSize) * RentPrice)

	// BaseFee is the fee charged per transaction signature.
	BaseFee = 5000
)

// Fixed-width string limits enforced by the token metadata program.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxUriLength    = 200
)

var (
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	TokenMetadataProgramID   = solana.TokenMetadataProgramID
	ComputeBudgetProgramID   = solana.ComputeBudget
	SysVarRentPubkey         = solana.SysVarRentPubkey
)

// RentExempt returns the rent-exempt minimum for an account of size bytes,
// using the same schedule as the cluster default.
func RentExempt(size uint64) uint64 {
	return (RentBase + size) * RentPrice
}
