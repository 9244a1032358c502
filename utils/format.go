package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

const LamportsPerSol = 1_000_000_000

// LamportsToSol converts a lamport amount to SOL.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(decimal.NewFromInt(LamportsPerSol))
}

// FormatLamports renders a lamport amount as "<sol> SOL".
func FormatLamports(lamports uint64) string {
	return LamportsToSol(lamports).String() + " SOL"
}

// TrimPadding strips the trailing NUL bytes the metadata program pads
// fixed-width strings with.
func TrimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}
