package types

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	ErrNotFound = errors.New("not found")

	ErrMintNotFound = errors.New("mint not found")

	ErrInvalidAccount = errors.New("invalid account")

	ErrMissingSignature = errors.New("missing required signature")

	ErrAccountAlreadyInitialized = errors.New("account already initialized")

	ErrAuthorityMismatch = errors.New("authority mismatch")

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrInvalidCreatorShares = errors.New("invalid creator shares")

	ErrInstructionFailed = errors.New("instruction failed")

	ErrTransactionFailed = errors.New("transaction failed")

	ErrTxNotLand = errors.New("transaction did not land")
)
