package types

import (
	"math/big"
	"time"
)

type (
	GetBalanceRequest struct {
		Address string
	}

	GetTokenBalanceRequest struct {
		Owner string
		Token string
	}

	CreateMintRequest struct {
		// Optional base58 private key for the new mint account. A random key
		// is generated when empty.
		MintPrivateKey string
	}

	CreateMintResponse struct {
		TxHash string
		Mint   string
	}

	MintNFTRequest struct {
		Name   string
		Symbol string
		Uri    string

		Mint string

		// Derived from Mint and the payer when empty. When set they must match
		// the derived addresses.
		TokenAccount  string
		Metadata      string
		MasterEdition string
	}

	MintNFTResponse struct {
		TxHash              string
		Mint                string
		TokenAccount        string
		Metadata            string
		MasterEdition       string
		TokenAccountCreated bool
	}

	GetNFTRequest struct {
		Mint  string
		Owner string

		// Fetch the JSON document the metadata uri points at.
		WithOffChain bool
	}

	Attribute struct {
		TraitType string `json:"trait_type"`
		Value     string `json:"value"`
	}

	File struct {
		Type string `json:"type"`
		Uri  string `json:"uri"`
	}

	Properties struct {
		Files    []File `json:"files"`
		Category string `json:"category"`
	}

	// OffChainMetadata is the JSON document referenced by the on-chain uri.
	OffChainMetadata struct {
		Name        string      `json:"name"`
		Symbol      string      `json:"symbol"`
		Description string      `json:"description"`
		Image       string      `json:"image"`
		Attributes  []Attribute `json:"attributes"`
		Properties  Properties  `json:"properties"`
	}

	Creator struct {
		Address  string
		Verified bool
		Share    uint8
	}

	GetNFTResponse struct {
		Mint                 string
		Name                 string
		Symbol               string
		Uri                  string
		SellerFeeBasisPoints uint16
		Creators             []Creator
		UpdateAuthority      string
		IsMutable            bool
		PrimarySaleHappened  bool
		HasCollection        bool
		HasUses              bool
		MasterEdition        string
		EditionSupply        uint64
		MaxSupply            *uint64
		Supply               uint64
		Decimals             uint8
		Balance              *big.Int
		OffChain             *OffChainMetadata
	}

	WatchTransactionRequest struct {
		TxHash   string
		Duration time.Duration
	}

	MinterInterface interface {
		Start() error
		Close() error
		GetType() int
		GetTypeSymbol() string
		GetBalance(req *GetBalanceRequest) (*big.Int, error)
		GetTokenBalance(req *GetTokenBalanceRequest) (*big.Int, error)
		CheckAddress(text string) bool
		CreateMint(req *CreateMintRequest, privateKey string) (*CreateMintResponse, error)
		MintNFT(req *MintNFTRequest, privateKey string) (*MintNFTResponse, error)
		GetNFT(req *GetNFTRequest) (*GetNFTResponse, error)
		WatchTransaction(req *WatchTransactionRequest) error
	}
)
