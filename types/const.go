package types

const (
	NetworkTypeSol int = iota
	NetworkTypeEVM
)

const (
	// SellerFeeBasisPoints is the royalty written into every minted NFT (5%).
	SellerFeeBasisPoints uint16 = 500

	// CreatorShare is the share of the single verified creator.
	CreatorShare uint8 = 100
)
