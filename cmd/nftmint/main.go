package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/meme-bots/go-nft/sol"
	"github.com/meme-bots/go-nft/types"
	"github.com/meme-bots/go-nft/utils"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "nftmint",
		Usage: "mint Metaplex master edition NFTs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rpc", Value: "https://api.devnet.solana.com", Usage: "solana rpc url", EnvVars: []string{"RPC"}},
			&cli.StringFlag{Name: "ws_rpc", Usage: "solana websocket url, enables subscription based confirmation", EnvVars: []string{"WS_RPC"}},
			&cli.StringFlag{Name: "commitment", Value: "confirmed", Usage: "processed, confirmed or finalized", EnvVars: []string{"COMMITMENT"}},
			&cli.StringFlag{Name: "key", Value: "~/.config/solana/id.json", Usage: "payer keygen file or base58 private key", EnvVars: []string{"KEY"}},
			&cli.UintFlag{Name: "compute_unit_limit", Usage: "compute unit limit, 0 for the cluster default", EnvVars: []string{"COMPUTE_UNIT_LIMIT"}},
			&cli.Uint64Flag{Name: "priority_fee", Usage: "priority fee in micro-lamports per compute unit", EnvVars: []string{"PRIORITY_FEE"}},
			&cli.BoolFlag{Name: "skip_preflight", EnvVars: []string{"SKIP_PREFLIGHT"}},
			&cli.DurationFlag{Name: "confirm_timeout", Value: defaultConfirmTimeout, Usage: "wait for confirmation, 0 to return once sent", EnvVars: []string{"CONFIRM_TIMEOUT"}},
			&cli.BoolFlag{Name: "mint_before_edition", Usage: "mint the token before creating the master edition", EnvVars: []string{"MINT_BEFORE_EDITION"}},
			&cli.BoolFlag{Name: "dry_run", Usage: "print the transaction instead of sending it", EnvVars: []string{"DRY_RUN"}},
			&cli.StringFlag{Name: "log_level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:   "create-mint",
				Usage:  "create a 0-decimal mint owned by the payer",
				Action: createMint,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint_key", Usage: "keygen file or base58 private key of the new mint, random when empty"},
				},
			},
			{
				Name:   "mint",
				Usage:  "create metadata and master edition for a mint and mint one token to the payer",
				Action: mintNFT,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "symbol", Required: true},
					&cli.StringFlag{Name: "uri", Required: true},
				},
			},
			{
				Name:   "show",
				Usage:  "print the on-chain state of an NFT",
				Action: show,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Required: true},
					&cli.StringFlag{Name: "owner"},
					&cli.BoolFlag{Name: "off_chain", Usage: "fetch the json document behind the uri"},
					&cli.BoolFlag{Name: "raw", Usage: "dump the full response"},
				},
			},
			{
				Name:   "balance",
				Usage:  "print the payer balance",
				Action: balance,
			},
			{
				Name:   "metadata-json",
				Usage:  "write the json document a metadata uri should serve",
				Action: metadataJSON,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "symbol", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "image", Required: true},
					&cli.StringSliceFlag{Name: "attribute", Usage: "trait=value, repeatable"},
					&cli.StringFlag{Name: "out", Usage: "output file, stdout when empty"},
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		logrus.Fatal(err)
	}
}

func setupLogging(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log_level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// newMinter builds a started Solana minter from the global flags. The
// returned func stops it.
func newMinter(c *cli.Context) (*sol.Solana, func(), error) {
	cfg, err := configFromFlags(c)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)

	minter, err := sol.NewSolana(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if err := minter.Start(); err != nil {
		cancel()
		return nil, nil, err
	}

	return minter, func() {
		_ = minter.Close()
		cancel()
	}, nil
}

func createMint(c *cli.Context) error {
	payer, err := loadPrivateKey(c.String("key"))
	if err != nil {
		return err
	}

	req := &types.CreateMintRequest{}
	if path := c.String("mint_key"); path != "" {
		mintKey, err := loadPrivateKey(path)
		if err != nil {
			return err
		}
		req.MintPrivateKey = mintKey.String()
	}

	minter, stop, err := newMinter(c)
	if err != nil {
		return err
	}
	defer stop()

	if c.Bool("dry_run") {
		tx, resp, err := minter.BuildCreateMintTransaction(req, payer.String())
		if err != nil {
			return err
		}
		fmt.Println(tx.String())
		fmt.Println("mint:", resp.Mint)
		return nil
	}

	resp, err := minter.CreateMint(req, payer.String())
	if err != nil {
		if resp != nil {
			fmt.Println("unconfirmed signature:", resp.TxHash)
		}
		return err
	}

	fmt.Println("mint:", resp.Mint)
	fmt.Println("signature:", resp.TxHash)
	return nil
}

func mintNFT(c *cli.Context) error {
	payer, err := loadPrivateKey(c.String("key"))
	if err != nil {
		return err
	}

	minter, stop, err := newMinter(c)
	if err != nil {
		return err
	}
	defer stop()

	req := &types.MintNFTRequest{
		Name:   c.String("name"),
		Symbol: c.String("symbol"),
		Uri:    c.String("uri"),
		Mint:   c.String("mint"),
	}

	if c.Bool("dry_run") {
		tx, _, err := minter.BuildMintNFTTransaction(req, payer.String())
		if err != nil {
			return err
		}
		fmt.Println(tx.String())
		return nil
	}

	resp, err := minter.MintNFT(req, payer.String())
	if err != nil {
		if resp != nil {
			fmt.Println("unconfirmed signature:", resp.TxHash)
		}
		return err
	}

	fmt.Println("mint:", resp.Mint)
	fmt.Println("token account:", resp.TokenAccount)
	fmt.Println("metadata:", resp.Metadata)
	fmt.Println("master edition:", resp.MasterEdition)
	fmt.Println("signature:", resp.TxHash)
	return nil
}

func show(c *cli.Context) error {
	minter, stop, err := newMinter(c)
	if err != nil {
		return err
	}
	defer stop()

	nft, err := minter.GetNFT(&types.GetNFTRequest{
		Mint:         c.String("mint"),
		Owner:        c.String("owner"),
		WithOffChain: c.Bool("off_chain"),
	})
	if err != nil {
		return err
	}

	if c.Bool("raw") {
		spew.Dump(nft)
		return nil
	}

	fmt.Print(formatNFT(nft))
	return nil
}

func balance(c *cli.Context) error {
	payer, err := loadPrivateKey(c.String("key"))
	if err != nil {
		return err
	}

	minter, stop, err := newMinter(c)
	if err != nil {
		return err
	}
	defer stop()

	lamports, err := minter.GetBalance(&types.GetBalanceRequest{Address: payer.PublicKey().String()})
	if err != nil {
		return err
	}

	fmt.Println(payer.PublicKey().String(), utils.FormatLamports(lamports.Uint64()))
	return nil
}

func metadataJSON(c *cli.Context) error {
	attributes, err := parseAttributes(c.StringSlice("attribute"))
	if err != nil {
		return err
	}

	metadata := sol.NewOffChainMetadata(
		c.String("name"),
		c.String("symbol"),
		c.String("description"),
		c.String("image"),
		attributes,
	)

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		return os.WriteFile(out, append(data, '\n'), 0o644)
	}
	fmt.Println(string(data))
	return nil
}
