package sol

import (
	"context"
	"encoding/binary"
	"math/big"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eko/gocache/lib/v4/cache"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/meme-bots/go-nft/sol/metadata"
	"github.com/meme-bots/go-nft/types"
	"github.com/meme-bots/go-nft/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Solana struct {
	ctx     context.Context
	cfg     *types.Config
	watcher *Watcher
	client  RPCClient
	cache   *cache.Cache[[]byte]
	log     *logrus.Entry

	wsMu     sync.Mutex
	wsClient WSClient
	wsDial   func(ctx context.Context) (WSClient, error)
}

var _ types.MinterInterface = (*Solana)(nil)

var addressRegexp = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]{32,44}$")

func NewSolana(
	ctx context.Context,
	cfg *types.Config,
) (*Solana, error) {
	s, err := NewSolanaWithClient(ctx, cfg, rpc.New(cfg.RPC))
	if err != nil {
		return nil, err
	}

	if cfg.WSRPC != "" {
		s.wsDial = func(ctx context.Context) (WSClient, error) {
			conn, err := ws.Connect(ctx, cfg.WSRPC)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
		s.wsClient, err = s.wsDial(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect websocket")
		}
	}

	return s, nil
}

// NewSolanaWithClient builds a minter on top of an existing RPC client.
// Transactions are confirmed by polling unless a websocket is connected.
func NewSolanaWithClient(
	ctx context.Context,
	cfg *types.Config,
	client RPCClient,
) (*Solana, error) {
	watcher, err := NewWatcher(client, cfg.WatchBlockHash)
	if err != nil {
		return nil, err
	}

	cache, err := utils.NewCache()
	if err != nil {
		return nil, err
	}

	return &Solana{
		ctx:     ctx,
		cfg:     cfg,
		watcher: watcher,
		client:  client,
		cache:   cache,
		log:     logrus.StandardLogger().WithField("type", "sol/minter"),
	}, nil
}

func (s *Solana) Start() error {
	return s.watcher.Start()
}

func (s *Solana) Close() error {
	s.wsMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	s.wsMu.Unlock()
	return s.watcher.Close()
}

func (s *Solana) GetType() int {
	return types.NetworkTypeSol
}

func (s *Solana) GetTypeSymbol() string {
	return "SOL"
}

func (s *Solana) commitment() rpc.CommitmentType {
	if s.cfg.Commitment == "" {
		return rpc.CommitmentConfirmed
	}
	return rpc.CommitmentType(s.cfg.Commitment)
}

func (s *Solana) GetBalance(req *types.GetBalanceRequest) (*big.Int, error) {
	address, err := solana.PublicKeyFromBase58(req.Address)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid address %q", req.Address)
	}

	balance, err := s.client.GetBalance(s.ctx, address, s.commitment())
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(balance.Value), nil
}

// GetTokenBalance returns the balance of the owner's associated token account.
func (s *Solana) GetTokenBalance(req *types.GetTokenBalanceRequest) (*big.Int, error) {
	owner, err := solana.PublicKeyFromBase58(req.Owner)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid owner %q", req.Owner)
	}
	mint, err := solana.PublicKeyFromBase58(req.Token)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid token %q", req.Token)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	ret, err := s.client.GetAccountInfoWithOpts(s.ctx, ata, &rpc.GetAccountInfoOpts{Commitment: s.commitment()})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}

	var account token.Account
	err = account.UnmarshalWithDecoder(bin.NewBorshDecoder(ret.Value.Data.GetBinary()))
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetUint64(account.Amount), nil
}

// getRentExemption returns the rent-exempt minimum for size bytes, cached per
// size.
func (s *Solana) getRentExemption(size uint64) (uint64, error) {
	key := "RentExemption:" + strconv.FormatUint(size, 10)

	data, err := s.cache.Get(s.ctx, key)
	if err == nil && len(data) == 8 {
		return binary.LittleEndian.Uint64(data), nil
	}

	lamports, err := s.client.GetMinimumBalanceForRentExemption(s.ctx, size, s.commitment())
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rent exemption")
	}

	data = binary.LittleEndian.AppendUint64(nil, lamports)
	_ = s.cache.Set(s.ctx, key, data)

	return lamports, nil
}

// GetNFT reads back the metadata, master edition and mint of req.Mint, and
// the balance of req.Owner when set.
func (s *Solana) GetNFT(req *types.GetNFTRequest) (*types.GetNFTResponse, error) {
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid mint %q", req.Mint)
	}

	metadataAddr, err := metadata.FindMetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	editionAddr, err := metadata.FindMasterEditionAddress(mint)
	if err != nil {
		return nil, err
	}

	keys := []solana.PublicKey{mint, metadataAddr, editionAddr}
	if req.Owner != "" {
		owner, err := solana.PublicKeyFromBase58(req.Owner)
		if err != nil {
			return nil, errors.Wrapf(types.ErrInvalidAccount, "invalid owner %q", req.Owner)
		}
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return nil, err
		}
		keys = append(keys, ata)
	}

	ret, err := s.client.GetMultipleAccountsWithOpts(s.ctx, keys, &rpc.GetMultipleAccountsOpts{Commitment: s.commitment()})
	if err != nil {
		return nil, err
	}
	if len(ret.Value) != len(keys) {
		return nil, errors.Errorf("expected %d accounts, got %d", len(keys), len(ret.Value))
	}

	if ret.Value[0] == nil {
		return nil, errors.Wrapf(types.ErrMintNotFound, "mint %s", mint)
	}
	if ret.Value[1] == nil {
		return nil, errors.Wrapf(types.ErrNotFound, "metadata %s", metadataAddr)
	}

	var mintAccount token.Mint
	err = mintAccount.UnmarshalWithDecoder(bin.NewBorshDecoder(ret.Value[0].Data.GetBinary()))
	if err != nil {
		return nil, err
	}

	meta, err := common.MetadataDeserialize(ret.Value[1].Data.GetBinary())
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode metadata")
	}

	resp := &types.GetNFTResponse{
		Mint:                 mint.String(),
		Name:                 utils.TrimPadding(meta.Data.Name),
		Symbol:               utils.TrimPadding(meta.Data.Symbol),
		Uri:                  utils.TrimPadding(meta.Data.Uri),
		SellerFeeBasisPoints: meta.Data.SellerFeeBasisPoints,
		UpdateAuthority:      meta.UpdateAuthority.String(),
		IsMutable:            meta.IsMutable,
		PrimarySaleHappened:  meta.PrimarySaleHappened,
		HasCollection:        meta.Collection != nil,
		HasUses:              meta.Uses != nil,
		Supply:               mintAccount.Supply,
		Decimals:             mintAccount.Decimals,
		Balance:              big.NewInt(0),
	}

	if meta.Data.Creators != nil {
		for _, creator := range *meta.Data.Creators {
			resp.Creators = append(resp.Creators, types.Creator{
				Address:  creator.Address.String(),
				Verified: creator.Verified,
				Share:    creator.Share,
			})
		}
	}

	if ret.Value[2] != nil {
		edition, err := common.MasterEditionDeserialize(ret.Value[2].Data.GetBinary())
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode master edition")
		}
		resp.MasterEdition = editionAddr.String()
		resp.EditionSupply = edition.Supply
		resp.MaxSupply = edition.MaxSupply
	}

	if len(keys) == 4 && ret.Value[3] != nil {
		var account token.Account
		err = account.UnmarshalWithDecoder(bin.NewBorshDecoder(ret.Value[3].Data.GetBinary()))
		if err != nil {
			return nil, err
		}
		resp.Balance = new(big.Int).SetUint64(account.Amount)
	}

	if req.WithOffChain && resp.Uri != "" {
		resp.OffChain, err = QueryOffChainMetadataWithCache(s.ctx, s.cache, resp.Uri)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"method": "GetNFT",
				"uri":    resp.Uri,
			}).WithError(err).Warn("failed to fetch off-chain metadata")
		}
	}

	return resp, nil
}

// WatchTransaction waits until req.TxHash reaches the configured commitment or
// req.Duration elapses. With a websocket configured it subscribes to the
// signature and falls back to polling when the socket cannot be used.
func (s *Solana) WatchTransaction(req *types.WatchTransactionRequest) error {
	sig, err := solana.SignatureFromBase58(req.TxHash)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, req.Duration)
	defer cancel()

	if s.wsDial != nil {
		return s.watchTransactionWs(ctx, sig)
	}
	return s.watchTransactionPoll(ctx, sig)
}

func (s *Solana) watchTransactionWs(ctx context.Context, sig solana.Signature) error {
	log := s.log.WithFields(logrus.Fields{
		"method":    "watchTransactionWs",
		"signature": sig.String(),
	})

	sub, err := s.signatureSubscribe(ctx, sig)
	if err != nil {
		log.WithError(err).Warn("websocket unavailable, polling signature status")
		return s.watchTransactionPoll(ctx, sig)
	}
	defer sub.Unsubscribe()

	deadline, _ := ctx.Deadline()
	result, err := sub.RecvWithTimeout(time.Until(deadline))
	if err != nil {
		if errors.Is(err, ws.ErrTimeout) {
			return types.ErrTxNotLand
		}
		log.WithError(err).Warn("signature subscription failed, polling signature status")
		return s.watchTransactionPoll(ctx, sig)
	}

	return transactionError(result.Value.Err)
}

// signatureSubscribe subscribes on the current connection, reconnecting with
// exponential backoff until ctx is done.
func (s *Solana) signatureSubscribe(ctx context.Context, sig solana.Signature) (*ws.SignatureSubscription, error) {
	s.wsMu.Lock()
	client := s.wsClient
	s.wsMu.Unlock()

	if client != nil {
		sub, err := client.SignatureSubscribe(sig, s.commitment())
		if err == nil {
			return sub, nil
		}
	}

	var sub *ws.SignatureSubscription
	err := backoff.Retry(func() error {
		conn, err := s.WsReconnect(ctx)
		if err != nil {
			return err
		}
		sub, err = conn.SignatureSubscribe(sig, s.commitment())
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Solana) watchTransactionPoll(ctx context.Context, sig solana.Signature) error {
	for {
		ret, err := s.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(ret.Value) == 1 && ret.Value[0] != nil {
			status := ret.Value[0]
			if status.Err != nil {
				return transactionError(status.Err)
			}
			if reachedCommitment(status.ConfirmationStatus, s.commitment()) {
				return nil
			}
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return types.ErrTxNotLand
		}
	}
}

func reachedCommitment(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	switch commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	default:
		return status != ""
	}
}

func transactionError(txErr interface{}) error {
	if txErr == nil {
		return nil
	}

	if errMap, ok := txErr.(map[string]interface{}); ok {
		if _, ok := errMap["InstructionError"]; ok {
			return errors.Wrapf(types.ErrInstructionFailed, "%v", txErr)
		}
	}
	return errors.Wrapf(types.ErrTransactionFailed, "%v", txErr)
}

// WsReconnect dials a fresh websocket connection and swaps it in.
func (s *Solana) WsReconnect(ctx context.Context) (WSClient, error) {
	if s.wsDial == nil {
		return nil, errors.New("websocket not configured")
	}

	conn, err := s.wsDial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reconnect websocket")
	}

	s.wsMu.Lock()
	old := s.wsClient
	s.wsClient = conn
	s.wsMu.Unlock()

	if old != nil {
		old.Close()
	}
	return conn, nil
}

func (s *Solana) CheckAddress(text string) bool {
	if !addressRegexp.MatchString(text) {
		return false
	}
	_, err := solana.PublicKeyFromBase58(text)
	return err == nil
}
