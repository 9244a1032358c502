// Package localnet is an in-memory Solana ledger. It serves the RPC calls the
// minter makes and executes the system, token, associated token and token
// metadata instructions of its transactions against local state.
package localnet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MaxRecentBlockhashes is how many slots a blockhash stays valid for.
const MaxRecentBlockhashes = 150

type (
	Account struct {
		Lamports   uint64
		Owner      solana.PublicKey
		Data       []byte
		Executable bool
	}

	Option func(*Ledger)

	Ledger struct {
		mu        sync.RWMutex
		accounts  map[solana.PublicKey]*Account
		statuses  map[solana.Signature]*rpc.SignatureStatusesResult
		slot      uint64
		blockhash solana.Hash
		recent    map[solana.Hash]uint64

		strictEditions bool
		log            *logrus.Entry
	}
)

// WithStrictEditions makes master edition creation require a supply of
// exactly one and hand the mint and freeze authority to the edition, as the
// deployed token metadata program does.
func WithStrictEditions() Option {
	return func(l *Ledger) {
		l.strictEditions = true
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[solana.PublicKey]*Account),
		statuses: make(map[solana.Signature]*rpc.SignatureStatusesResult),
		recent:   make(map[solana.Hash]uint64),
		slot:     1,
		log:      logrus.StandardLogger().WithField("type", "sol/localnet"),
	}
	l.blockhash = hashForSlot(l.slot)
	l.recent[l.blockhash] = l.slot

	for _, opt := range opts {
		opt(l)
	}
	return l
}

func hashForSlot(slot uint64) solana.Hash {
	return solana.Hash(sha256.Sum256(binary.LittleEndian.AppendUint64([]byte("localnet"), slot)))
}

// advanceSlot moves to the next slot and expires blockhashes older than
// MaxRecentBlockhashes slots.
func (l *Ledger) advanceSlot() {
	l.slot++
	l.blockhash = hashForSlot(l.slot)
	l.recent[l.blockhash] = l.slot

	for hash, slot := range l.recent {
		if slot+MaxRecentBlockhashes <= l.slot {
			delete(l.recent, hash)
		}
	}
}

func (l *Ledger) isRecentBlockhash(hash solana.Hash) bool {
	_, ok := l.recent[hash]
	return ok
}

func (a *Account) clone() *Account {
	return &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       bytes.Clone(a.Data),
		Executable: a.Executable,
	}
}

func (a *Account) toRPC() *rpc.Account {
	return &rpc.Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       rpc.DataBytesOrJSONFromBytes(bytes.Clone(a.Data)),
		Executable: a.Executable,
	}
}

// Airdrop credits lamports to address, creating a system account if needed.
func (l *Ledger) Airdrop(address solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[address]
	if !ok {
		account = &Account{Owner: common.SystemProgramID}
		l.accounts[address] = account
	}
	account.Lamports += lamports
}

// SetAccount replaces the account stored at address.
func (l *Ledger) SetAccount(address solana.PublicKey, account *Account) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[address] = account.clone()
}

// Account returns a copy of the account at address, or nil.
func (l *Ledger) Account(address solana.PublicKey) *Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	account, ok := l.accounts[address]
	if !ok {
		return nil
	}
	return account.clone()
}

// SetMint stores an initialized mint at address.
func (l *Ledger) SetMint(address solana.PublicKey, mint token.Mint) error {
	data, err := encodeMint(mint)
	if err != nil {
		return err
	}
	l.SetAccount(address, &Account{
		Lamports: common.RentExempt(common.MintSize),
		Owner:    common.TokenProgramID,
		Data:     data,
	})
	return nil
}

// Mint decodes the mint at address.
func (l *Ledger) Mint(address solana.PublicKey) (*token.Mint, error) {
	account := l.Account(address)
	if account == nil {
		return nil, errors.Errorf("mint %s not found", address)
	}
	return decodeMint(account.Data)
}

// TokenAccount decodes the token account at address.
func (l *Ledger) TokenAccount(address solana.PublicKey) (*token.Account, error) {
	account := l.Account(address)
	if account == nil {
		return nil, errors.Errorf("token account %s not found", address)
	}
	return decodeTokenAccount(account.Data)
}

// Snapshot returns a copy of every account, for comparing state across calls.
func (l *Ledger) Snapshot() map[solana.PublicKey]*Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.cloneAccounts()
}

func (l *Ledger) cloneAccounts() map[solana.PublicKey]*Account {
	accounts := make(map[solana.PublicKey]*Account, len(l.accounts))
	for k, v := range l.accounts {
		accounts[k] = v.clone()
	}
	return accounts
}

func (l *Ledger) rpcContext() rpc.RPCContext {
	return rpc.RPCContext{Context: rpc.Context{Slot: l.slot}}
}

func (l *Ledger) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stored, ok := l.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		RPCContext: l.rpcContext(),
		Value:      stored.toRPC(),
	}, nil
}

func (l *Ledger) GetMultipleAccountsWithOpts(_ context.Context, accounts []solana.PublicKey, _ *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ret := &rpc.GetMultipleAccountsResult{
		RPCContext: l.rpcContext(),
		Value:      make([]*rpc.Account, len(accounts)),
	}
	for i, key := range accounts {
		if stored, ok := l.accounts[key]; ok {
			ret.Value[i] = stored.toRPC()
		}
	}
	return ret, nil
}

func (l *Ledger) GetBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ret := &rpc.GetBalanceResult{RPCContext: l.rpcContext()}
	if stored, ok := l.accounts[account]; ok {
		ret.Value = stored.Lamports
	}
	return ret, nil
}

func (l *Ledger) GetLatestBlockhash(_ context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return &rpc.GetLatestBlockhashResult{
		RPCContext: l.rpcContext(),
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            l.blockhash,
			LastValidBlockHeight: l.slot + MaxRecentBlockhashes,
		},
	}, nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(_ context.Context, dataSize uint64, _ rpc.CommitmentType) (uint64, error) {
	return common.RentExempt(dataSize), nil
}

func (l *Ledger) GetSignatureStatuses(_ context.Context, _ bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ret := &rpc.GetSignatureStatusesResult{
		RPCContext: l.rpcContext(),
		Value:      make([]*rpc.SignatureStatusesResult, len(transactionSignatures)),
	}
	for i, sig := range transactionSignatures {
		if status, ok := l.statuses[sig]; ok {
			copied := *status
			ret.Value[i] = &copied
		}
	}
	return ret, nil
}

func encodeMint(mint token.Mint) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := mint.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMint(data []byte) (*token.Mint, error) {
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &mint, nil
}

func encodeTokenAccount(account token.Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := account.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTokenAccount(data []byte) (*token.Account, error) {
	var account token.Account
	if err := account.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &account, nil
}
