package sol

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/utils"
)

type (
	watcherState uint8

	// Watcher keeps a recent blockhash warm so transactions can be built
	// without an extra round trip.
	Watcher struct {
		client        RPCClient
		hash          solana.Hash
		hashUpdatedAt time.Time
		hashLock      sync.RWMutex
		withBlockHash bool

		ctx          context.Context
		cancel       context.CancelFunc
		subprocesses utils.Subprocesses

		stateMu sync.Mutex
		state   watcherState
	}
)

const (
	_ watcherState = iota
	watcherStatePending
	watcherStateOpen
	watcherStateClosed
)

// MaxBlockHashAge is how long a watched blockhash is handed out after its
// last refresh.
const MaxBlockHashAge = 3 * time.Second

func NewWatcher(client RPCClient, withBlockHash bool) (*Watcher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		client:        client,
		hash:          solana.Hash{},
		withBlockHash: withBlockHash,
		ctx:           ctx,
		cancel:        cancel,
		subprocesses:  utils.Subprocesses{},
		stateMu:       sync.Mutex{},
		state:         watcherStatePending,
	}, nil
}

func (w *Watcher) Start() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.state != watcherStatePending {
		return errors.New("cannot Start() watcher that has already been started")
	}

	w.state = watcherStateOpen

	if w.withBlockHash {
		w.refreshBlockHash()
		w.subprocesses.Go(func() {
			w.WatchBlockHash(time.Second)
		})
	}

	return nil
}

func (w *Watcher) Close() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.state != watcherStateOpen {
		return errors.New("cannot Close() watcher that isn't open")
	}

	w.state = watcherStateClosed
	w.cancel()
	w.subprocesses.Wait()
	return nil
}

func (w *Watcher) QueryBlockHash() (solana.Hash, error) {
	recentBlock, err := w.client.GetLatestBlockhash(w.ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, err
	}
	return recentBlock.Value.Blockhash, nil
}

func (w *Watcher) WatchBlockHash(interval time.Duration) {
	for {
		select {
		case <-time.After(interval):
		case <-w.ctx.Done():
			return
		}

		w.refreshBlockHash()
	}
}

func (w *Watcher) refreshBlockHash() {
	hash, err := w.QueryBlockHash()
	if err == nil {
		w.hashLock.Lock()
		w.hash = hash
		w.hashUpdatedAt = time.Now()
		w.hashLock.Unlock()
	}
}

func (w *Watcher) GetRecentBlockHash() (solana.Hash, bool) {
	if !w.withBlockHash {
		return solana.Hash{}, false
	}

	w.hashLock.RLock()
	defer w.hashLock.RUnlock()
	if w.hash.IsZero() || time.Since(w.hashUpdatedAt) > MaxBlockHashAge {
		return solana.Hash{}, false
	}
	return w.hash, true
}
