package sol

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/types"
	"github.com/pkg/errors"
)

// buildTransaction assembles and signs a transaction paid by payer. signers
// must cover every signer the instructions require besides the payer.
func (s *Solana) buildTransaction(
	instructions []solana.Instruction,
	payer solana.PrivateKey,
	signers ...solana.PrivateKey,
) (*solana.Transaction, error) {
	recentBlockHash, ok := s.watcher.GetRecentBlockHash()
	if !ok {
		latestBlock, err := s.client.GetLatestBlockhash(s.ctx, rpc.CommitmentFinalized)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get latest blockhash")
		}
		recentBlockHash = latestBlock.Value.Blockhash
	}

	tx, err := solana.NewTransaction(
		instructions,
		recentBlockHash,
		solana.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		return nil, err
	}

	keys := append([]solana.PrivateKey{payer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(key) {
				return &keys[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(types.ErrMissingSignature, err.Error())
	}

	return tx, nil
}

func (s *Solana) sendTransaction(tx *solana.Transaction) (solana.Signature, error) {
	signature, err := s.client.SendTransactionWithOpts(s.ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.commitment(),
	})
	if err != nil {
		return solana.Signature{}, ParseError(err)
	}
	return signature, nil
}
