package localnet

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransaction(t *testing.T, l *Ledger, instructions []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	latest, err := l.GetLatestBlockhash(context.Background(), rpc.CommitmentFinalized)
	require.NoError(t, err)

	tx, err := solana.NewTransaction(instructions, latest.Value.Blockhash, solana.TransactionPayer(signers[0].PublicKey()))
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func createMintInstructions(payer, mint solana.PublicKey) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(common.RentExempt(common.MintSize), common.MintSize, common.TokenProgramID, payer, mint).Build(),
		token.NewInitializeMint2Instruction(0, payer, payer, mint).Build(),
	}
}

func TestLedger_CreateMint(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	sig, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)

	decoded, err := l.Mint(mint.PublicKey())
	require.NoError(t, err)
	assert.True(t, decoded.IsInitialized)
	assert.Equal(t, uint8(0), decoded.Decimals)
	assert.Equal(t, uint64(0), decoded.Supply)
	require.NotNil(t, decoded.MintAuthority)
	assert.Equal(t, payer.PublicKey(), *decoded.MintAuthority)

	expected := solana.LAMPORTS_PER_SOL - common.RentExempt(common.MintSize) - 2*common.BaseFee
	assert.Equal(t, expected, l.Account(payer.PublicKey()).Lamports)

	statuses, err := l.GetSignatureStatuses(context.Background(), true, sig)
	require.NoError(t, err)
	require.NotNil(t, statuses.Value[0])
	assert.Nil(t, statuses.Value[0].Err)
	assert.Equal(t, rpc.ConfirmationStatusFinalized, statuses.Value[0].ConfirmationStatus)
}

func TestLedger_RejectsUnsignedTransaction(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)
	before := l.Snapshot()

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	tx.Signatures[1] = solana.Signature{}

	_, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature verification failure")
	assert.Equal(t, before, l.Snapshot())
}

func TestLedger_RejectsUnknownBlockhash(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	tx, err := solana.NewTransaction(createMintInstructions(payer.PublicKey(), mint.PublicKey()), solana.Hash{9}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(mint.PublicKey()) {
			return &mint
		}
		return &payer
	})
	require.NoError(t, err)

	_, err = l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Blockhash not found")
}

func TestLedger_RejectsDuplicateTransaction(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	_, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.NoError(t, err)

	_, err = l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been processed")
}

func TestLedger_AcceptsRecentBlockhash(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	first := solana.NewWallet().PrivateKey
	second := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	// Both transactions are signed against the same blockhash before either
	// is sent.
	tx1 := newTransaction(t, l, createMintInstructions(payer.PublicKey(), first.PublicKey()), payer, first)
	tx2 := newTransaction(t, l, createMintInstructions(payer.PublicKey(), second.PublicKey()), payer, second)
	assert.Equal(t, tx1.Message.RecentBlockhash, tx2.Message.RecentBlockhash)

	_, err := l.SendTransactionWithOpts(context.Background(), tx1, rpc.TransactionOpts{})
	require.NoError(t, err)
	_, err = l.SendTransactionWithOpts(context.Background(), tx2, rpc.TransactionOpts{})
	require.NoError(t, err)
}

func TestLedger_ExpiresOldBlockhash(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	for i := 0; i < MaxRecentBlockhashes; i++ {
		l.advanceSlot()
	}
	assert.LessOrEqual(t, len(l.recent), MaxRecentBlockhashes)

	_, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Blockhash not found")
}

func TestLedger_FailedInstructionRollsBack(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)
	l.Airdrop(other.PublicKey(), solana.LAMPORTS_PER_SOL)

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	_, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.NoError(t, err)

	// The second instruction mints with an authority that does not own the
	// mint, so the account created by the first must not persist.
	ata, _, err := solana.FindAssociatedTokenAddress(other.PublicKey(), mint.PublicKey())
	require.NoError(t, err)
	fresh := solana.NewWallet().PrivateKey
	before := l.Snapshot()

	tx = newTransaction(t, l, []solana.Instruction{
		system.NewCreateAccountInstruction(common.RentExempt(0), 0, common.SystemProgramID, other.PublicKey(), fresh.PublicKey()).Build(),
		token.NewMintToInstruction(1, mint.PublicKey(), ata, other.PublicKey(), nil).Build(),
	}, other, fresh)

	_, err = l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error processing Instruction 1")
	assert.Contains(t, err.Error(), "owner does not match")
	assert.Nil(t, l.Account(fresh.PublicKey()))
	assert.Equal(t, before, l.Snapshot())
}

func TestLedger_SkipPreflightChargesFee(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	ata, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), mint.PublicKey())
	require.NoError(t, err)

	tx := newTransaction(t, l, []solana.Instruction{
		token.NewMintToInstruction(1, mint.PublicKey(), ata, payer.PublicKey(), nil).Build(),
	}, payer)

	sig, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{SkipPreflight: true})
	require.NoError(t, err)

	statuses, err := l.GetSignatureStatuses(context.Background(), true, sig)
	require.NoError(t, err)
	require.NotNil(t, statuses.Value[0])
	errMap, ok := statuses.Value[0].Err.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, errMap, "InstructionError")

	assert.Equal(t, solana.LAMPORTS_PER_SOL-common.BaseFee, l.Account(payer.PublicKey()).Lamports)
}

func TestLedger_FeeRequiresFundedPayer(t *testing.T) {
	l := New()
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey

	tx := newTransaction(t, l, createMintInstructions(payer.PublicKey(), mint.PublicKey()), payer, mint)
	_, err := l.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record of a prior credit")
}

func TestLedger_AccountQueries(t *testing.T) {
	l := New()
	owner := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	l.Airdrop(owner, 42)

	_, err := l.GetAccountInfoWithOpts(context.Background(), missing, nil)
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	info, err := l.GetAccountInfoWithOpts(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), info.Value.Lamports)
	assert.Equal(t, common.SystemProgramID, info.Value.Owner)

	multi, err := l.GetMultipleAccountsWithOpts(context.Background(), []solana.PublicKey{owner, missing}, nil)
	require.NoError(t, err)
	require.Len(t, multi.Value, 2)
	assert.NotNil(t, multi.Value[0])
	assert.Nil(t, multi.Value[1])

	balance, err := l.GetBalance(context.Background(), missing, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance.Value)

	rent, err := l.GetMinimumBalanceForRentExemption(context.Background(), common.MintSize, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, common.RentExempt(common.MintSize), rent)
}
