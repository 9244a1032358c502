package localnet

import (
	"context"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/meme-bots/go-nft/sol/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultComputeUnitLimit applies when a price is set without a limit.
const defaultComputeUnitLimit = 200_000

// SendTransactionWithOpts executes tx atomically. With preflight enabled a
// failing transaction changes nothing and its error is returned. With
// SkipPreflight the fee is charged, the failure is recorded in the signature
// status and only the instruction effects are discarded.
func (l *Ledger) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("Transaction signature verification failure: no signatures")
	}
	signature := tx.Signatures[0]

	log := l.log.WithFields(logrus.Fields{
		"method":    "SendTransactionWithOpts",
		"signature": signature.String(),
	})

	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, errors.Wrap(err, "Transaction signature verification failure")
	}
	if !l.isRecentBlockhash(tx.Message.RecentBlockhash) {
		return solana.Signature{}, errors.New("Transaction simulation failed: Blockhash not found")
	}
	if _, ok := l.statuses[signature]; ok {
		return solana.Signature{}, errors.New("Transaction simulation failed: This transaction has already been processed")
	}

	payer := tx.Message.AccountKeys[0]
	fee, err := transactionFee(tx)
	if err != nil {
		return solana.Signature{}, err
	}

	feeState := l.cloneAccounts()
	payerAccount, ok := feeState[payer]
	if !ok || payerAccount.Lamports < fee {
		return solana.Signature{}, errors.New("Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.")
	}
	payerAccount.Lamports -= fee

	state := cloneState(feeState)
	ex := &executor{
		state:          state,
		strictEditions: l.strictEditions,
	}

	failedAt, execErr := ex.run(tx)
	if execErr != nil {
		log.WithError(execErr).WithField("instruction", failedAt).Debug("transaction failed")
		if !opts.SkipPreflight {
			return solana.Signature{}, errors.Errorf(
				"Transaction simulation failed: Error processing Instruction %d: %s",
				failedAt,
				execErr,
			)
		}

		l.accounts = feeState
		l.record(signature, map[string]interface{}{
			"InstructionError": []interface{}{failedAt, execErr.Error()},
		})
		return signature, nil
	}

	l.accounts = state
	l.record(signature, nil)
	log.WithField("fee", fee).Debug("transaction executed")
	return signature, nil
}

func (l *Ledger) record(signature solana.Signature, txErr interface{}) {
	l.statuses[signature] = &rpc.SignatureStatusesResult{
		Slot:               l.slot,
		Err:                txErr,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}
	l.advanceSlot()
}

func cloneState(accounts map[solana.PublicKey]*Account) map[solana.PublicKey]*Account {
	cloned := make(map[solana.PublicKey]*Account, len(accounts))
	for k, v := range accounts {
		cloned[k] = v.clone()
	}
	return cloned
}

// transactionFee is the signature fee plus the compute unit price times the
// requested limit.
func transactionFee(tx *solana.Transaction) (uint64, error) {
	fee := uint64(len(tx.Signatures)) * common.BaseFee

	var limit uint64 = defaultComputeUnitLimit
	var price uint64
	for _, ci := range tx.Message.Instructions {
		programID, err := tx.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return 0, err
		}
		if !programID.Equals(common.ComputeBudgetProgramID) {
			continue
		}

		inst, err := computebudget.DecodeInstruction(nil, ci.Data)
		if err != nil {
			return 0, errors.Wrap(err, "Transaction simulation failed: invalid compute budget instruction")
		}
		switch impl := inst.Impl.(type) {
		case *computebudget.SetComputeUnitLimit:
			limit = uint64(impl.Units)
		case *computebudget.SetComputeUnitPrice:
			price = impl.MicroLamports
		}
	}

	if price > 0 {
		fee += (limit*price + 999_999) / 1_000_000
	}
	return fee, nil
}
