package devbundler

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Deposit is a confirmed transfer to the receiving address.
type Deposit struct {
	Signature string
	From      string
	Lamports  uint64
}

// DepositVerifier looks a funding transaction up on chain.
type DepositVerifier interface {
	Verify(ctx context.Context, signature string) (Deposit, error)
}

// TransactionGetter is the RPC call the verifier needs; *rpc.Client
// implements it.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// RPCDeposits credits the fee payer of a transaction with whatever the
// receiving address gained in it.
type RPCDeposits struct {
	rpc      TransactionGetter
	receiver solana.PublicKey
}

func NewRPCDeposits(client TransactionGetter, receiver solana.PublicKey) *RPCDeposits {
	return &RPCDeposits{rpc: client, receiver: receiver}
}

func (d *RPCDeposits) Verify(ctx context.Context, signature string) (Deposit, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return Deposit{}, fmt.Errorf("%w: tx_id: %w", common.ErrValidation, err)
	}

	version := uint64(0)
	res, err := d.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return Deposit{}, fmt.Errorf("%w: transaction %s", common.ErrNotFound, signature)
		}
		return Deposit{}, fmt.Errorf("%w: get transaction: %w", common.ErrNetwork, err)
	}
	if res == nil || res.Transaction == nil || res.Meta == nil {
		return Deposit{}, fmt.Errorf("%w: transaction %s", common.ErrNotFound, signature)
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return Deposit{}, fmt.Errorf("%w: decode transaction: %w", common.ErrValidation, err)
	}
	return depositFrom(signature, tx, res.Meta, d.receiver)
}

// depositFrom reads the receiver's balance change out of a landed
// transaction. Only static account keys are considered.
func depositFrom(signature string, tx *solana.Transaction, meta *rpc.TransactionMeta, receiver solana.PublicKey) (Deposit, error) {
	if meta.Err != nil {
		return Deposit{}, fmt.Errorf("%w: transaction failed on chain", common.ErrValidation)
	}

	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return Deposit{}, fmt.Errorf("%w: transaction has no accounts", common.ErrValidation)
	}

	for i, k := range keys {
		if !k.Equals(receiver) {
			continue
		}
		if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) || meta.PostBalances[i] <= meta.PreBalances[i] {
			break
		}
		return Deposit{
			Signature: signature,
			From:      keys[0].String(),
			Lamports:  meta.PostBalances[i] - meta.PreBalances[i],
		}, nil
	}
	return Deposit{}, fmt.Errorf("%w: transaction pays nothing to %s", common.ErrValidation, receiver)
}
