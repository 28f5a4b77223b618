// Package wallet provides the Signer used by the payment transport, the
// storage submitter and the index login flow.
package wallet

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/gagliardetto/solana-go"
)

// Intent describes a transfer so the approver can show the user what they
// are signing.
type Intent struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
	Memo     string
}

// Signer holds the payer identity. A declined request must return an error
// matching common.ErrUserRejected.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	SignTransaction(ctx context.Context, tx *solana.Transaction, intent Intent) error
}

// Approver decides whether a transfer may be signed.
type Approver interface {
	Approve(ctx context.Context, intent Intent) (bool, error)
}

// KeypairSigner signs with a local ed25519 keypair after asking its
// Approver. Messages (data items, login challenges) are signed without a
// prompt; only value transfers need approval.
type KeypairSigner struct {
	key      solana.PrivateKey
	approver Approver
}

func NewKeypairSigner(key solana.PrivateKey, approver Approver) *KeypairSigner {
	return &KeypairSigner{key: key, approver: approver}
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string, approver Approver) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key, approver), nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	sig, err := s.key.Sign(msg)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

func (s *KeypairSigner) SignTransaction(ctx context.Context, tx *solana.Transaction, intent Intent) error {
	ok, err := s.approver.Approve(ctx, intent)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUserRejected, err)
	}
	if !ok {
		return common.ErrUserRejected
	}

	pub := s.key.PublicKey()
	_, err = tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}
