package auth

import (
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/gagliardetto/solana-go"
)

// ParseWallet checks that wallet is a base58 ed25519 public key.
func ParseWallet(wallet string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: wallet: %w", common.ErrValidation, err)
	}
	return pk, nil
}

// VerifyWalletSignature checks a base58 signature of msg by wallet.
func VerifyWalletSignature(wallet, msg, signature string) error {
	pk, err := ParseWallet(wallet)
	if err != nil {
		return err
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", common.ErrValidation, err)
	}
	if !sig.Verify(pk, []byte(msg)) {
		return common.ErrUnauthorized
	}
	return nil
}
