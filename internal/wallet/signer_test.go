package wallet

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApprover struct {
	ok    bool
	err   error
	calls int
}

func (s *stubApprover) Approve(context.Context, Intent) (bool, error) {
	s.calls++
	return s.ok, s.err
}

func newTransfer(t *testing.T, from solana.PublicKey) *solana.Transaction {
	t.Helper()
	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, from, to).Build()},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(from),
	)
	require.NoError(t, err)
	return tx
}

func TestKeypairSigner_SignMessage(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	s := NewKeypairSigner(key, &stubApprover{})

	msg := []byte("challenge")
	sig, err := s.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	pub := s.PublicKey()
	assert.True(t, ed25519.Verify(pub[:], msg, sig))
}

func TestKeypairSigner_SignTransaction(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	approver := &stubApprover{ok: true}
	s := NewKeypairSigner(key, approver)

	tx := newTransfer(t, s.PublicKey())
	require.NoError(t, s.SignTransaction(context.Background(), tx, Intent{}))

	assert.Equal(t, 1, approver.calls)
	require.Len(t, tx.Signatures, 1)
	require.NoError(t, tx.VerifySignatures())
}

func TestKeypairSigner_Declined(t *testing.T) {
	tests := []struct {
		name     string
		approver *stubApprover
	}{
		{"declined", &stubApprover{ok: false}},
		{"approver error", &stubApprover{err: errors.New("window closed")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewKeypairSigner(solana.NewWallet().PrivateKey, tt.approver)
			tx := newTransfer(t, s.PublicKey())

			err := s.SignTransaction(context.Background(), tx, Intent{})
			assert.ErrorIs(t, err, common.ErrUserRejected)
			assert.Empty(t, tx.Signatures)
		})
	}
}

func TestLoadKeypair(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	s, err := LoadKeypair(path, AutoApprover{})
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), s.PublicKey())

	_, err = LoadKeypair(filepath.Join(t.TempDir(), "missing.json"), AutoApprover{})
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	intent := Intent{
		From:     solana.NewWallet().PublicKey(),
		To:       solana.NewWallet().PublicKey(),
		Lamports: 1_100,
		Memo:     "Helix: Fund Irys for permanent storage",
	}

	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(bufio.NewReader(strings.NewReader(tt.in)), &out, intent)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Contains(t, out.String(), "0.0000011 SOL")
		assert.Contains(t, out.String(), intent.Memo)
	}
}

func TestTerminalApprover_NonTTYDeclines(t *testing.T) {
	old := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = old })

	a := NewTerminalApprover(os.Stdin, &bytes.Buffer{})
	ok, err := a.Approve(context.Background(), Intent{})
	require.NoError(t, err)
	assert.False(t, ok)
}
