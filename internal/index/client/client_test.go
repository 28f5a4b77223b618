package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/health"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// fakeIndex speaks just enough of the index API: challenge/login with real
// signature checks, and a files endpoint behind the bearer token.
type fakeIndex struct {
	mu         sync.Mutex
	challenges map[string]string
	tokens     map[string]bool
	logins     int
	lastInsert models.NewUpload
	lastQuery  string
}

func newFakeIndex(t *testing.T) (*fakeIndex, *httptest.Server) {
	f := &fakeIndex{challenges: map[string]string{}, tokens: map[string]bool{}}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Wallet string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.challenges[req.Wallet] = "sign me " + req.Wallet
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"challenge": "sign me " + req.Wallet})
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Wallet, Signature string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		msg := f.challenges[req.Wallet]
		delete(f.challenges, req.Wallet)
		if err := auth.VerifyWalletSignature(req.Wallet, msg, req.Signature); err != nil || msg == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad signature"})
			return
		}
		f.logins++
		tok := fmt.Sprintf("tok-%d", f.logins)
		f.tokens[tok] = true
		writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": map[string]string{"id": "u1", "wallet": req.Wallet}})
	})
	mux.HandleFunc("POST /api/files", f.guard(func(w http.ResponseWriter, r *http.Request) {
		var in models.NewUpload
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.lastInsert = in
		writeJSON(w, http.StatusCreated, map[string]any{"file": models.UploadRecord{ID: "f1", Name: in.Name, StorageReceiptID: in.StorageReceiptID}})
	}))
	mux.HandleFunc("GET /api/files", f.guard(func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{"files": []models.UploadRecord{{ID: "f1"}, {ID: "f2"}}})
	}))
	mux.HandleFunc("GET /api/files/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
	}))
	mux.HandleFunc("GET /api/share", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "gone" {
			writeJSON(w, http.StatusGone, map[string]string{"error": "share link expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"share": models.ShareLink{ID: "s1"}, "file": models.UploadRecord{ID: "f1"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeIndex) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.tokens[tok]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		h(w, r)
	}
}

func (f *fakeIndex) revokeAll() {
	f.mu.Lock()
	f.tokens = map[string]bool{}
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newSigner(t *testing.T) *wallet.KeypairSigner {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.NewKeypairSigner(key, nil)
}

func TestInsertFileLogsInLazily(t *testing.T) {
	f, srv := newFakeIndex(t)
	signer := newSigner(t)
	c := New(srv.URL, signer, nil)

	rec, err := c.InsertFile(context.Background(), signer.PublicKey().String(), models.NewUpload{Name: "a.txt", StorageReceiptID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "f1", rec.ID)
	assert.Equal(t, "r1", rec.StorageReceiptID)
	assert.Equal(t, "a.txt", f.lastInsert.Name)
	assert.Equal(t, 1, f.logins)
}

func TestInsertFileRejectsOtherOwner(t *testing.T) {
	_, srv := newFakeIndex(t)
	c := New(srv.URL, newSigner(t), nil)

	_, err := c.InsertFile(context.Background(), "someone-else", models.NewUpload{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExpiredTokenTriggersOneRelogin(t *testing.T) {
	f, srv := newFakeIndex(t)
	c := New(srv.URL, newSigner(t), nil)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))
	f.revokeAll()

	files, err := c.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, 2, f.logins)
	assert.Equal(t, "limit=10&offset=5", f.lastQuery)
}

type wrongSigner struct{ *wallet.KeypairSigner }

func (w wrongSigner) SignMessage(ctx context.Context, _ []byte) ([]byte, error) {
	return w.KeypairSigner.SignMessage(ctx, []byte("something else"))
}

func TestLoginWithBadSignature(t *testing.T) {
	_, srv := newFakeIndex(t)
	c := New(srv.URL, wrongSigner{newSigner(t)}, nil)

	err := c.Login(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestStatusMapping(t *testing.T) {
	_, srv := newFakeIndex(t)
	c := New(srv.URL, newSigner(t), nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = c.ResolveShare(ctx, "gone", "")
	assert.ErrorIs(t, err, common.ErrShareExpired)

	out, err := c.ResolveShare(ctx, "k", "pw")
	require.NoError(t, err)
	assert.Equal(t, "f1", out.File.ID)
}

func TestUnreachableIndexIsNetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1", newSigner(t), &http.Client{Timeout: time.Second})
	err := c.Login(context.Background())
	assert.ErrorIs(t, err, common.ErrNetwork)
}

type upDB struct{}

func (upDB) PingContext(context.Context) error { return nil }

func TestPing(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	hs := health.NewServer("", upDB{}, time.Second, logging.Nop())
	srv := grpc.NewServer()
	hs.Register(srv)
	hs.Check(context.Background())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) })
	assert.NoError(t, Ping(context.Background(), "passthrough:///bufnet", dialer))
}
