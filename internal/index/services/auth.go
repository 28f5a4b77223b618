package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/repositories/repomanager"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
)

// Challenge is the text a wallet signs to log in.
type Challenge struct {
	Message   string    `json:"challenge"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	challenges       auth.ChallengeStore
	jwtSecret        []byte
	tokenValidity    time.Duration
	challengeTimeout time.Duration
	log              logging.Logger
	now              func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, challenges auth.ChallengeStore,
	secret string, tokenValidity, challengeTimeout time.Duration, log logging.Logger) *AuthService {
	return &AuthService{
		db:               db,
		repomanager:      m,
		challenges:       challenges,
		jwtSecret:        []byte(secret),
		tokenValidity:    tokenValidity,
		challengeTimeout: challengeTimeout,
		log:              log.With("module", "auth_service"),
		now:              time.Now,
	}
}

// Challenge issues a fresh one-time challenge for wallet, replacing any
// earlier one.
func (s *AuthService) Challenge(ctx context.Context, wallet string) (*Challenge, error) {
	wallet = strings.TrimSpace(wallet)
	if _, err := auth.ParseWallet(wallet); err != nil {
		return nil, err
	}

	nonce, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}
	issued := s.now().UTC()
	msg := fmt.Sprintf("Sign in to %s\nWallet: %s\nNonce: %s\nIssued: %s",
		common.DefaultAppName, wallet, nonce, issued.Format(time.RFC3339))

	if err := s.challenges.Put(ctx, wallet, msg); err != nil {
		return nil, err
	}
	return &Challenge{Message: msg, ExpiresAt: issued.Add(s.challengeTimeout)}, nil
}

// Login checks the wallet's signature of its outstanding challenge and
// returns an access token. The challenge is consumed whatever the outcome.
func (s *AuthService) Login(ctx context.Context, wallet, signature string) (string, *models.User, error) {
	wallet = strings.TrimSpace(wallet)
	msg, err := s.challenges.Take(ctx, wallet)
	if err != nil {
		return "", nil, common.ErrUnauthorized
	}

	if err := auth.VerifyWalletSignature(wallet, msg, signature); err != nil {
		s.log.Warn(ctx, "login signature rejected", "wallet", wallet, "error", err)
		return "", nil, err
	}

	user, err := s.repomanager.Users(s.db).Upsert(ctx, wallet)
	if err != nil {
		return "", nil, fmt.Errorf("error upserting user: %w", err)
	}

	token, err := auth.GenerateToken(auth.Identity{UserID: user.ID, Wallet: user.Wallet}, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	s.log.Info(ctx, "wallet logged in", "user", user.ID)
	return token, user, nil
}

// Authenticate resolves a bearer token.
func (s *AuthService) Authenticate(token string) (auth.Identity, error) {
	return auth.ParseToken(token, s.jwtSecret)
}
