package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var ErrInvalidSignature = errors.New("invalid signature")

type AuthService struct {
	challenges auth.ChallengeStore
	cfg        *config.Config
	log        *zap.Logger
}

func NewAuthService(challenges auth.ChallengeStore, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{challenges: challenges, cfg: cfg, log: log}
}

// Challenge issues a fresh nonce for addr and returns the message to sign.
// A new challenge replaces any pending one.
func (s *AuthService) Challenge(ctx context.Context, addr common.Address) (string, time.Time, error) {
	nonce, err := auth.NewNonce()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate nonce: %w", err)
	}
	if err := s.challenges.Put(ctx, addr, nonce, s.cfg.AuthChallengeTTL); err != nil {
		return "", time.Time{}, err
	}
	return auth.LoginMessage(addr, nonce), time.Now().Add(s.cfg.AuthChallengeTTL), nil
}

// Login consumes the pending challenge for addr, checks the signature over
// it and returns a JWT.
func (s *AuthService) Login(ctx context.Context, addr common.Address, sig []byte) (string, error) {
	nonce, err := s.challenges.Take(ctx, addr)
	if err != nil {
		return "", err
	}
	if err := auth.VerifyPersonalSign(addr, auth.LoginMessage(addr, nonce), sig); err != nil {
		s.log.Debug("login signature rejected", zap.String("address", addr.Hex()), zap.Error(err))
		return "", ErrInvalidSignature
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, addr, s.cfg.JWTExpiration)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	s.log.Info("user logged in", zap.String("address", addr.Hex()))
	return token, nil
}
