package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coffee-market/internal/domain"
	"coffee-market/internal/metrics"
	"coffee-market/internal/repository"
	"coffee-market/internal/signature"
	"coffee-market/internal/token"

	"go.uber.org/zap"
)

// maxNonceDraws bounds how often Verify asks the generator for a nonce that
// differs from the one being consumed.
const maxNonceDraws = 16

// IssuedToken is the bearer credential returned by a successful verification.
type IssuedToken struct {
	Token     string    `json:"token"`
	Wallet    string    `json:"wallet_address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs and validates bearer credentials
type TokenIssuer interface {
	Issue(wallet string) (string, time.Time, error)
	Validate(tokenString string) (*token.Claims, error)
}

// AuthService defines the wallet challenge-response flow
type AuthService interface {
	IssueNonce(ctx context.Context, wallet string) (string, error)
	Verify(ctx context.Context, wallet, signatureHex string) (*IssuedToken, error)
	Authenticate(tokenString string) (string, error)
}

type authService struct {
	users     repository.UserRepository
	uow       repository.UnitOfWork
	recoverer signature.Recoverer
	issuer    TokenIssuer
	newNonce  NonceGenerator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	users repository.UserRepository,
	uow repository.UnitOfWork,
	recoverer signature.Recoverer,
	issuer TokenIssuer,
	newNonce NonceGenerator,
	m *metrics.Metrics,
	logger *zap.Logger,
) AuthService {
	if newNonce == nil {
		newNonce = NewNonceGenerator(DefaultNonceDigits)
	}
	return &authService{
		users:     users,
		uow:       uow,
		recoverer: recoverer,
		issuer:    issuer,
		newNonce:  newNonce,
		metrics:   m,
		logger:    logger,
	}
}

// IssueNonce returns the wallet's current nonce, creating the user on first contact.
// The nonce is unchanged until a verification consumes it.
func (s *authService) IssueNonce(ctx context.Context, wallet string) (string, error) {
	wallet = domain.NormalizeWallet(wallet)
	if wallet == "" {
		return "", ErrInvalidWallet
	}

	user, err := s.users.FindByWallet(ctx, wallet)
	if err == nil {
		s.metrics.ObserveNonce(false)
		return user.Nonce, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return "", classify("find user", err)
	}

	user, err = s.users.Create(ctx, wallet, s.newNonce())
	if errors.Is(err, repository.ErrUserAlreadyExists) {
		// another request registered the wallet first; its nonce wins
		user, err = s.users.FindByWallet(ctx, wallet)
		if err != nil {
			return "", classify("find user", err)
		}
		s.metrics.ObserveNonce(false)
		return user.Nonce, nil
	}
	if err != nil {
		return "", classify("create user", err)
	}

	s.metrics.ObserveNonce(true)
	s.logger.Info("Registered wallet", zap.String("wallet", wallet))

	return user.Nonce, nil
}

// Verify checks a signature over the current challenge, rotates the nonce and
// issues a bearer credential. Check and rotation share one unit of work.
func (s *authService) Verify(ctx context.Context, wallet, signatureHex string) (*IssuedToken, error) {
	wallet = domain.NormalizeWallet(wallet)
	if wallet == "" {
		s.metrics.ObserveVerification(metrics.OutcomeRejected)
		return nil, ErrInvalidWallet
	}

	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.FindByWalletForUpdate(ctx, wallet)
		if err != nil {
			return err
		}

		sig, err := signature.ParseSignature(signatureHex)
		if err != nil {
			return err
		}

		signer, err := s.recoverer.RecoverSigner(ChallengeMessage(user.Nonce), sig)
		if err != nil {
			return err
		}

		if !strings.EqualFold(signer, wallet) {
			return ErrSignatureMismatch
		}

		next, err := s.rotateNonce(user.Nonce)
		if err != nil {
			return err
		}

		return repos.Users.UpdateNonce(ctx, wallet, user.Nonce, next)
	})
	if err != nil {
		err = classify("verify signature", err)
		s.observeVerifyFailure(wallet, err)
		return nil, err
	}

	tokenString, expiresAt, err := s.issuer.Issue(wallet)
	if err != nil {
		s.metrics.ObserveVerification(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.ObserveVerification(metrics.OutcomeSuccess)
	s.logger.Info("Wallet authenticated", zap.String("wallet", wallet))

	return &IssuedToken{
		Token:     tokenString,
		Wallet:    wallet,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate resolves a bearer credential to its wallet address
func (s *authService) Authenticate(tokenString string) (string, error) {
	claims, err := s.issuer.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Wallet, nil
}

// rotateNonce draws a nonce different from current. The row stays locked
// while it runs, so the number of draws is bounded.
func (s *authService) rotateNonce(current string) (string, error) {
	for i := 0; i < maxNonceDraws; i++ {
		if next := s.newNonce(); next != current {
			return next, nil
		}
	}
	return "", fmt.Errorf("failed to draw a fresh nonce after %d attempts", maxNonceDraws)
}

func (s *authService) observeVerifyFailure(wallet string, err error) {
	switch {
	case errors.Is(err, ErrPersistence):
		s.metrics.ObserveVerification(metrics.OutcomeError)
		s.logger.Error("Verification failed", zap.String("wallet", wallet), zap.Error(err))
	case errors.Is(err, ErrNonceConflict):
		s.metrics.ObserveVerification(metrics.OutcomeConflict)
		s.logger.Warn("Nonce consumed concurrently", zap.String("wallet", wallet))
	default:
		s.metrics.ObserveVerification(metrics.OutcomeRejected)
		s.logger.Debug("Verification rejected", zap.String("wallet", wallet), zap.Error(err))
	}
}
