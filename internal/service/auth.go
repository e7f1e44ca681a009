package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
)

// LoginRecorder is told the outcome of every login attempt.
type LoginRecorder interface {
	Login(ok bool)
}

// AuthService issues, resolves and revokes member session tokens.
type AuthService struct {
	choirs   repository.ChoirRepository
	newToken func() (string, error)
	rec      LoginRecorder
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. rec may be nil.
func NewAuthService(choirs repository.ChoirRepository, rec LoginRecorder, logger *slog.Logger) *AuthService {
	return &AuthService{
		choirs:   choirs,
		newToken: auth.NewToken,
		rec:      rec,
		logger:   logger,
	}
}

func (s *AuthService) record(ok bool) {
	if s.rec != nil {
		s.rec.Login(ok)
	}
}

// Login exchanges a login code for a fresh session token.
//
// The code must match exactly (case-sensitive, no trimming). A missing code
// and a wrong code fail identically with InvalidCredentials so a caller
// cannot tell which codes exist. On success the new token replaces any
// previous one for that member.
func (s *AuthService) Login(ctx context.Context, code string) (*model.Choir, string, error) {
	if code == "" {
		s.record(false)
		return nil, "", apperror.InvalidCredentials()
	}

	token, err := s.newToken()
	if err != nil {
		return nil, "", fmt.Errorf("generating token: %w", err)
	}

	choir, err := s.choirs.RotateToken(ctx, code, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.record(false)
			return nil, "", apperror.InvalidCredentials()
		}
		return nil, "", fmt.Errorf("rotating token: %w", err)
	}

	s.record(true)
	s.logger.Info("member logged in", slog.String("choir", choir.UUID))
	return choir, token, nil
}

// ResolveToken returns the member holding token, or Unauthorized.
// It satisfies auth.TokenResolver.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*model.Choir, error) {
	choir, err := s.choirs.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	return choir, nil
}

// Validate is ResolveToken for the validate-token endpoint: an empty token is
// Unauthenticated rather than Unauthorized.
func (s *AuthService) Validate(ctx context.Context, token string) (*model.Choir, error) {
	if token == "" {
		return nil, apperror.Unauthenticated()
	}
	return s.ResolveToken(ctx, token)
}

// Logout revokes token if some member holds it. Revoking an unknown or empty
// token is a successful no-op, so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	cleared, err := s.choirs.ClearToken(ctx, token)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	if cleared {
		s.logger.Info("member logged out")
	}
	return nil
}
