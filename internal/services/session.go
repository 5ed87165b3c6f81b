package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidtube/vidtube/internal/config"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/cache"
	"github.com/vidtube/vidtube/pkg/logger"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionService issues access/refresh token pairs. Only the latest refresh
// token per user is kept in Redis, so each one can be used once.
type SessionService struct {
	cache  Cache
	cfg    *config.JWTConfig
	logger *logger.Logger
}

func NewSessionService(cache Cache, cfg *config.JWTConfig, logger *logger.Logger) *SessionService {
	return &SessionService{cache: cache, cfg: cfg, logger: logger}
}

func (s *SessionService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issue(ctx, user.ID.Hex(), user.Username)
}

func (s *SessionService) issue(ctx context.Context, userID, username string) (*TokenPair, error) {
	access, err := middleware.GenerateToken(userID, username, s.cfg.Secret, s.cfg.ExpireTime)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := middleware.GenerateToken(userID, username, s.cfg.RefreshSecret, s.cfg.RefreshExpireTime)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.cache.Set(ctx, cache.SessionKey(userID), refresh, s.cfg.RefreshExpireTime); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates a refresh token. A token that verifies but is no longer
// the stored one has been used or revoked.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthorized("refresh token is required")
	}

	claims, err := middleware.ParseToken(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, "invalid refresh token", err)
	}

	// 旧 token 原子地作废，并发刷新只有一个成功
	consumed, err := s.cache.CompareAndDelete(ctx, cache.SessionKey(claims.UserID), refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !consumed {
		return nil, apperror.Unauthorized("refresh token is expired or used")
	}

	pair, err := s.issue(ctx, claims.UserID, claims.Username)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", claims.UserID).Info("Session refreshed successfully")
	return pair, nil
}

func (s *SessionService) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if err := s.cache.Delete(ctx, cache.SessionKey(userID)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
