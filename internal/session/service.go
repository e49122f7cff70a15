// Package session はリクエストスコープのセッショントークンに紐づく呼び出し元Identityを管理する。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/repository"
)

// Service はセッションの発行・参照・破棄を提供する。
type Service struct {
	repo repository.SessionRepository
	ttl  time.Duration
}

// NewService はServiceを生成する。
func NewService(repo repository.SessionRepository, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl}
}

// Put はIdentityを保存し、新しいセッショントークンを返す。
func (s *Service) Put(ctx context.Context, identity *model.Identity) (string, error) {
	if !identity.Valid() {
		return "", model.NewInvalidInputError("Missing user data")
	}

	token := uuid.New().String()
	if err := s.repo.Save(ctx, token, identity, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("session created", slog.String("user_id", identity.UserID))
	return token, nil
}

// Get はトークンに紐づくIdentityを返す。
// トークンが空、または期限切れ・未登録の場合はUnauthenticatedエラーを返す。
func (s *Service) Get(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError()
	}

	identity, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if identity == nil {
		return nil, model.NewUnauthenticatedError()
	}
	return identity, nil
}

// Delete はセッションを破棄する。空トークンは何もしない。
func (s *Service) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
