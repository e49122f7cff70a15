// Package profile はWeSignatureユーザーのプロフィール管理とナビゲーションリンクの生成を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/repository"
)

// URLValidator は外部URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// NavLinks はダッシュボードの各画面へのリンク。
type NavLinks struct {
	Dashboard string `json:"dashboard"`
	Documents string `json:"documents"`
	Templates string `json:"templates"`
	Contracts string `json:"contracts"`
	Profile   string `json:"profile"`
	AI        string `json:"ai"`
}

// Service はプロフィールのビジネスロジックを提供する。
type Service struct {
	repo            repository.UserProfileRepository
	validator       URLValidator
	providerBaseURL string
	frontendURL     string
	logger          *slog.Logger
	now             func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.UserProfileRepository, validator URLValidator, providerBaseURL, frontendURL string, logger *slog.Logger) *Service {
	return &Service{
		repo:            repo,
		validator:       validator,
		providerBaseURL: strings.TrimRight(providerBaseURL, "/"),
		frontendURL:     frontendURL,
		logger:          logger,
		now:             time.Now,
	}
}

// EnsureProfile はプロフィールが存在しない場合のみ作成する。
// メールアドレスは小文字化し、安全でないURL項目は警告ログを出して破棄する。
func (s *Service) EnsureProfile(ctx context.Context, p *model.UserProfile) error {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return model.NewInvalidInputError("Missing user data")
	}

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.ParentURL = s.sanitizeURL(ctx, p.UserID, "parent_url", p.ParentURL)
	p.ProfileImage = s.sanitizeURL(ctx, p.UserID, "profile_image", p.ProfileImage)

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	created, err := s.repo.CreateIfAbsent(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to ensure user profile: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "user profile created", slog.String("user_id", p.UserID))
	}
	return nil
}

func (s *Service) sanitizeURL(ctx context.Context, userID, field, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if err := s.validator.ValidateURL(raw); err != nil {
		s.logger.WarnContext(ctx, "dropping unsafe profile url",
			slog.String("user_id", userID),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return raw
}

// Get は指定user_idのプロフィールを返す。見つからない場合はNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("User profile not found")
	}
	return p, nil
}

// Links はナビゲーションリンクを生成する。
// プロフィールにparent_urlがあればそれを、なければWeSignatureのベースURLを起点とする。
func (s *Service) Links(p *model.UserProfile) NavLinks {
	base := s.providerBaseURL
	if p != nil && p.ParentURL != "" {
		base = strings.TrimRight(p.ParentURL, "/")
	}
	return NavLinks{
		Dashboard: base + "/dashboard",
		Documents: base + "/documents",
		Templates: base + "/templates",
		Contracts: base + "/contracts",
		Profile:   base + "/profile",
		AI:        s.frontendURL,
	}
}
