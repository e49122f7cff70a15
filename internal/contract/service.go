// Package contract はユーザーの契約レコードの一覧取得を提供する。
package contract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/repository"
)

// ページネーションの既定値と上限
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Service は契約一覧のビジネスロジックを提供する。
type Service struct {
	repo        repository.ContractRepository
	frontendURL string
}

// NewService はServiceを生成する。
func NewService(repo repository.ContractRepository, frontendURL string) *Service {
	return &Service{repo: repo, frontendURL: frontendURL}
}

// ParsePagination はクエリ文字列のpage・limitを解釈する。
// 数値でない値や1未満の値は既定値、limitの上限超過はMaxLimitに丸める。
func ParsePagination(pageStr, limitStr string) (page, limit int) {
	page = parsePositive(pageStr, DefaultPage)
	limit = parsePositive(limitStr, DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func parsePositive(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// List はユーザーの契約をcreatedAt降順でページ単位に返す。
// 該当0件は空のページとして返す（NotFoundにはしない）。
func (s *Service) List(ctx context.Context, userID string, page, limit int) (*model.ContractPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewInvalidInputError("Missing user id")
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	total, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count contracts: %w", err)
	}

	contracts := []model.Contract{}
	skip := int64(page-1) * int64(limit)
	if skip < total {
		contracts, err = s.repo.ListByUserID(ctx, userID, skip, int64(limit))
		if err != nil {
			return nil, fmt.Errorf("failed to list contracts: %w", err)
		}
		if contracts == nil {
			contracts = []model.Contract{}
		}
	}

	return &model.ContractPage{
		Data:           contracts,
		TotalDocuments: total,
		CurrentPage:    page,
		TotalPages:     TotalPages(total, limit),
	}, nil
}

// TotalPages は総件数とページサイズから総ページ数を返す。
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// RedirectLink はフロントエンドの契約一覧ページへのリンクを返す。
func (s *Service) RedirectLink(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", model.NewInvalidInputError("Missing user id")
	}
	return s.frontendURL + userID, nil
}
