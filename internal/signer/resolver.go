// Package signer は契約本文から署名者リストを導出する。
//
// 抽出戦略（AI・セクション・パターン）は差し替え可能で、どの戦略の結果も
// 同じ正規化・重複排除・オーナー保証の処理を通る。
package signer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/signbridge/internal/metrics"
	"github.com/hitoshi/signbridge/internal/model"
)

// Resolver は署名者リストを導出する。
type Resolver struct {
	extractor NameExtractor
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(extractor NameExtractor, mc metrics.MetricsCollector, logger *slog.Logger) *Resolver {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{extractor: extractor, metrics: mc, logger: logger}
}

// Resolve は本文とセッションのオーナー情報から、正規化名で一意な署名者リストを返す。
//
// 候補は出現順に保持され、オーナーと一致する候補にのみオーナーのメールアドレスを設定する。
// オーナーが候補に含まれない場合は末尾に追加する。
// 抽出の失敗は呼び出し元に返さず、候補なしとして扱う。
func (r *Resolver) Resolve(ctx context.Context, text string, owner *model.Identity) ([]model.Signer, error) {
	if owner == nil || strings.TrimSpace(owner.Name) == "" || strings.TrimSpace(owner.Email) == "" {
		return nil, model.NewUnauthenticatedError()
	}

	candidates, err := r.extractor.ExtractNames(ctx, text)
	if err != nil {
		r.metrics.RecordExtractionFallback(r.extractor.Strategy())
		r.logger.WarnContext(ctx, "signer extraction failed, falling back to owner only",
			slog.String("strategy", r.extractor.Strategy()),
			slog.String("user_id", owner.UserID),
			slog.String("error", err.Error()),
		)
		candidates = nil
	}

	return BuildSigners(candidates, owner.Name, owner.Email), nil
}

// BuildSigners は候補名に正規化・重複排除・オーナー保証を適用する。
func BuildSigners(candidates []string, ownerName, ownerEmail string) []model.Signer {
	ownerKey := model.NormalizeName(ownerName)
	seen := make(map[string]bool, len(candidates))
	signers := make([]model.Signer, 0, len(candidates)+1)
	ownerFound := false

	for _, c := range candidates {
		key := model.NormalizeName(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		s := model.Signer{Name: strings.TrimSpace(c)}
		if key == ownerKey {
			s.Email = ownerEmail
			ownerFound = true
		}
		signers = append(signers, s)
	}

	if !ownerFound {
		signers = append(signers, model.Signer{Name: strings.TrimSpace(ownerName), Email: ownerEmail})
	}
	return signers
}
