// Package drafting はGeminiを使って契約書のHTMLを生成・編集する。
package drafting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/signbridge/internal/gemini"
	"github.com/hitoshi/signbridge/internal/model"
)

// 生成パラメータ
const (
	temperature       float32 = 0.3
	topP              float32 = 0.8
	topK              int32   = 40
	contractMaxTokens int32   = 8192
	summaryMaxTokens  int32   = 1024

	DefaultContractType = "general"
	MinParties          = 2
	MaxParties          = 10

	summaryFallback = "Summary not available"
)

var (
	firstNames = []string{"John", "Emily", "Michael", "Sophia", "David", "Olivia"}
	lastNames  = []string{"Smith", "Johnson", "Brown", "Williams", "Jones", "Davis"}

	// 新規作成を強制するプロンプト中のキーワード（小文字）
	forceNewPhrases = []string{"force new", "create full contract"}
)

// Generator はテキスト生成AIのクライアント。
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Sanitizer は生成されたHTMLから危険な要素を除去する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// PartyCount は当事者数。JSONでは数値と数値文字列の両方を受け付ける。
// 解釈できない値は0（既定値）として扱う。
type PartyCount int

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (c *PartyCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f < 0 {
		*c = 0
		return nil
	}
	*c = PartyCount(min(f, MaxParties))
	return nil
}

// Request は契約書生成のリクエスト。
type Request struct {
	Prompt       string     `json:"prompt"`
	ExistingText string     `json:"existingText,omitempty"`
	ContractType string     `json:"contractType,omitempty"`
	Count        PartyCount `json:"count,omitempty"`
}

// Metadata は生成結果の付帯情報。
type Metadata struct {
	ContractType string    `json:"contractType"`
	GeneratedAt  time.Time `json:"generatedAt"`
	IsEdit       bool      `json:"isEdit"`
	Parties      []string  `json:"parties,omitempty"`
}

// Result は契約書生成の結果。
type Result struct {
	Response string   `json:"response"`
	Summary  string   `json:"summary"`
	Metadata Metadata `json:"metadata"`
}

// Service は契約書の生成・編集を行う。
type Service struct {
	gen       Generator // nilの場合は生成機能が無効
	sanitizer Sanitizer
	logger    *slog.Logger
	now       func() time.Time
	intN      func(n int) int
}

// NewService はServiceを生成する。genがnilの場合、Draftは常にUpstreamUnavailableを返す。
func NewService(gen Generator, sanitizer Sanitizer, logger *slog.Logger) *Service {
	return &Service{
		gen:       gen,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
		intN:      rand.IntN,
	}
}

// Draft はプロンプトから契約書を新規作成するか、既存の契約書を編集する。
// 既存本文があり、プロンプトが新規作成を強制しない場合は編集モードとなる。
func (s *Service) Draft(ctx context.Context, req Request) (*Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, model.NewInvalidInputError("Prompt is required")
	}
	if s.gen == nil {
		return nil, model.NewUpstreamUnavailableError(gemini.ServiceName, errors.New("contract drafting is not configured"))
	}

	contractType := strings.TrimSpace(req.ContractType)
	if contractType == "" {
		contractType = DefaultContractType
	}

	meta := Metadata{ContractType: contractType}
	var instruction string
	if strings.TrimSpace(req.ExistingText) != "" && !forcesNew(prompt) {
		// 編集モードでも契約種別は"general"に固定せず、リクエストの値をそのまま返す
		meta.IsEdit = true
		instruction = editInstruction(req.ExistingText, prompt)
	} else {
		meta.Parties = s.partyNames(ClampParties(int(req.Count)))
		instruction = newContractInstruction(prompt, contractType, meta.Parties)
	}

	contractHTML, err := s.generateContract(ctx, instruction)
	if err != nil {
		return nil, err
	}
	summary := s.summarize(ctx, contractHTML)
	meta.GeneratedAt = s.now().UTC()

	s.logger.InfoContext(ctx, "contract drafted",
		slog.String("contract_type", contractType),
		slog.Bool("is_edit", meta.IsEdit),
		slog.Int("parties", len(meta.Parties)),
		slog.Int("html_bytes", len(contractHTML)),
	)
	return &Result{Response: contractHTML, Summary: summary, Metadata: meta}, nil
}

func (s *Service) generateContract(ctx context.Context, instruction string) (string, error) {
	raw, err := s.gen.Generate(ctx, gemini.Request{
		Prompt:          instruction,
		Temperature:     temperature,
		TopP:            topP,
		TopK:            topK,
		MaxOutputTokens: contractMaxTokens,
	})
	if errors.Is(err, gemini.ErrEmptyResponse) || (err == nil && strings.TrimSpace(raw) == "") {
		return "", model.NewUpstreamError("AI did not return any content")
	}
	if err != nil {
		return "", model.NewUpstreamUnavailableError(gemini.ServiceName, err)
	}

	cleaned := cleanHTML(raw)
	if s.sanitizer != nil {
		cleaned = s.sanitizer.Sanitize(cleaned)
	}
	return cleaned, nil
}

// summarize は要約を生成する。失敗時は固定文言を返す。
func (s *Service) summarize(ctx context.Context, contractHTML string) string {
	summary, err := s.gen.Generate(ctx, gemini.Request{
		Prompt:          summaryInstruction(contractHTML),
		Temperature:     temperature,
		TopP:            topP,
		TopK:            topK,
		MaxOutputTokens: summaryMaxTokens,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "summary generation failed",
			slog.String("error", err.Error()),
		)
		return summaryFallback
	}
	if summary = strings.TrimSpace(summary); summary == "" {
		return summaryFallback
	}
	return summary
}

// partyNames は重複のないランダムな当事者名をn件返す。
// nは名前の組み合わせ数以下であること。
func (s *Service) partyNames(n int) []string {
	seen := make(map[string]bool, n)
	names := make([]string, 0, n)
	for len(names) < n {
		name := fmt.Sprintf("%s %s", firstNames[s.intN(len(firstNames))], lastNames[s.intN(len(lastNames))])
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ClampParties は当事者数を[MinParties, MaxParties]に収める。0以下は既定値の2とする。
func ClampParties(n int) int {
	switch {
	case n < MinParties:
		return MinParties
	case n > MaxParties:
		return MaxParties
	default:
		return n
	}
}

func forcesNew(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, p := range forceNewPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
