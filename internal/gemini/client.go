// Package gemini はVertex AI上のGeminiモデルを呼び出すクライアントを提供する。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/hitoshi/signbridge/internal/metrics"
)

// ServiceName はメトリクス・エラーメッセージで使用するサービス名。
const ServiceName = "gemini"

// ErrEmptyResponse はモデルがテキストを返さなかったことを示す。
var ErrEmptyResponse = errors.New("gemini returned no text")

// Request は1回の生成リクエストの設定。
// ゼロ値の項目はモデルの既定値を使用する。
type Request struct {
	SystemInstruction string
	Prompt            string
	Temperature       float32
	TopP              float32
	TopK              int32
	MaxOutputTokens   int32
	JSON              bool // trueの場合 application/json で応答させる
}

// Client はGeminiモデルの呼び出しを行う。ゴルーチンセーフ。
type Client struct {
	base      *genai.Client
	modelName string
	metrics   metrics.MetricsCollector
}

// NewClient はVertex AIクライアントを生成する。
func NewClient(ctx context.Context, projectID, region, modelName string, mc metrics.MetricsCollector) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, errors.New("gemini: projectID and region cannot be empty")
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{base: base, modelName: modelName, metrics: mc}, nil
}

// Close は下位のクライアントを閉じる。
func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Generate はリクエストに従ってテキストを生成する。
// 候補にテキストが含まれない場合はErrEmptyResponseを返す。
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := c.base.GenerativeModel(c.modelName)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	model.GenerationConfig = generationConfig(req)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.metrics.RecordUpstream(ServiceName, metrics.OutcomeFailure, time.Since(start))
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	c.metrics.RecordUpstream(ServiceName, metrics.OutcomeSuccess, time.Since(start))

	text := ResponseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateJSON は温度0・JSON応答モードで生成する。
func (c *Client) GenerateJSON(ctx context.Context, systemInstruction, prompt string) (string, error) {
	return c.Generate(ctx, Request{
		SystemInstruction: systemInstruction,
		Prompt:            prompt,
		JSON:              true,
	})
}

// generationConfig はRequestをgenai.GenerationConfigに変換する。
func generationConfig(req Request) genai.GenerationConfig {
	var cfg genai.GenerationConfig
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.Temperature = genai.Ptr[float32](0)
	} else if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(req.TopP)
	}
	if req.TopK > 0 {
		cfg.TopK = genai.Ptr(req.TopK)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = genai.Ptr(req.MaxOutputTokens)
	}
	return cfg
}

// ResponseText は先頭候補のテキストパートを連結して返す。
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
