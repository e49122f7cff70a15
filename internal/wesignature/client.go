// Package wesignature はWeSignature（電子署名SaaS）APIのクライアントを提供する。
// 署名依頼の送信、ファイル保存、テンプレート保存の3つのエンドポイントを扱う。
package wesignature

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/signbridge/internal/metrics"
	"github.com/hitoshi/signbridge/internal/model"
)

const (
	// ServiceName はメトリクス・エラーメッセージで使用するサービス名。
	ServiceName = "WeSignature"

	sendDocumentPath = "/apihandler/senddocumentapi_upload"
	uploadFilePath   = "/apihandler/uploadfileapi"
	saveTemplatePath = "/apihandler/savetemplateapi"
	editPathPrefix   = "/document/edit/"

	mailSubject = "Please Sign the document."
	mailMessage = "Kindly sign document immediately."

	// maxResponseSize はレスポンスボディの読み取り上限（1MiB）。
	maxResponseSize = 1 << 20
)

// 応答から識別子・URLを探すキー（優先順）
var (
	guidKeys = []string{"document_guid", "guid", "document_id"}
	urlKeys  = []string{"url", "redirect_url", "edit_url"}
)

// Document は送信するファイル。
type Document struct {
	Filename string
	Content  []byte
}

// uploadDocument はWeSignatureのuploaddocument要素。
type uploadDocument struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// sendDocumentRequest は署名依頼APIのリクエストボディ。
type sendDocumentRequest struct {
	UserID               string           `json:"user_id"`
	APIKey               string           `json:"api_key"`
	SignType             int              `json:"sign_type"`
	UploadDocument       []uploadDocument `json:"uploaddocument"`
	IsForEmbeddedSigning int              `json:"is_for_embedded_signing"`
	Signers              []model.Signer   `json:"signers"`
	MailSubject          string           `json:"mail_subject"`
	MailMessage          string           `json:"mail_message"`
}

// fileRequest はファイル保存・テンプレート保存APIのリクエストボディ。
type fileRequest struct {
	UserID         string           `json:"user_id"`
	APIKey         string           `json:"api_key"`
	UploadDocument []uploadDocument `json:"uploaddocument"`
}

// Client はWeSignature APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
}

// NewClient はClientを生成する。
// httpClientには本番ではSSRFガード付きクライアントを渡す。
func NewClient(httpClient *http.Client, baseURL string, mc metrics.MetricsCollector, logger *slog.Logger) *Client {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    mc,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SendDocument はファイルと署名者リストを署名依頼として送信し、編集URLを返す。
func (c *Client) SendDocument(ctx context.Context, identity *model.Identity, doc Document, signers []model.Signer) (string, error) {
	if err := validate(identity, doc); err != nil {
		return "", err
	}
	if len(signers) == 0 {
		return "", model.NewInvalidInputError("At least one signer is required")
	}

	body := sendDocumentRequest{
		UserID:               identity.UserID,
		APIKey:               identity.APIKey,
		SignType:             0,
		UploadDocument:       []uploadDocument{encode(doc)},
		IsForEmbeddedSigning: 0,
		Signers:              signers,
		MailSubject:          mailSubject,
		MailMessage:          mailMessage,
	}

	result, err := c.post(ctx, sendDocumentPath, body)
	if err != nil {
		return "", err
	}

	guid, ok := lookup(result, guidKeys)
	if !ok {
		c.logger.ErrorContext(ctx, "WeSignatureの応答にドキュメントIDが含まれていません",
			slog.String("user_id", identity.UserID),
			slog.String("provider_message", providerMessage(result)),
		)
		return "", rejection(result, "WeSignature response did not include a document id")
	}

	return c.baseURL + editPathPrefix + guid, nil
}

// UploadFile はファイルをWeFileに保存し、WeSignatureが発行したURLを返す。
func (c *Client) UploadFile(ctx context.Context, identity *model.Identity, doc Document) (string, error) {
	return c.sendFile(ctx, uploadFilePath, identity, doc)
}

// SaveTemplate はファイルをテンプレートとして保存し、WeSignatureが発行したURLを返す。
func (c *Client) SaveTemplate(ctx context.Context, identity *model.Identity, doc Document) (string, error) {
	return c.sendFile(ctx, saveTemplatePath, identity, doc)
}

func (c *Client) sendFile(ctx context.Context, path string, identity *model.Identity, doc Document) (string, error) {
	if err := validate(identity, doc); err != nil {
		return "", err
	}

	result, err := c.post(ctx, path, fileRequest{
		UserID:         identity.UserID,
		APIKey:         identity.APIKey,
		UploadDocument: []uploadDocument{encode(doc)},
	})
	if err != nil {
		return "", err
	}

	u, ok := lookup(result, urlKeys)
	if !ok {
		c.logger.ErrorContext(ctx, "WeSignatureの応答にURLが含まれていません",
			slog.String("path", path),
			slog.String("user_id", identity.UserID),
			slog.String("provider_message", providerMessage(result)),
		)
		return "", rejection(result, "WeSignature response did not include a url")
	}
	return u, nil
}

// post はJSONボディをPOSTし、応答をmapとしてデコードする。
// 通信失敗・非2xxはUpstreamUnavailable、JSON不正はUpstreamErrorとする。
func (c *Client) post(ctx context.Context, path string, body any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SignBridge/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(ServiceName, metrics.OutcomeFailure, time.Since(start))
		c.logger.ErrorContext(ctx, "WeSignature APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError(ServiceName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.RecordUpstream(ServiceName, metrics.OutcomeFailure, time.Since(start))
		return nil, model.NewUpstreamUnavailableError(ServiceName, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordUpstream(ServiceName, metrics.OutcomeFailure, time.Since(start))
		c.logger.ErrorContext(ctx, "WeSignature APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUpstreamUnavailableError(ServiceName, fmt.Errorf("WeSignature APIがステータス %d を返しました", resp.StatusCode))
	}
	c.metrics.RecordUpstream(ServiceName, metrics.OutcomeSuccess, time.Since(start))

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "WeSignature APIのレスポンスのパースに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, &model.APIError{
			Kind:    model.ErrKindUpstreamError,
			Message: "WeSignature returned an invalid response",
			Err:     err,
		}
	}
	return result, nil
}

func validate(identity *model.Identity, doc Document) error {
	if identity == nil || identity.UserID == "" || identity.APIKey == "" {
		return model.NewInvalidInputError("Missing user credentials")
	}
	if len(doc.Content) == 0 {
		return model.NewInvalidInputError("No file uploaded")
	}
	if doc.Filename == "" {
		return model.NewInvalidInputError("Missing file name")
	}
	return nil
}

func encode(doc Document) uploadDocument {
	return uploadDocument{
		Content:  base64.StdEncoding.EncodeToString(doc.Content),
		Filename: doc.Filename,
	}
}

// lookup はkeysの順にトップレベル、次にdata配下から空でない値を探す。
func lookup(result map[string]any, keys []string) (string, bool) {
	scopes := []map[string]any{result}
	if data, ok := result["data"].(map[string]any); ok {
		scopes = append(scopes, data)
	}
	for _, key := range keys {
		for _, scope := range scopes {
			if s, ok := stringValue(scope[key]); ok {
				return s, true
			}
		}
	}
	return "", false
}

func stringValue(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		tv = strings.TrimSpace(tv)
		return tv, tv != ""
	case json.Number:
		return tv.String(), true
	default:
		return "", false
	}
}

// providerMessage はWeSignatureの応答に含まれるエラーメッセージを返す。
func providerMessage(result map[string]any) string {
	for _, key := range []string{"message", "error", "msg"} {
		if s, ok := stringValue(result[key]); ok {
			return s
		}
	}
	return ""
}

// rejection は識別子を含まない応答をUpstreamErrorに変換する。
func rejection(result map[string]any, fallback string) error {
	err := model.NewUpstreamError(fallback)
	if msg := providerMessage(result); msg != "" {
		err.Err = errors.New(msg)
	}
	return err
}
