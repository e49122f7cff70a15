// Package submission はアップロードされた文書をWeSignatureへ転送し、監査記録を残す。
package submission

import (
	"context"
	"encoding/base64"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/signbridge/internal/extract"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/wesignature"
)

// TextExtractor は文書からテキストを抽出する。
type TextExtractor interface {
	Extract(filename, contentType string, data []byte) (*extract.Result, error)
}

// SignerResolver は本文とオーナー情報から署名者リストを導出する。
type SignerResolver interface {
	Resolve(ctx context.Context, text string, owner *model.Identity) ([]model.Signer, error)
}

// Provider はWeSignatureの各エンドポイントを呼び出す。
type Provider interface {
	SendDocument(ctx context.Context, identity *model.Identity, doc wesignature.Document, signers []model.Signer) (string, error)
	UploadFile(ctx context.Context, identity *model.Identity, doc wesignature.Document) (string, error)
	SaveTemplate(ctx context.Context, identity *model.Identity, doc wesignature.Document) (string, error)
}

// Recorder はアップロードの監査記録を保存する。失敗は呼び出し元に返さない。
type Recorder interface {
	Record(ctx context.Context, file *model.UploadedFile, raw []byte)
}

// Upload はmultipartで受け取った文書。
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	// Text はフォームのtextフィールド（生成した契約書のHTML）。空でなければ署名者の抽出元に使う。
	Text string
}

// Service は文書送信のユースケースを提供する。
type Service struct {
	extractor TextExtractor
	resolver  SignerResolver
	provider  Provider
	recorder  Recorder
	logger    *slog.Logger
	newName   func(ext string) string
}

// NewService はServiceを生成する。
func NewService(extractor TextExtractor, resolver SignerResolver, provider Provider, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		extractor: extractor,
		resolver:  resolver,
		provider:  provider,
		recorder:  recorder,
		logger:    logger,
		newName:   func(ext string) string { return uuid.NewString() + ext },
	}
}

// SendToSignature は署名者を導出して署名依頼を送信し、WeSignatureの編集URLを返す。
// 送信に成功した場合のみ監査記録を保存する。
func (s *Service) SendToSignature(ctx context.Context, identity *model.Identity, up *Upload) (string, error) {
	if err := validateUpload(identity, up); err != nil {
		return "", err
	}

	text := s.signerSource(ctx, identity, up)
	signers, err := s.resolver.Resolve(ctx, text, identity)
	if err != nil {
		return "", err
	}

	editURL, err := s.provider.SendDocument(ctx, identity, wesignature.Document{
		Filename: up.Filename,
		Content:  up.Data,
	}, signers)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "signature request sent",
		slog.String("user_id", identity.UserID),
		slog.String("filename", up.Filename),
		slog.Int("signers", len(signers)),
	)
	s.record(ctx, identity, up.Filename, up.Data, model.ActionSignature)
	return editURL, nil
}

// StoreFile はファイルを生成名でWeFileに保存し、WeSignatureが発行したURLを返す。
func (s *Service) StoreFile(ctx context.Context, identity *model.Identity, up *Upload) (string, error) {
	return s.forward(ctx, identity, up, model.ActionFile, s.provider.UploadFile)
}

// SaveTemplate はファイルを生成名でテンプレートとして保存し、WeSignatureが発行したURLを返す。
func (s *Service) SaveTemplate(ctx context.Context, identity *model.Identity, up *Upload) (string, error) {
	return s.forward(ctx, identity, up, model.ActionTemplate, s.provider.SaveTemplate)
}

type sendFunc func(ctx context.Context, identity *model.Identity, doc wesignature.Document) (string, error)

func (s *Service) forward(ctx context.Context, identity *model.Identity, up *Upload, action model.Action, send sendFunc) (string, error) {
	if err := validateUpload(identity, up); err != nil {
		return "", err
	}

	filename := s.newName(strings.ToLower(filepath.Ext(up.Filename)))
	u, err := send(ctx, identity, wesignature.Document{Filename: filename, Content: up.Data})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "file forwarded",
		slog.String("user_id", identity.UserID),
		slog.String("action", string(action)),
		slog.String("filename", filename),
	)
	s.record(ctx, identity, filename, up.Data, action)
	return u, nil
}

// signerSource は署名者抽出に使う本文を返す。
// textフィールドを優先し、なければファイルから抽出する。抽出の失敗は空文字列として扱う。
func (s *Service) signerSource(ctx context.Context, identity *model.Identity, up *Upload) string {
	if strings.TrimSpace(up.Text) != "" {
		return extract.HTMLToText(up.Text)
	}

	res, err := s.extractor.Extract(up.Filename, up.ContentType, up.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "text extraction failed, resolving owner only",
			slog.String("user_id", identity.UserID),
			slog.String("filename", up.Filename),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return res.Text
}

func (s *Service) record(ctx context.Context, identity *model.Identity, filename string, data []byte, action model.Action) {
	s.recorder.Record(ctx, &model.UploadedFile{
		UserID:   identity.UserID,
		Email:    identity.Email,
		Name:     identity.Name,
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(data),
		Action:   action,
	}, data)
}

func validateUpload(identity *model.Identity, up *Upload) error {
	if !identity.Valid() {
		return model.NewUnauthenticatedError()
	}
	if up == nil || len(up.Data) == 0 {
		return model.NewInvalidInputError("No file uploaded")
	}
	if strings.TrimSpace(up.Filename) == "" {
		return model.NewInvalidInputError("Missing file name")
	}
	return nil
}
