// Package extract はアップロードされた文書からプレーンテキストを抽出する。
package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hitoshi/signbridge/internal/model"
)

// Kind は抽出対象の文書種別。
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindText    Kind = "text"
	KindHTML    Kind = "html"
	KindUnknown Kind = ""
)

var pdfMagic = []byte("%PDF-")

// Result は抽出結果。
type Result struct {
	Kind  Kind
	Text  string
	Pages int // PDF以外は0
}

// Extractor は文書種別を判定してテキストを抽出する。
type Extractor struct {
	pdfConfig *pdfmodel.Configuration
}

// NewExtractor はExtractorを生成する。
// PDFの検証は破損の少ない実運用ファイルを通すため緩和モードで行う。
func NewExtractor() *Extractor {
	cfg := pdfmodel.NewDefaultConfiguration()
	cfg.ValidationMode = pdfmodel.ValidationRelaxed
	return &Extractor{pdfConfig: cfg}
}

// DetectKind はContent-Type、拡張子、先頭バイトの順に文書種別を判定する。
func DetectKind(filename, contentType string, data []byte) Kind {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "application/pdf":
		return KindPDF
	case "text/plain":
		return KindText
	case "text/html":
		return KindHTML
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".txt":
		return KindText
	case ".html", ".htm":
		return KindHTML
	}

	if bytes.HasPrefix(data, pdfMagic) {
		return KindPDF
	}
	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "text/html"):
		return KindHTML
	case strings.HasPrefix(sniffed, "text/plain"):
		return KindText
	}
	return KindUnknown
}

// Extract は文書からテキストを抽出する。
// 空の文書や未対応の種別はInvalidInputエラーを返す。
func (e *Extractor) Extract(filename, contentType string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, model.NewInvalidInputError("No file uploaded")
	}

	kind := DetectKind(filename, contentType, data)
	switch kind {
	case KindPDF:
		text, pages, err := e.extractPDF(data)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Text: text, Pages: pages}, nil
	case KindText:
		if !utf8.Valid(data) {
			return nil, model.NewInvalidInputError("text document is not valid UTF-8")
		}
		return &Result{Kind: kind, Text: string(data)}, nil
	case KindHTML:
		return &Result{Kind: kind, Text: HTMLToText(string(data))}, nil
	default:
		return nil, model.NewInvalidInputError("unsupported document type")
	}
}

// extractPDF はpdfcpuで構造を検証しページ数を取得した上で、本文テキストを取り出す。
func (e *Extractor) extractPDF(data []byte) (string, int, error) {
	rs := bytes.NewReader(data)
	if err := api.Validate(rs, e.pdfConfig); err != nil {
		return "", 0, fmt.Errorf("invalid pdf: %w", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("failed to rewind pdf: %w", err)
	}
	pages, err := api.PageCount(rs, e.pdfConfig)
	if err != nil {
		return "", 0, fmt.Errorf("failed to count pdf pages: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", pages, fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", pages, fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), pages, nil
}
