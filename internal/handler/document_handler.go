package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/signbridge/internal/middleware"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/submission"
)

// multipartMemory はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルになる。
const multipartMemory = 8 << 20

// SubmissionServiceInterface は文書送信ハンドラーが必要とするサービスインターフェース。
type SubmissionServiceInterface interface {
	SendToSignature(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
	StoreFile(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
	SaveTemplate(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
}

// DocumentHandler はWeSignatureへの文書送信のHTTPハンドラー。
type DocumentHandler struct {
	service       SubmissionServiceInterface
	uploadMaxSize int64
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(service SubmissionServiceInterface, uploadMaxSize int64) *DocumentHandler {
	return &DocumentHandler{service: service, uploadMaxSize: uploadMaxSize}
}

type sendDocumentResponse struct {
	Message string `json:"message"`
	EditURL string `json:"editUrl"`
}

type storeFileResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// SendToWeSignature はアップロードされた文書を署名依頼として送信する。
// POST /api/send_to_wesignature（multipart: file, text）
func (h *DocumentHandler) SendToWeSignature(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	editURL, err := h.service.SendToSignature(r.Context(), identity, up)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendDocumentResponse{Message: "Document sent successfully", EditURL: editURL})
}

// SendToWeFile はアップロードされた文書をWeFileに保存する。
// POST /api/send_to_wefile（multipart: file）
func (h *DocumentHandler) SendToWeFile(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.service.StoreFile, "File saved successfully")
}

// SendToSaveTemplate はアップロードされた文書をテンプレートとして保存する。
// POST /api/send_to_savetemplate（multipart: file）
func (h *DocumentHandler) SendToSaveTemplate(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.service.SaveTemplate, "Template saved successfully")
}

type forwardFunc func(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)

func (h *DocumentHandler) forward(w http.ResponseWriter, r *http.Request, send forwardFunc, message string) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	u, err := send(r.Context(), identity, up)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeFileResponse{Message: message, URL: u})
}

// readUpload はmultipartのfileフィールドとtextフィールドを読み取る。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func (h *DocumentHandler) readUpload(w http.ResponseWriter, r *http.Request) (*submission.Upload, bool) {
	if h.uploadMaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return nil, false
	}

	return &submission.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Text:        r.FormValue("text"),
	}, true
}
