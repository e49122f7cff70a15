package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/signbridge/internal/contract"
	"github.com/hitoshi/signbridge/internal/drafting"
	"github.com/hitoshi/signbridge/internal/middleware"
	"github.com/hitoshi/signbridge/internal/model"
)

// ContractServiceInterface は契約一覧ハンドラーが必要とするサービスインターフェース。
type ContractServiceInterface interface {
	List(ctx context.Context, userID string, page, limit int) (*model.ContractPage, error)
	RedirectLink(userID string) (string, error)
}

// DraftingServiceInterface は契約書生成ハンドラーが必要とするサービスインターフェース。
type DraftingServiceInterface interface {
	Draft(ctx context.Context, req drafting.Request) (*drafting.Result, error)
}

// ContractHandler は契約一覧と契約書生成のHTTPハンドラー。
type ContractHandler struct {
	contracts ContractServiceInterface
	drafting  DraftingServiceInterface
}

// NewContractHandler はContractHandlerを生成する。
func NewContractHandler(contracts ContractServiceInterface, drafting DraftingServiceInterface) *ContractHandler {
	return &ContractHandler{contracts: contracts, drafting: drafting}
}

type contractListResponse struct {
	Message        string           `json:"message"`
	Data           []model.Contract `json:"data"`
	TotalDocuments int64            `json:"totalDocuments"`
	CurrentPage    int              `json:"currentPage"`
	TotalPages     int              `json:"totalPages"`
}

type redirectLinkRequest struct {
	UserID string `json:"user_id"`
}

type redirectLinkResponse struct {
	Message      string `json:"message"`
	RedirectLink string `json:"redirectLink"`
}

// ListContracts はユーザーの契約をページ単位で返す。
// POST /api/contracts/{user_id}?page=&limit=
func (h *ContractHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	page, limit := contract.ParsePagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))

	result, err := h.contracts.List(r.Context(), userID, page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, contractListResponse{
		Message:        "Contracts fetched successfully",
		Data:           result.Data,
		TotalDocuments: result.TotalDocuments,
		CurrentPage:    result.CurrentPage,
		TotalPages:     result.TotalPages,
	})
}

// RedirectLink はフロントエンドの契約一覧ページへのリンクを返す。
// POST /api/getContracts
func (h *ContractHandler) RedirectLink(w http.ResponseWriter, r *http.Request) {
	var req redirectLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "User ID is required in body")
		return
	}

	link, err := h.contracts.RedirectLink(req.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redirectLinkResponse{Message: "Redirect link", RedirectLink: link})
}

// Generate はプロンプトから契約書を生成または編集する。
// POST /api/prompGenerate
func (h *ContractHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req drafting.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.drafting.Draft(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
