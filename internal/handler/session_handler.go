package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/signbridge/internal/middleware"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/profile"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Put(ctx context.Context, identity *model.Identity) (string, error)
	Get(ctx context.Context, token string) (*model.Identity, error)
	Delete(ctx context.Context, token string) error
}

// ProfileServiceInterface はプロフィール関連のサービスインターフェース。
type ProfileServiceInterface interface {
	EnsureProfile(ctx context.Context, p *model.UserProfile) error
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	Links(p *model.UserProfile) profile.NavLinks
}

// SessionHandlerConfig はセッションCookieとリダイレクト先の設定。
type SessionHandlerConfig struct {
	FrontendURL  string
	CookieDomain string
	CookieSecure bool
	SessionTTL   time.Duration
}

// SessionHandler はWeSignatureからの遷移とセッション関連のHTTPハンドラー。
type SessionHandler struct {
	sessions SessionServiceInterface
	profiles ProfileServiceInterface
	config   SessionHandlerConfig
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(sessions SessionServiceInterface, profiles ProfileServiceInterface, config SessionHandlerConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, profiles: profiles, config: config}
}

// redirectRequest はWeSignatureから渡されるユーザー情報。
type redirectRequest struct {
	UserID       string `json:"user_id"`
	APIKey       string `json:"api_key"`
	Name         string `json:"name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	ParentURL    string `json:"parent_url"`
	ProfileImage string `json:"profile_image"`
}

type redirectResponse struct {
	RedirectURL string `json:"redirectUrl"`
	Token       string `json:"token"`
}

type navLinksResponse struct {
	Links        profile.NavLinks `json:"links"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	ProfileImage string           `json:"profileImage,omitempty"`
}

// RedirectToAI はユーザー情報をセッションに保存し、フロントエンドのURLを返す。
// GET/POST /api/redirect_to_ai
func (h *SessionHandler) RedirectToAI(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRedirectRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Missing user data")
		return
	}

	identity := &model.Identity{
		UserID: strings.TrimSpace(req.UserID),
		APIKey: strings.TrimSpace(req.APIKey),
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
	}
	token, err := h.sessions.Put(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// プロフィールの保存失敗は遷移を妨げない
	if err := h.profiles.EnsureProfile(r.Context(), &model.UserProfile{
		UserID:       identity.UserID,
		APIKey:       identity.APIKey,
		Name:         identity.Name,
		LastName:     strings.TrimSpace(req.LastName),
		Email:        identity.Email,
		ParentURL:    strings.TrimSpace(req.ParentURL),
		ProfileImage: strings.TrimSpace(req.ProfileImage),
	}); err != nil {
		slog.WarnContext(r.Context(), "failed to ensure user profile",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, redirectResponse{RedirectURL: h.config.FrontendURL, Token: token})
}

// decodeRedirectRequest はJSONボディ、フォーム、クエリのいずれからもユーザー情報を読み取る。
func decodeRedirectRequest(r *http.Request) (*redirectRequest, error) {
	var req redirectRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if r.Method == http.MethodPost && mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req = redirectRequest{
		UserID:       r.Form.Get("user_id"),
		APIKey:       r.Form.Get("api_key"),
		Name:         r.Form.Get("name"),
		LastName:     r.Form.Get("last_name"),
		Email:        r.Form.Get("email"),
		ParentURL:    r.Form.Get("parent_url"),
		ProfileImage: r.Form.Get("profile_image"),
	}
	return &req, nil
}

// NavLinks はナビゲーションリンクと表示用のユーザー情報を返す。
// GET /api/navlinks
func (h *SessionHandler) NavLinks(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.Get(r.Context(), identity.UserID)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != model.ErrKindNotFound {
			handleServiceError(w, r, err)
			return
		}
		p = nil
	}

	resp := navLinksResponse{
		Links: h.profiles.Links(p),
		Name:  identity.Name,
		Email: identity.Email,
	}
	if p != nil {
		resp.ProfileImage = p.ProfileImage
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /api/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionTokenFromContext(r.Context()); token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			// 削除に失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to delete session", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
