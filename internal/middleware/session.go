// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/signbridge/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey = contextKey("identity")
	tokenContextKey    = contextKey("session_token")
)

// SessionReader はセッションの読み取りに必要なインターフェース。
// session.Serviceが満たす。
type SessionReader interface {
	Get(ctx context.Context, token string) (*model.Identity, error)
}

// TokenFromRequest はsession_id Cookie、Authorization: Bearer の順にセッショントークンを取り出す。
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// NewSessionMiddleware はセッショントークンから呼び出し元のIdentityを読み込むミドルウェアを返す。
// セッションが存在しない場合は401 {"error": "User not found in Redis"} を返す。
// セッションストアの障害は500とする。
func NewSessionMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			identity, err := sessions.Get(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) && apiErr.Kind == model.ErrKindUnauthenticated {
					WriteError(w, http.StatusUnauthorized, apiErr.Message)
					return
				}
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), identity, token)))
		})
	}
}

// NewOptionalSessionMiddleware はセッションがあればIdentityを読み込み、なければそのまま通過させる。
// 認証不要のルートでレート制限のキーにユーザーIDを使うために配置する。
func NewOptionalSessionMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := sessions.Get(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), identity, token)))
		})
	}
}

func withSession(ctx context.Context, identity *model.Identity, token string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = identity.UserID
	}
	ctx = context.WithValue(ctx, identityContextKey, identity)
	return context.WithValue(ctx, tokenContextKey, token)
}

// IdentityFromContext はリクエストコンテキストから呼び出し元のIdentityを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok && identity != nil
}

// SessionTokenFromContext はリクエストコンテキストからセッショントークンを取得する。
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
