// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// subjectContextKey はリクエストコンテキストに認証済みメールアドレスを格納するためのキー。
var subjectContextKey = contextKey("subject")

// TokenAuthenticator はトークンを検証してメールアドレスを返すインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenAuthenticator interface {
	Authenticate(token string) (string, error)
}

// BearerToken はAuthorizationヘッダーまたはtokenクエリパラメータからトークンを取り出す。
// ヘッダーを優先する。見つからない場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// NewIdentityMiddleware はトークンが付いていれば検証し、メールアドレスをコンテキストに注入する。
// 生成エンドポイントは未認証でも利用できるため、トークンが無効でも拒否しない。
// 注入された値はレート制限とログの識別子として使われる。
func NewIdentityMiddleware(authenticator TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := BearerToken(r); tok != "" {
				if email, err := authenticator.Authenticate(tok); err == nil && email != "" {
					r = r.WithContext(ContextWithSubject(r.Context(), email))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext はリクエストコンテキストから認証済みメールアドレスを取得する。
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok && subject != ""
}

// ContextWithSubject はコンテキストに認証済みメールアドレスを注入する。
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}
