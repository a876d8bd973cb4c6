// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizer はクライアントから受け取ったテキストからマークアップを除去する。
// プロンプトへ埋め込む前に適用し、HTMLやscriptタグがモデルへ転送されないようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizer はテキスト入力のサニタイズ機能のインターフェースを定義する。
type InputSanitizer interface {
	// Clean はすべてのタグを除去したプレーンテキストを返す。
	// &や引用符などのエンティティは元の文字に戻す。前後の空白は除去する。
	Clean(text string) string
}

// inputSanitizer はInputSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、1インスタンスを共有できる。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はStrictPolicyを使用するInputSanitizerを生成する。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去したプレーンテキストを返す。
func (s *inputSanitizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
