// Package llm は外部の生成API（テキスト・画像）へのクライアントを提供する。
package llm

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured はAPIキーが設定されていない場合に返される。
	ErrNotConfigured = errors.New("generative API key not configured")
	// ErrEmptyResponse はモデルが空の応答を返した場合に返される。
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Image は生成された画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator はテキストと画像を生成する外部モデルのインターフェース。
type Generator interface {
	// GenerateText はプロンプトに対するテキストをそのまま返す。
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateImage はプロンプトとネガティブプロンプトから画像を1枚生成する。
	GenerateImage(ctx context.Context, prompt, negative string) (*Image, error)
}

// Unconfigured はAPIキー未設定時に使用するGenerator。
// 起動は妨げず、呼び出し時にErrNotConfiguredを返す。
type Unconfigured struct{}

func (Unconfigured) GenerateText(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) GenerateImage(context.Context, string, string) (*Image, error) {
	return nil, ErrNotConfigured
}

var _ Generator = Unconfigured{}
