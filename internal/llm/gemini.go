package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hitoshi/growthdesk/internal/security"
)

// 画像生成のデフォルト設定
const (
	imageAspectRatio = "3:4"
	defaultImageMIME = "image/png"
)

// modelsAPI はgenai.Modelsのうち本パッケージが使用するメソッド。
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiConfig はGeminiClientの設定。
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
	// BaseURL はエンドポイントの上書き。空の場合はSDKのデフォルトを使用する。
	BaseURL string
	// HTTPClient は上流呼び出しに使用するクライアント。タイムアウトはこのクライアントで設定する。
	HTTPClient *http.Client
}

// GeminiClient はGemini（テキスト）とImagen（画像）を呼び出すGenerator。
type GeminiClient struct {
	models     modelsAPI
	textModel  string
	imageModel string
}

// NewGeminiClient はGeminiClientを生成する。
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		if err := security.ValidateEndpoint(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid generative API endpoint: %w", err)
		}
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		models:     client.Models,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
	}, nil
}

// GenerateText はテキストモデルを呼び出し、応答テキストを返す。
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.textModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate content failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateImage は画像モデルを呼び出し、1枚目の画像を返す。
// ネガティブプロンプトは現行の画像モデルが直接受け付けないため、プロンプト末尾に回避指示として付加する。
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt, negative string) (*Image, error) {
	fullPrompt := prompt
	if n := strings.TrimSpace(negative); n != "" {
		fullPrompt += "\nAvoid: " + n
	}

	resp, err := c.models.GenerateImages(ctx, c.imageModel, fullPrompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    imageAspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate images failed: %w", err)
	}

	if len(resp.GeneratedImages) == 0 {
		return nil, ErrEmptyResponse
	}
	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w: filtered (%s)", ErrEmptyResponse, generated.RAIFilteredReason)
		}
		return nil, ErrEmptyResponse
	}

	mime := generated.Image.MIMEType
	if mime == "" {
		mime = defaultImageMIME
	}
	return &Image{Data: generated.Image.ImageBytes, MIMEType: mime}, nil
}

var _ Generator = (*GeminiClient)(nil)
