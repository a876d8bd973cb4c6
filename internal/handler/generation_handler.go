package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"

	"github.com/hitoshi/growthdesk/internal/generation"
	"github.com/hitoshi/growthdesk/internal/prompt"
)

// GenerationServiceInterface は生成ハンドラーが必要とするサービスインターフェース。
type GenerationServiceInterface interface {
	GenerateContent(ctx context.Context, req generation.ContentRequest) (*generation.ContentResult, error)
	GenerateText(ctx context.Context, businessDetails string) (*generation.TextResult, error)
	GeneratePrompts(ctx context.Context, req generation.PromptsRequest) (*generation.PromptsResult, error)
	GenerateImage(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error)
}

// GenerationHandler はコンテンツ生成ワークフローのHTTPハンドラー。
type GenerationHandler struct {
	service GenerationServiceInterface
}

// NewGenerationHandler はGenerationHandlerを生成する。
func NewGenerationHandler(service GenerationServiceInterface) *GenerationHandler {
	return &GenerationHandler{service: service}
}

// approvalFlag はJSONリテラルのtrueのみを承認として扱う。
// 文字列や数値などはエラーにせず未承認とし、403の判定に委ねる。
type approvalFlag bool

// UnmarshalJSON はtrue以外の値をすべてfalseとして受け付ける。
func (f *approvalFlag) UnmarshalJSON(data []byte) error {
	*f = approvalFlag(bytes.Equal(bytes.TrimSpace(data), []byte("true")))
	return nil
}

type generateContentRequest struct {
	Message         string                 `json:"message"`
	BusinessContext prompt.BusinessContext `json:"businessContext"`
	TaskMode        prompt.TaskMode        `json:"taskMode"`
	History         []prompt.Message       `json:"history"`
}

type contextUsed struct {
	BusinessType string `json:"business_type"`
	IntentMode   string `json:"intent_mode"`
}

type generateContentResponse struct {
	Success     bool        `json:"success"`
	Content     string      `json:"content"`
	Message     string      `json:"message"`
	ContextUsed contextUsed `json:"context_used"`
}

type generateTextRequest struct {
	BusinessDetails string `json:"businessDetails"`
}

type generateTextResponse struct {
	Success       bool   `json:"success"`
	Content       string `json:"content"`
	ApprovalToken string `json:"approvalToken"`
}

type generatePromptsRequest struct {
	PostContent   string       `json:"postContent"`
	Approved      approvalFlag `json:"approved"`
	ApprovalToken string       `json:"approvalToken"`
}

type generatePromptsResponse struct {
	Success        bool   `json:"success"`
	Prompts        string `json:"prompts"`
	ImagePrompt    string `json:"imagePrompt"`
	NegativePrompt string `json:"negativePrompt"`
	ApprovalToken  string `json:"approvalToken"`
}

type generateImageRequest struct {
	ImagePrompt    string       `json:"imagePrompt"`
	NegativePrompt string       `json:"negativePrompt"`
	Approved       approvalFlag `json:"approved"`
	ApprovalToken  string       `json:"approvalToken"`
}

type generateImageResponse struct {
	Success  bool   `json:"success"`
	Image    string `json:"image"`
	MIMEType string `json:"mimeType"`
}

// GenerateContent はチャット形式の生成を処理する。
// POST /api/generate-content
func (h *GenerationHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req generateContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.GenerateContent(r.Context(), generation.ContentRequest{
		Message:         req.Message,
		BusinessContext: req.BusinessContext,
		TaskMode:        req.TaskMode,
		History:         req.History,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateContentResponse{
		Success: true,
		Content: result.Content,
		Message: result.Content,
		ContextUsed: contextUsed{
			BusinessType: result.BusinessType,
			IntentMode:   result.IntentMode,
		},
	})
}

// GenerateText は投稿案の生成を処理する（ステップ1）。
// POST /api/image-assistant/generate-text
func (h *GenerationHandler) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.GenerateText(r.Context(), req.BusinessDetails)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateTextResponse{
		Success:       true,
		Content:       result.Content,
		ApprovalToken: result.ApprovalToken,
	})
}

// GeneratePrompts は画像プロンプトの生成を処理する（ステップ2）。
// POST /api/image-assistant/generate-prompts
func (h *GenerationHandler) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	var req generatePromptsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.GeneratePrompts(r.Context(), generation.PromptsRequest{
		PostContent:   req.PostContent,
		Approved:      bool(req.Approved),
		ApprovalToken: req.ApprovalToken,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generatePromptsResponse{
		Success:        true,
		Prompts:        result.Prompts,
		ImagePrompt:    result.ImagePrompt,
		NegativePrompt: result.NegativePrompt,
		ApprovalToken:  result.ApprovalToken,
	})
}

// GenerateImage は画像の生成を処理する（ステップ3）。
// 画像はbase64で同期的に返す。
// POST /api/image-assistant/generate-image
func (h *GenerationHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.GenerateImage(r.Context(), generation.ImageRequest{
		ImagePrompt:    req.ImagePrompt,
		NegativePrompt: req.NegativePrompt,
		Approved:       bool(req.Approved),
		ApprovalToken:  req.ApprovalToken,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateImageResponse{
		Success:  true,
		Image:    base64.StdEncoding.EncodeToString(result.Data),
		MIMEType: result.MIMEType,
	})
}
