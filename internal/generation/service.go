// Package generation は承認ゲート付きのコンテンツ生成ワークフローを提供する。
//
// ワークフローは3つの独立したリクエストからなる。
//  1. 投稿案の生成（承認不要）
//  2. 画像プロンプトの生成（approved=true 必須）
//  3. 画像の生成（approved=true 必須）
//
// サーバーはクライアントがどのステップにいるかを保持しない。
package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/growthdesk/internal/approval"
	"github.com/hitoshi/growthdesk/internal/llm"
	"github.com/hitoshi/growthdesk/internal/model"
	"github.com/hitoshi/growthdesk/internal/prompt"
	"github.com/hitoshi/growthdesk/internal/security"
)

// 操作名。メトリクスとログのラベルに使用する。
const (
	OpContent = "generate_content"
	OpText    = "generate_text"
	OpPrompts = "generate_prompts"
	OpImage   = "generate_image"
)

// errEmptyImagePrompt はモデル出力から画像プロンプトを取り出せなかった場合のエラー。
var errEmptyImagePrompt = errors.New("model output contained no image prompt")

// ロック時のメッセージ
const (
	msgPromptsLocked = "Action locked. User approval required."
	msgImageLocked   = "Action locked. Technical approval is REQUIRED before generating images."
)

// Recorder は生成結果を記録するインターフェース。
type Recorder interface {
	RecordGeneration(operation, result string, duration time.Duration)
	RecordApprovalRejection(stage, reason string)
}

// ServiceConfig は生成サービスの設定。
type ServiceConfig struct {
	HistoryMaxEntries int
	UpstreamTimeout   time.Duration
}

// Service はコンテンツ生成に関するビジネスロジックを提供する。
type Service struct {
	generator llm.Generator
	gate      *approval.Gate
	sanitizer security.InputSanitizer
	recorder  Recorder
	config    ServiceConfig
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	generator llm.Generator,
	gate *approval.Gate,
	sanitizer security.InputSanitizer,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	return &Service{
		generator: generator,
		gate:      gate,
		sanitizer: sanitizer,
		recorder:  recorder,
		config:    config,
	}
}

// ContentRequest はチャット形式の生成リクエスト。
type ContentRequest struct {
	Message         string
	BusinessContext prompt.BusinessContext
	TaskMode        prompt.TaskMode
	History         []prompt.Message
}

// ContentResult はチャット形式の生成結果。
type ContentResult struct {
	Content      string
	BusinessType string
	IntentMode   string
}

// GenerateContent は事業情報と会話履歴からプロンプトを組み立て、テキストモデルの応答を返す。
// メッセージが空の場合は外部呼び出しの前に検証エラーを返す。
func (s *Service) GenerateContent(ctx context.Context, req ContentRequest) (*ContentResult, error) {
	message := s.sanitizer.Clean(req.Message)
	if message == "" {
		return nil, model.NewValidationError("Message is required")
	}

	history, err := prompt.NormalizeHistory(req.History, s.config.HistoryMaxEntries)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}
	for i := range history {
		history[i].Text = s.sanitizer.Clean(history[i].Text)
	}

	bc := s.cleanBusinessContext(req.BusinessContext).WithDefaults()
	task := prompt.TaskMode{
		Mode:       string(prompt.ParseMode(req.TaskMode.Mode)),
		Objective:  s.sanitizer.Clean(req.TaskMode.Objective),
		Guidelines: s.sanitizer.Clean(req.TaskMode.Guidelines),
	}

	text, err := s.callText(ctx, OpContent, prompt.Compose(bc, task, history, message))
	if err != nil {
		return nil, s.upstreamError("Failed to generate content", err)
	}

	return &ContentResult{
		Content:      text,
		BusinessType: bc.BusinessType,
		IntentMode:   task.Mode,
	}, nil
}

// TextResult は投稿案の生成結果。
type TextResult struct {
	Content       string
	ApprovalToken string
}

// GenerateText は事業詳細から投稿案を生成する。承認は不要。
// 結果には画像プロンプト生成ステップを解放する承認トークンが付く。
func (s *Service) GenerateText(ctx context.Context, businessDetails string) (*TextResult, error) {
	details := s.sanitizer.Clean(businessDetails)
	if details == "" {
		return nil, model.NewValidationError("Business details are required")
	}

	text, err := s.callText(ctx, OpText, prompt.PostIdea(details))
	if err != nil {
		return nil, s.upstreamError("Failed to generate text", err)
	}

	tok, err := s.gate.Grant(approval.StagePrompts, text)
	if err != nil {
		return nil, err
	}
	return &TextResult{Content: text, ApprovalToken: tok}, nil
}

// PromptsRequest は画像プロンプト生成リクエスト。
type PromptsRequest struct {
	PostContent   string
	Approved      bool
	ApprovalToken string
}

// PromptsResult は画像プロンプト生成結果。
type PromptsResult struct {
	Prompts        string
	ImagePrompt    string
	NegativePrompt string
	ApprovalToken  string
}

// GeneratePrompts は承認済みの投稿から画像プロンプトとネガティブプロンプトを導出する。
// 承認フラグの確認は必須項目の検証より先に行う。
func (s *Service) GeneratePrompts(ctx context.Context, req PromptsRequest) (*PromptsResult, error) {
	if err := s.gate.RequireApproval(req.Approved); err != nil {
		s.recordRejection(approval.StagePrompts, "not_approved")
		return nil, model.NewActionLockedError(msgPromptsLocked)
	}
	if strings.TrimSpace(req.PostContent) == "" {
		return nil, model.NewValidationError("Post content is required")
	}
	res, err := s.reserve(approval.StagePrompts, req.ApprovalToken, req.PostContent)
	if err != nil {
		return nil, err
	}

	raw, err := s.callText(ctx, OpPrompts, prompt.ImagePrompts(s.sanitizer.Clean(req.PostContent)))
	if err != nil {
		res.Release()
		return nil, s.upstreamError("Failed to generate prompts", err)
	}

	imagePrompt, negative := prompt.ParseImagePrompts(raw)
	if imagePrompt == "" {
		res.Release()
		return nil, s.upstreamError("Failed to generate prompts", errEmptyImagePrompt)
	}

	tok, err := s.gate.Grant(approval.StageImage, imagePrompt)
	if err != nil {
		res.Release()
		return nil, err
	}

	return &PromptsResult{
		Prompts:        raw,
		ImagePrompt:    imagePrompt,
		NegativePrompt: negative,
		ApprovalToken:  tok,
	}, nil
}

// ImageRequest は画像生成リクエスト。
type ImageRequest struct {
	ImagePrompt    string
	NegativePrompt string
	Approved       bool
	ApprovalToken  string
}

// ImageResult は画像生成結果。
type ImageResult struct {
	Data     []byte
	MIMEType string
}

// GenerateImage は承認済みの画像プロンプトから画像を同期的に生成する。
func (s *Service) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if err := s.gate.RequireApproval(req.Approved); err != nil {
		s.recordRejection(approval.StageImage, "not_approved")
		return nil, model.NewActionLockedError(msgImageLocked)
	}
	if strings.TrimSpace(req.ImagePrompt) == "" {
		return nil, model.NewValidationError("Image prompt is required")
	}
	res, err := s.reserve(approval.StageImage, req.ApprovalToken, req.ImagePrompt)
	if err != nil {
		return nil, err
	}

	negative := s.sanitizer.Clean(req.NegativePrompt)
	if negative == "" {
		negative = prompt.DefaultNegativePrompt
	}

	ctx, cancel := s.upstreamContext(ctx)
	defer cancel()

	start := time.Now()
	img, err := s.generator.GenerateImage(ctx, s.sanitizer.Clean(req.ImagePrompt), negative)
	s.recordGeneration(OpImage, err, time.Since(start))
	if err != nil {
		res.Release()
		return nil, s.upstreamError("Failed to generate image", err)
	}

	return &ImageResult{Data: img.Data, MIMEType: img.MIMEType}, nil
}

func (s *Service) callText(ctx context.Context, op, p string) (string, error) {
	ctx, cancel := s.upstreamContext(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.generator.GenerateText(ctx, p)
	s.recordGeneration(op, err, time.Since(start))
	return text, err
}

func (s *Service) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.UpstreamTimeout > 0 {
		return context.WithTimeout(ctx, s.config.UpstreamTimeout)
	}
	return context.WithCancel(ctx)
}

// reserve は承認トークンを予約する。呼び出し側は外部呼び出しが失敗した場合に予約を解除する。
func (s *Service) reserve(stage approval.Stage, capability, artifact string) (*approval.Reservation, error) {
	res, err := s.gate.Reserve(stage, capability, artifact)
	if err == nil {
		return res, nil
	}

	reason := "invalid"
	switch {
	case errors.Is(err, approval.ErrTokenRequired):
		reason = "missing"
	case errors.Is(err, approval.ErrTokenMismatch):
		reason = "mismatch"
	case errors.Is(err, approval.ErrTokenConsumed):
		reason = "consumed"
	}
	s.recordRejection(stage, reason)
	slog.Warn("承認トークン検証失敗", "stage", string(stage), "reason", reason)
	return nil, model.NewApprovalRejectedError(err.Error())
}

func (s *Service) upstreamError(message string, err error) error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return model.NewNotConfiguredError()
	}
	slog.Warn("生成API呼び出し失敗", "message", message, "error", err)
	return model.NewUpstreamError(message, err)
}

func (s *Service) cleanBusinessContext(bc prompt.BusinessContext) prompt.BusinessContext {
	return prompt.BusinessContext{
		BusinessType:  s.sanitizer.Clean(bc.BusinessType),
		Budget:        s.sanitizer.Clean(bc.Budget),
		Goal:          s.sanitizer.Clean(bc.Goal),
		TimeAvailable: s.sanitizer.Clean(bc.TimeAvailable),
		TeamSize:      s.sanitizer.Clean(bc.TeamSize),
	}
}

func (s *Service) recordGeneration(op string, err error, d time.Duration) {
	if s.recorder == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		result = "not_configured"
	case err != nil:
		result = "error"
	}
	s.recorder.RecordGeneration(op, result, d)
}

func (s *Service) recordRejection(stage approval.Stage, reason string) {
	if s.recorder != nil {
		s.recorder.RecordApprovalRejection(string(stage), reason)
	}
}
