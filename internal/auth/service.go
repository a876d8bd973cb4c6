// Package auth はサインアップ・ログイン・トークンによるユーザー特定を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/growthdesk/internal/credential"
	"github.com/hitoshi/growthdesk/internal/model"
	"github.com/hitoshi/growthdesk/internal/token"
)

// CredentialStore はユーザー資格情報の永続化と照合を行うインターフェース。
type CredentialStore interface {
	CreateUser(ctx context.Context, name, email, password string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(user *model.User, password string) bool
}

// TokenService は認証トークンの発行と検証を行うインターフェース。
type TokenService interface {
	Issue(claims token.Claims) (string, error)
	Verify(tokenString string, maxAge time.Duration) (*token.Claims, error)
}

// EventRecorder は認証イベントを記録するインターフェース。
type EventRecorder interface {
	RecordAuthEvent(event, result string)
}

// 認証イベント種別
const (
	EventSignup = "signup"
	EventLogin  = "login"
	EventMe     = "me"
)

// Result はサインアップ・ログイン成功時の結果。
type Result struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	store    CredentialStore
	tokens   TokenService
	maxAge   time.Duration
	recorder EventRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(store CredentialStore, tokens TokenService, maxAge time.Duration, recorder EventRecorder) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		maxAge:   maxAge,
		recorder: recorder,
	}
}

// Signup はユーザーを作成し、認証トークンを発行する。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*Result, error) {
	name = strings.TrimSpace(name)
	email = credential.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		s.record(EventSignup, "invalid")
		return nil, model.NewValidationError("Name, email and password are required")
	}
	if !validEmail(email) {
		s.record(EventSignup, "invalid")
		return nil, model.NewValidationError("Invalid email address")
	}

	user, err := s.store.CreateUser(ctx, name, email, password)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrDuplicateEmail):
			s.record(EventSignup, "duplicate")
			return nil, model.NewDuplicateEmailError()
		case errors.Is(err, credential.ErrPasswordTooLong):
			s.record(EventSignup, "invalid")
			return nil, model.NewValidationError("Password must be at most 72 bytes")
		}
		s.record(EventSignup, "error")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tok, err := s.tokens.Issue(token.Claims{Email: user.Email})
	if err != nil {
		s.record(EventSignup, "error")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.record(EventSignup, "success")
	slog.Info("ユーザー登録完了", "userID", user.ID)
	return &Result{Token: tok, User: user}, nil
}

// Login はメールアドレスとパスワードを照合し、認証トークンを発行する。
// 未登録メールアドレスとパスワード不一致は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = credential.NormalizeEmail(email)
	if email == "" || password == "" {
		s.record(EventLogin, "invalid")
		return nil, model.NewValidationError("Email and password are required")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		s.record(EventLogin, "error")
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// userがnilでも照合を行い、応答時間の差を小さくする
	if !s.store.VerifyPassword(user, password) {
		s.record(EventLogin, "failure")
		return nil, model.NewInvalidCredentialsError()
	}

	tok, err := s.tokens.Issue(token.Claims{Email: user.Email})
	if err != nil {
		s.record(EventLogin, "error")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.record(EventLogin, "success")
	return &Result{Token: tok, User: user}, nil
}

// Authenticate はトークンを検証し、格納されたメールアドレスを返す。
func (s *Service) Authenticate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", model.NewMissingTokenError()
	}

	claims, err := s.tokens.Verify(tokenString, s.maxAge)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return "", model.NewTokenExpiredError()
		}
		return "", model.NewInvalidTokenError()
	}
	if claims.Email == "" {
		return "", model.NewInvalidTokenError()
	}
	return claims.Email, nil
}

// CurrentUser はトークンが示すユーザーを返す。
// トークンは有効だがユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) CurrentUser(ctx context.Context, tokenString string) (*model.User, error) {
	email, err := s.Authenticate(tokenString)
	if err != nil {
		s.record(EventMe, "unauthorized")
		return nil, err
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		s.record(EventMe, "error")
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.record(EventMe, "not_found")
		return nil, model.NewUserNotFoundError()
	}

	s.record(EventMe, "success")
	return user, nil
}

func (s *Service) record(event, result string) {
	if s.recorder != nil {
		s.recorder.RecordAuthEvent(event, result)
	}
}

// validEmail はアドレス部のみからなるメールアドレスかを判定する。
// "Name <a@b>"形式は受け付けない。
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email, "@")
}
