// Package token はサーバーシークレットで署名されたステートレストークンを発行・検証する。
//
// 署名鍵はサーバーシークレットと用途ごとのsaltからHKDF-SHA256で導出する。
// 認証トークンと承認トークンはsaltが異なるため、互いに流用できない。
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// 用途ごとのsalt
const (
	SaltAuth     = "auth-token"
	SaltApproval = "approval-token"
)

const keySize = 32

var (
	// ErrExpired は発行からmaxAgeを超えたトークンに対して返される。
	ErrExpired = errors.New("token expired")
	// ErrInvalidSignature は署名不正・アルゴリズム不一致・形式不正のトークンに対して返される。
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Claims はトークンに格納される情報。
// 認証トークンはEmail、承認トークンはStageとDigestとIDを使用する。
type Claims struct {
	Email  string `json:"email,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Digest string `json:"digest,omitempty"`
	jwt.RegisteredClaims
}

// Service はHS256トークンの発行と検証を行う。
// 生成後は読み取り専用のため、複数goroutineから安全に使用できる。
type Service struct {
	key []byte
	now func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService はsecretとsaltから署名鍵を導出してServiceを生成する。
func NewService(secret, salt string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(salt)), key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	s := &Service{key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue はclaimsにiatを設定して署名済みトークンを返す。
func (s *Service) Issue(claims Claims) (string, error) {
	claims.IssuedAt = jwt.NewNumericDate(s.now())

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と発行時刻を検証し、claimsを返す。
// 発行からmaxAgeを超えている場合はErrExpired、それ以外の検証失敗はErrInvalidSignatureを返す。
func (s *Service) Verify(tokenString string, maxAge time.Duration) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrInvalidSignature)
	}

	if s.now().Sub(claims.IssuedAt.Time) > maxAge {
		return nil, ErrExpired
	}
	return claims, nil
}
