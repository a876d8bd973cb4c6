// Package credential はユーザー資格情報の作成・検索・パスワード照合を提供する。
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/growthdesk/internal/model"
	"github.com/hitoshi/growthdesk/internal/repository"
)

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const maxPasswordBytes = 72

var (
	// ErrDuplicateEmail は正規化後のメールアドレスがすでに登録済みの場合に返される。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrPasswordTooLong はパスワードが72バイトを超える場合に返される。
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// NormalizeEmail は前後の空白を除去して小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store はUserRepository上の資格情報ストア。
type Store struct {
	repo      repository.UserRepository
	cost      int
	dummyHash []byte
	now       func() time.Time
}

// NewStore はStoreを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使用する。
func NewStore(repo repository.UserRepository, cost int) (*Store, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// 未登録メールアドレスでも照合時間を揃えるための比較対象
	dummy, err := bcrypt.GenerateFromPassword([]byte("growthdesk-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Store{
		repo:      repo,
		cost:      cost,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// CreateUser はメールアドレスを正規化し、パスワードをハッシュ化してユーザーを作成する。
// 既存ユーザーと正規化後のメールアドレスが一致する場合はErrDuplicateEmailを返す。
func (s *Store) CreateUser(ctx context.Context, name, email, password string) (*model.User, error) {
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	email = NormalizeEmail(email)

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// 存在確認後に並行リクエストが先に挿入したケース
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByEmail は正規化したメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (s *Store) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// VerifyPassword はパスワードがユーザーのハッシュと一致するかを返す。
// userがnilの場合もダミーハッシュとの比較を行い、常にfalseを返す。
func (s *Store) VerifyPassword(user *model.User, password string) bool {
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
