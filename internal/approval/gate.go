// Package approval は画像生成ワークフローの承認ゲートを提供する。
//
// 各特権ステップはリクエストごとに approved=true を要求する。
// 加えて、直前のステップの成果物に束縛された使い捨ての承認トークンを発行・検証できる。
// strictモードでは承認トークンの提示が必須になる。
package approval

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/hitoshi/growthdesk/internal/token"
)

// Stage は承認トークンが解放するステップ。
type Stage string

const (
	StagePrompts Stage = "prompts"
	StageImage   Stage = "image"
)

var (
	// ErrNotApproved は approved フラグが true でない場合に返される。
	ErrNotApproved = errors.New("approval flag not set")
	// ErrTokenRequired はstrictモードで承認トークンが提示されなかった場合に返される。
	ErrTokenRequired = errors.New("approval token required")
	// ErrTokenInvalid は承認トークンの署名不正・期限切れの場合に返される。
	ErrTokenInvalid = errors.New("approval token invalid or expired")
	// ErrTokenMismatch は承認トークンのステージまたは成果物が一致しない場合に返される。
	ErrTokenMismatch = errors.New("approval token does not match this request")
	// ErrTokenConsumed は使用済みまたは使用中の承認トークンが再提示された場合に返される。
	ErrTokenConsumed = errors.New("approval token already used")
)

// Signer は承認トークンの署名と検証を行うインターフェース。
type Signer interface {
	Issue(claims token.Claims) (string, error)
	Verify(tokenString string, maxAge time.Duration) (*token.Claims, error)
}

// Gate は承認フラグと承認トークンを検証する。
type Gate struct {
	signer Signer
	ttl    time.Duration
	strict bool
	ledger *ledger
}

// Option はGateの設定を変更する。
type Option func(*Gate)

// WithClock は使用済み記録の期限判定に使う時計を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.ledger.now = now
	}
}

// NewGate はGateを生成する。
func NewGate(signer Signer, ttl time.Duration, strict bool, opts ...Option) *Gate {
	g := &Gate{
		signer: signer,
		ttl:    ttl,
		strict: strict,
		ledger: newLedger(time.Now),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireApproval はapprovedがtrueでなければErrNotApprovedを返す。
// 承認は記憶されないため、特権ステップのたびに呼び出すこと。
func (g *Gate) RequireApproval(approved bool) error {
	if !approved {
		return ErrNotApproved
	}
	return nil
}

// Grant はartifactに束縛された、stageを解放する承認トークンを発行する。
func (g *Gate) Grant(stage Stage, artifact string) (string, error) {
	tok, err := g.signer.Issue(token.Claims{
		Stage:  string(stage),
		Digest: Digest(artifact),
		RegisteredClaims: jwt.RegisteredClaims{
			ID: uuid.NewString(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue approval token: %w", err)
	}
	return tok, nil
}

// Reservation は検証済みで予約中の承認トークン。
// 後続の処理が失敗した場合はReleaseで予約を解除し、同じトークンで再試行できるようにする。
type Reservation struct {
	ledger *ledger
	id     string
}

// Release は予約を解除する。nilの場合は何もしない。
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.ledger.release(r.id)
}

// Reserve は承認トークンを検証し、使用中として予約する。
// 予約中または使用済みのトークンはErrTokenConsumedを返す。
// トークンが空の場合、strictモードでなければ検証をスキップしてnilの予約を返す。
func (g *Gate) Reserve(stage Stage, capability, artifact string) (*Reservation, error) {
	if capability == "" {
		if g.strict {
			return nil, ErrTokenRequired
		}
		return nil, nil
	}

	claims, err := g.signer.Verify(capability, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Stage != string(stage) || claims.Digest != Digest(artifact) || claims.ID == "" {
		return nil, ErrTokenMismatch
	}

	// 発行時刻からTTL経過後は署名検証で拒否されるため、それまで記録しておけばよい
	expiresAt := claims.IssuedAt.Time.Add(g.ttl)
	if !g.ledger.consume(claims.ID, expiresAt) {
		return nil, ErrTokenConsumed
	}
	return &Reservation{ledger: g.ledger, id: claims.ID}, nil
}

// Digest は成果物のBLAKE3-256ダイジェストを16進文字列で返す。
func Digest(artifact string) string {
	sum := blake3.Sum256([]byte(artifact))
	return hex.EncodeToString(sum[:])
}

// ledger は使用済みトークンIDを有効期限まで保持する。
// 期限切れエントリはconsume時にまとめて除去する。
type ledger struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

func newLedger(now func() time.Time) *ledger {
	return &ledger{used: make(map[string]time.Time), now: now}
}

// consume はidを使用済みにする。すでに使用済みの場合はfalseを返す。
func (l *ledger) consume(id string, expiresAt time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.used {
		if now.After(exp) {
			delete(l.used, k)
		}
	}

	if _, ok := l.used[id]; ok {
		return false
	}
	l.used[id] = expiresAt
	return true
}

// release はidの記録を取り消す。
func (l *ledger) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.used, id)
}

// size はテスト用。
func (l *ledger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.used)
}
