package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/growthdesk/internal/model"
)

// レート制限の区分。
const (
	TierGeneral = "general"
	TierImage   = "image"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralPerMinute int           // 生成API全般の上限（req/min/クライアント）。0以下で無効
	ImagePerMinute   int           // 画像生成の上限（req/min/クライアント）。0以下で無効
	CleanupInterval  time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralPerMinute: 60,
		ImagePerMinute:   5,
		CleanupInterval:  5 * time.Minute,
	}
}

// RateLimitRecorder はレート制限による拒否を記録するインターフェース。
type RateLimitRecorder interface {
	RecordRateLimited(tier string)
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// tierLimiters は1つの区分に属するクライアント別リミッターの集合。
type tierLimiters struct {
	name      string
	perMinute int
	limit     rate.Limit
	burst     int

	mu       sync.RWMutex
	limiters map[string]*clientLimiter
}

func newTierLimiters(name string, perMinute int) *tierLimiters {
	return &tierLimiters{
		name:      name,
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		limiters:  make(map[string]*clientLimiter),
	}
}

func (t *tierLimiters) enabled() bool {
	return t.burst > 0
}

// retryAfterSeconds はトークンが1つ補充されるまでの秒数を切り上げで返す。
func (t *tierLimiters) retryAfterSeconds() int {
	return (60 + t.perMinute - 1) / t.perMinute
}

// getOrCreate はクライアントのリミッターを取得または作成する。
func (t *tierLimiters) getOrCreate(key string) *rate.Limiter {
	t.mu.RLock()
	cl, exists := t.limiters[key]
	t.mu.RUnlock()

	if exists {
		t.mu.Lock()
		cl.lastAccess = time.Now()
		t.mu.Unlock()
		return cl.limiter
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// ダブルチェック
	if cl, exists := t.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(t.limit, t.burst)
	t.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (t *tierLimiters) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.limiters)
}

func (t *tierLimiters) evictOlderThan(ttl time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, cl := range t.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(t.limiters, key)
		}
	}
}

// RateLimiter はクライアントごとのレート制限を管理する。
// クライアントはトークンのメールアドレス、なければ接続元IPで識別する。
// 生成API全般と画像生成の2区分を独立に管理する。
type RateLimiter struct {
	config   RateLimiterConfig
	recorder RateLimitRecorder

	general *tierLimiters
	image   *tierLimiters

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
// recorderがnilの場合は記録しない。
func NewRateLimiter(config RateLimiterConfig, recorder RateLimitRecorder) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	rl := &RateLimiter{
		config:   config,
		recorder: recorder,
		general:  newTierLimiters(TierGeneral, config.GeneralPerMinute),
		image:    newTierLimiters(TierImage, config.ImagePerMinute),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
// 複数回呼び出しても安全。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware は生成API全般のレート制限ミドルウェアを返す。
// IdentityMiddlewareの後に配置すると、認証済みクライアントはメールアドレス単位で制限される。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// ImageMiddleware は画像生成専用のレート制限ミドルウェアを返す。
// 生成API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ImageMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.image)
}

// GeneralLimiterCount は現在管理されている生成API全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// ImageLimiterCount は現在管理されている画像生成リミッターのエントリ数を返す。
func (rl *RateLimiter) ImageLimiterCount() int {
	return rl.image.count()
}

func (rl *RateLimiter) middleware(tier *tierLimiters) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !tier.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !tier.getOrCreate(key).Allow() {
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(tier.name)
				}
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", tier.name),
				)
				writeRateLimitResponse(w, tier.retryAfterSeconds())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey はレート制限の識別子を返す。
// メールアドレスとIPが衝突しないよう接頭辞を付ける。
func clientKey(r *http.Request) string {
	if subject, ok := SubjectFromContext(r.Context()); ok {
		return "user:" + subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()
	rl.general.evictOlderThan(ttl, now)
	rl.image.evictOlderThan(ttl, now)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
