package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/moviefav/internal/model"
)

// KeyFunc はレート制限の単位となるクライアントキーをリクエストから求める。
type KeyFunc func(r *http.Request) string

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Requests        int           // ウィンドウあたりの許容リクエスト数（バーストサイズを兼ねる）
	Window          time.Duration // Requestsを補充する期間
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
	KeyFunc         KeyFunc       // nilの場合はクライアントIPを使用する
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 15分あたり100リクエスト。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Requests:        100,
		Window:          15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントごとのレート制限を管理する。
type RateLimiter struct {
	config  RateLimiterConfig
	limit   rate.Limit
	keyFunc KeyFunc

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	defaults := DefaultRateLimiterConfig()
	if config.Requests <= 0 {
		config.Requests = defaults.Requests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(r *http.Request) string { return "ip:" + ClientIP(r) }
	}

	rl := &RateLimiter{
		config:   config,
		limit:    rate.Limit(float64(config.Requests) / config.Window.Seconds()),
		keyFunc:  keyFunc,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware はレート制限ミドルウェアを返す。
// 上限を超えたリクエストには429とRetry-Afterヘッダーを返す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)

			if !rl.getOrCreateLimiter(key).Allow() {
				writeRateLimitResponse(w, rl.limit)
				slog.Warn("rate limit exceeded", slog.String("client_key", key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) getOrCreateLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, exists := rl.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.config.Requests)
	rl.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はトークンが満タンまで回復したと見なせるエントリを削除する。
// 削除後に作り直したリミッターも満タンで始まるため、制限の効果は変わらない。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.Window
	if ttl < rl.config.CleanupInterval*2 {
		ttl = rl.config.CleanupInterval * 2
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

// NewUserOrIPKeyFunc は有効なベアラートークンを持つリクエストをユーザー単位、
// それ以外をクライアントIP単位で制限するKeyFuncを返す。
// 検証結果はリクエスト状態に記録され、後段の認証ミドルウェアが再利用する。
func NewUserOrIPKeyFunc(verifier TokenVerifier) KeyFunc {
	return func(r *http.Request) string {
		if userID, ok := verifyBearer(r, verifier); ok {
			return "user:" + userID
		}
		return "ip:" + ClientIP(r)
	}
}

// ClientIP はRemoteAddrからポートを除いたアドレスを返す。
// リバースプロキシ配下ではchiのRealIPミドルウェアでRemoteAddrを書き換えておくこと。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが1つ補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitExceededError())
}
