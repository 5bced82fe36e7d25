package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	loggerpkg "github.com/Jaden-Nix/gravity-nexus/pkg/logger"
)

// Guard 实现运维接口的静态令牌鉴权。令牌在配置文件中给出，
// 未配置任何令牌时鉴权关闭。
type Guard struct {
	tokens map[string]struct{}
}

// NewGuard 创建令牌鉴权器。
func NewGuard(tokens []string) *Guard {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			set[token] = struct{}{}
		}
	}
	return &Guard{tokens: set}
}

// Enabled 返回是否启用了鉴权。
func (g *Guard) Enabled() bool {
	return g != nil && len(g.tokens) > 0
}

// Authenticate 校验 Authorization 头中的 Bearer 令牌。
func (g *Guard) Authenticate(header string) bool {
	if !g.Enabled() {
		return true
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	token = strings.TrimSpace(token)
	for candidate := range g.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// Middleware 返回一个 HTTP 中间件：鉴权失败直接拒绝，
// 通过的请求记入审计日志。
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Authenticate(r.Header.Get("Authorization")) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			loggerpkg.Audit().Warn("access_denied",
				"path", r.URL.Path,
				"method", r.Method,
			)
			return
		}
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r)
		loggerpkg.Audit().Info("api_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", aw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// auditWriter 包装 http.ResponseWriter 以捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层实现。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
