package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Jaden-Nix/gravity-nexus/internal/actionlog"
	"github.com/Jaden-Nix/gravity-nexus/internal/auth"
	"github.com/Jaden-Nix/gravity-nexus/internal/hub"
	"github.com/Jaden-Nix/gravity-nexus/internal/observability/metrics"
	"github.com/Jaden-Nix/gravity-nexus/internal/reactive"
	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
)

// Server 负责暴露 REST 接口，供运维侧查询与手工触发。
type Server struct {
	addr     string
	agent    *reactive.Agent
	vault    *vault.Vault
	store    actionlog.Store
	registry *reactive.Registry
	guard    *auth.Guard
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, agent *reactive.Agent, v *vault.Vault, store actionlog.Store, registry *reactive.Registry, guard *auth.Guard) *Server {
	return &Server{addr: addr, agent: agent, vault: v, store: store, registry: registry, guard: guard}
}

// Handler 返回完整的路由处理器，便于测试时直接挂到 httptest。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/actions", s.instrument("actions", s.handleActions))
	mux.HandleFunc("/api/v1/actions/stats", s.instrument("action_stats", s.handleActionStats))
	mux.HandleFunc("/api/v1/vault", s.instrument("vault", s.handleVault))
	mux.HandleFunc("/api/v1/subscriptions", s.instrument("subscriptions", s.handleSubscriptions))

	if s.guard.Enabled() {
		return s.guard.Middleware(mux)
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleTriggerAction(w, r)
	case http.MethodGet:
		s.handleListActions(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// triggerRequest 为手工触发的请求体。目前只支持 REBALANCE。
type triggerRequest struct {
	ActionType string `json:"action_type"`
}

func (s *Server) handleTriggerAction(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if req.ActionType != "" && req.ActionType != hub.ActionRebalance {
		http.Error(w, "不支持的动作类型", http.StatusBadRequest)
		return
	}

	record, err := s.agent.Evaluate(r.Context(), actionlog.TriggerManual, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, record)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "动作日志未初始化", http.StatusServiceUnavailable)
		return
	}

	var opts []actionlog.ListOption
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, actionlog.WithLimit(parsed))
		}
	}
	if raw := r.URL.Query().Get("trigger"); raw != "" {
		opts = append(opts, actionlog.WithTriggers(actionlog.Trigger(raw)))
	}
	if raw := r.URL.Query().Get("ok"); raw != "" {
		if ok, err := strconv.ParseBool(raw); err == nil {
			opts = append(opts, actionlog.WithOutcome(ok))
		}
	}

	records, err := s.store.List(r.Context(), actionlog.BuildListOptions(opts))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*actionlog.Record{}
	}
	writeJSON(w, records)
}

func (s *Server) handleActionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "动作日志未初始化", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.store.Stats(r.Context(), actionlog.ListOptions{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// vaultView 为金库状态的对外表示。
type vaultView struct {
	Asset  string     `json:"asset"`
	Paused bool       `json:"paused"`
	Pools  []poolView `json:"pools"`
	Total  string     `json:"total"`
}

type poolView struct {
	Index   int    `json:"index"`
	Rate    uint64 `json:"rate"`
	Balance string `json:"balance"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.vault == nil {
		http.Error(w, "金库未初始化", http.StatusServiceUnavailable)
		return
	}

	pools, err := s.vault.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := vaultView{
		Asset:  s.vault.Asset(),
		Paused: s.vault.Paused(),
		Pools:  make([]poolView, 0, len(pools)),
	}
	total := new(big.Int)
	for _, pool := range pools {
		balance := "0"
		if pool.Balance != nil {
			balance = pool.Balance.String()
			total.Add(total, pool.Balance)
		}
		view.Pools = append(view.Pools, poolView{Index: pool.Index, Rate: pool.Rate, Balance: balance})
	}
	view.Total = total.String()
	writeJSON(w, view)
}

// subscribeRequest 为登记订阅的请求体。
type subscribeRequest struct {
	Ledger     string `json:"ledger"`
	Source     string `json:"source"`
	Selector   string `json:"selector"`
	Subscriber string `json:"subscriber"`
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "订阅注册表未初始化", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.registry.List())
	case http.MethodPost:
		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
		if req.Ledger == "" || !common.IsHexAddress(req.Source) || !strings.HasPrefix(req.Selector, "0x") {
			http.Error(w, "订阅参数不合法", http.StatusBadRequest)
			return
		}
		sub := s.registry.Subscribe(
			req.Ledger,
			common.HexToAddress(req.Source),
			common.HexToHash(req.Selector),
			common.HexToAddress(req.Subscriber),
		)
		writeJSON(w, sub)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 记录每个接口的请求指标。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
