package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type latencyKey struct {
	handler string
	method  string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type httpStats struct {
	mu       sync.Mutex
	requests map[requestKey]uint64
	errors   map[latencyKey]uint64
	latency  map[latencyKey]*histogram
}

var httpCollector = &httpStats{
	requests: make(map[requestKey]uint64),
	errors:   make(map[latencyKey]uint64),
	latency:  make(map[latencyKey]*histogram),
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c := httpCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++
	key := latencyKey{handler: handler, method: method}
	if status >= 500 {
		c.errors[key]++
	}

	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram()
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
	// Values above the last bucket land in +Inf only, tracked by h.count.
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, httpCollector.render()+renderAutomation())
	})
}

func (c *httpStats) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqKeys := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		reqKeys = append(reqKeys, key)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].handler != reqKeys[j].handler {
			return reqKeys[i].handler < reqKeys[j].handler
		}
		if reqKeys[i].method != reqKeys[j].method {
			return reqKeys[i].method < reqKeys[j].method
		}
		return reqKeys[i].code < reqKeys[j].code
	})

	errKeys := make([]latencyKey, 0, len(c.errors))
	for key := range c.errors {
		errKeys = append(errKeys, key)
	}
	sortLatencyKeys(errKeys)

	latKeys := make([]latencyKey, 0, len(c.latency))
	for key := range c.latency {
		latKeys = append(latKeys, key)
	}
	sortLatencyKeys(latKeys)

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP nexus_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE nexus_http_requests_total counter\n")
	for _, key := range reqKeys {
		builder.WriteString(fmt.Sprintf("nexus_http_requests_total{handler=%q,method=%q,code=%q} %d\n",
			escape(key.handler), escape(key.method), escape(key.code), c.requests[key]))
	}

	builder.WriteString("# HELP nexus_http_request_errors_total Total number of HTTP requests that resulted in a server error.\n")
	builder.WriteString("# TYPE nexus_http_request_errors_total counter\n")
	for _, key := range errKeys {
		builder.WriteString(fmt.Sprintf("nexus_http_request_errors_total{handler=%q,method=%q} %d\n",
			escape(key.handler), escape(key.method), c.errors[key]))
	}

	builder.WriteString("# HELP nexus_http_request_duration_seconds HTTP request duration in seconds.\n")
	builder.WriteString("# TYPE nexus_http_request_duration_seconds histogram\n")
	for _, key := range latKeys {
		hist := c.latency[key]
		for idx, bound := range hist.buckets {
			builder.WriteString(fmt.Sprintf("nexus_http_request_duration_seconds_bucket{handler=%q,method=%q,le=%q} %d\n",
				escape(key.handler), escape(key.method), formatFloat(bound), hist.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("nexus_http_request_duration_seconds_bucket{handler=%q,method=%q,le=\"+Inf\"} %d\n",
			escape(key.handler), escape(key.method), hist.count))
		builder.WriteString(fmt.Sprintf("nexus_http_request_duration_seconds_sum{handler=%q,method=%q} %s\n",
			escape(key.handler), escape(key.method), formatFloat(hist.sum)))
		builder.WriteString(fmt.Sprintf("nexus_http_request_duration_seconds_count{handler=%q,method=%q} %d\n",
			escape(key.handler), escape(key.method), hist.count))
	}

	return builder.String()
}

func sortLatencyKeys(keys []latencyKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].handler != keys[j].handler {
			return keys[i].handler < keys[j].handler
		}
		return keys[i].method < keys[j].method
	})
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
