package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosmterm/pkg/logging"

	"github.com/rs/zerolog"
)

const (
	targetLCD = "lcd"
	targetRPC = "rpc"

	lcdPrefix = "/api/lcd"
	rpcPrefix = "/api/rpc"
)

// ProxyError is the body of every 502.
type ProxyError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Target  string `json:"target"`
}

func sendProxyError(w http.ResponseWriter, target string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(ProxyError{Error: "Proxy error", Message: err.Error(), Target: target})
}

// statusRecorder captures the status code written by the reverse proxy.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// stripPrefix maps /api/lcd/x to /x. The bare prefix maps to /.
func stripPrefix(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}

func joinPath(base, rest string) string {
	base = strings.TrimRight(base, "/")
	return base + rest
}

// newUpstreamProxy forwards everything under prefix to target with the prefix
// removed. Method, query, body and end-to-end headers pass through.
func newUpstreamProxy(name, prefix string, target *url.URL, timeout time.Duration, logger zerolog.Logger) http.Handler {
	log := logger.With().Str(logging.FieldTarget, name).Logger()

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			raw := joinPath(target.EscapedPath(), stripPrefix(pr.In.URL.EscapedPath(), prefix))
			p, err := url.PathUnescape(raw)
			if err != nil {
				p = raw
			}
			pr.Out.URL.Path = p
			pr.Out.URL.RawPath = raw
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = target.Host
		},
		ModifyResponse: func(resp *http.Response) error {
			// CORS is answered by this server.
			for k := range resp.Header {
				if strings.HasPrefix(k, "Access-Control-") {
					resp.Header.Del(k)
				}
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			proxyErrorsTotal.WithLabelValues(name).Inc()
			log.Warn().Err(err).Str(logging.FieldMethod, r.Method).Str(logging.FieldPath, r.URL.Path).Msg("Upstream request failed")
			sendProxyError(w, name, err)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		rp.ServeHTTP(rec, r)
		proxyLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		proxyRequestsTotal.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()

		log.Debug().
			Str(logging.FieldMethod, r.Method).
			Str(logging.FieldPath, r.URL.Path).
			Int(logging.FieldStatus, rec.status).
			Dur(logging.FieldLatency, time.Since(start)).
			Msg("Proxied request")
	})
}

func parseUpstream(name, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid %s host %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid %s host %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid %s host %q: missing host", name, raw)
	}
	return u, nil
}
