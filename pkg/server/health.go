package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"cosmterm/pkg/logging"
)

const probeTimeout = 5 * time.Second

// Probe paths per upstream.
const (
	lcdProbePath = "/cosmos/base/tendermint/v1beta1/node_info"
	rpcProbePath = "/status"
)

// UpstreamStatus is one upstream's entry in /api/proxy-status.
type UpstreamStatus struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// ProxyStatus is the /api/proxy-status body.
type ProxyStatus struct {
	LCD UpstreamStatus `json:"lcd"`
	RPC UpstreamStatus `json:"rpc"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.probeUpstreams(r.Context()))
}

// probe issues one GET against base+path.
func (s *Server) probe(ctx context.Context, target, base, path string) UpstreamStatus {
	st := UpstreamStatus{URL: base}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinPath(base, path), nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	st.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		st.Error = err.Error()
		upstreamUp.WithLabelValues(target).Set(0)
		return st
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	st.StatusCode = resp.StatusCode
	st.Reachable = resp.StatusCode < http.StatusInternalServerError
	if st.Reachable {
		upstreamUp.WithLabelValues(target).Set(1)
	} else {
		upstreamUp.WithLabelValues(target).Set(0)
	}
	return st
}

func (s *Server) probeUpstreams(ctx context.Context) ProxyStatus {
	var ps ProxyStatus
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ps.LCD = s.probe(ctx, targetLCD, s.cfg.LCDHost, lcdProbePath)
	}()
	go func() {
		defer wg.Done()
		ps.RPC = s.probe(ctx, targetRPC, s.cfg.RPCHost, rpcProbePath)
	}()
	wg.Wait()
	return ps
}

// startupProbe logs upstream reachability once. Failures are not fatal.
func (s *Server) startupProbe(ctx context.Context) {
	ps := s.probeUpstreams(ctx)
	for _, u := range []struct {
		name string
		st   UpstreamStatus
	}{{targetLCD, ps.LCD}, {targetRPC, ps.RPC}} {
		ev := s.logger.Info()
		if !u.st.Reachable {
			ev = s.logger.Warn()
		}
		ev.Str(logging.FieldTarget, u.name).
			Str(logging.FieldURL, u.st.URL).
			Bool("reachable", u.st.Reachable).
			Int(logging.FieldStatus, u.st.StatusCode).
			Int64("latency_ms", u.st.LatencyMS).
			Str("error", u.st.Error).
			Msg("Upstream probe")
	}
}
