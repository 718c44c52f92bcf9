package sim

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/superfly/rpool/pool"
)

// StatsResp is the body of GET /stats.
type StatsResp struct {
	Pool    pool.Stats `json:"pool"`
	Clients Counters   `json:"clients"`
}

// NewServer returns an HTTP server exposing the simulation's statistics.
func NewServer(s *Sim, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:           addr,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 4096,
		Handler:        mux,
	}
}

func (s *Sim) handleStats(w http.ResponseWriter, req *http.Request) {
	resp := StatsResp{
		Pool:    s.pool.Stats(),
		Clients: s.Counters(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("sim: writing stats", zap.Error(err))
	}
}
