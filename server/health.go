package server

import (
	"net/http"
	"time"

	"github.com/volk7/alerting/controller"
)

const tickStalenessThreshold = 5 * time.Second

type healthResponse struct {
	Status        string  `json:"status"`
	AlarmCount    int     `json:"alarm_count"`
	TickAgeMS     int64   `json:"tick_age_ms"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}

// handleHealth reports index population and tick-loop liveness. A
// 503 with status=degraded signals an operator that the tick loop has
// stalled, before any alarm actually misses its fire time.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.ticker.Stats()

	var tickAge time.Duration
	if stats.LastTickAt.IsZero() {
		tickAge = tickStalenessThreshold
	} else {
		tickAge = time.Since(stats.LastTickAt)
	}

	resp := healthResponse{
		Status:     "ok",
		AlarmCount: s.index.Len(),
		TickAgeMS:  tickAge.Milliseconds(),
	}
	if mem, err := controller.ReadHostMemory(); err == nil {
		resp.MemoryPercent = mem.PercentUsed
	}

	if tickAge > tickStalenessThreshold {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
