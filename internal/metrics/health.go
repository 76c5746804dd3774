package metrics

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// ShardSnapshot is one shard's state as reported to the health endpoint.
// Grounded on internal/interfaces/http/health.go's ProviderHealth summary,
// generalized from provider health to stream-shard connection state.
type ShardSnapshot struct {
	ID         string `json:"id"`
	Venue      string `json:"venue"`
	State      string `json:"state"`
	Reconnects int    `json:"reconnects"`
}

// HealthHandler serves §4.11's /health endpoint: liveness plus a per-shard
// connection state summary.
type HealthHandler struct {
	startTime time.Time
	version   string
	shards    func() []ShardSnapshot
}

// NewHealthHandler builds a health handler. shards is invoked fresh on
// every request; it should be cheap (a snapshot copy, not a blocking call).
func NewHealthHandler(version string, shards func() []ShardSnapshot) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), version: version, shards: shards}
}

// HealthResponse is the /health JSON body.
type HealthResponse struct {
	Status    string          `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time       `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Version   string          `json:"version"`
	System    SystemInfo      `json:"system"`
	Shards    []ShardSnapshot `json:"shards"`
	Summary   ShardSummary    `json:"shard_summary"`
}

// SystemInfo is runtime process information.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// ShardSummary aggregates shard state counts for a one-glance status.
type ShardSummary struct {
	Total        int `json:"total"`
	Streaming    int `json:"streaming"`
	Reconnecting int `json:"reconnecting"`
	Disconnected int `json:"disconnected"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shards := h.shards()
	summary := ShardSummary{Total: len(shards)}
	for _, s := range shards {
		switch s.State {
		case "streaming":
			summary.Streaming++
		case "reconnecting":
			summary.Reconnecting++
		default:
			summary.Disconnected++
		}
	}

	status := "healthy"
	if summary.Total > 0 {
		switch {
		case summary.Streaming == 0:
			status = "unhealthy"
		case summary.Reconnecting > 0:
			status = "degraded"
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime).String(),
		Version:   h.version,
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAllocBytes: mem.Alloc,
			NumGC:         mem.NumGC,
		},
		Shards:  shards,
		Summary: summary,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	switch status {
	case "unhealthy":
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
