// Package config holds the two configuration layers the Supervisor composes:
// a fixed startup layer (venues, credentials, proxies, push, ports — read
// once from .env per whale-radar's config/loader.go) and a hot-reloadable
// thresholds layer (detector and gate tuning — read from YAML per the
// teacher's internal/config/guards.go and providers.go), swapped atomically
// on change so a reader observes a consistent snapshot for the duration of
// one tick.
package config

import "time"

// RestartPolicy selects what the Supervisor does when a shard exhausts its
// reconnect budget (§4.12).
type RestartPolicy string

const (
	// PolicyRestartShard restarts the exhausted shard in place.
	PolicyRestartShard RestartPolicy = "restart"
	// PolicyShutdownVenue cleanly shuts down the owning venue.
	PolicyShutdownVenue RestartPolicy = "shutdown"
)

// MarketSelector names which market types are monitored.
type MarketSelector string

const (
	MarketAll    MarketSelector = "all"
	MarketSpot   MarketSelector = "spot"
	MarketPerp   MarketSelector = "perp"
)

// VenueConfig is the immutable-after-registration description of §3's
// Venue entity.
type VenueConfig struct {
	Name                    string        `yaml:"name"`
	StreamEndpoint          string        `yaml:"stream_endpoint"`
	RESTEndpoint            string        `yaml:"rest_endpoint"`
	MarketTypes             []string      `yaml:"market_types"` // "spot", "perp"
	MaxStreamsPerConnSpot   int           `yaml:"max_streams_per_conn_spot"`
	MaxStreamsPerConnPerp   int           `yaml:"max_streams_per_conn_perp"`
	MaxConnsPerEgress5Min   int           `yaml:"max_conns_per_egress_5min"`
	APIKey                  string        `yaml:"-"` // populated from env, never from YAML
	APISecret               string        `yaml:"-"`
	// Symbols seeds the venue's wire-form symbol universe when no
	// external 24h-volume ranking feed has populated venue.Registry's
	// listSymbols yet (§4.4: listSymbols "usually" ranks by trailing
	// volume — a cold-started instance falls back to this static list).
	Symbols                 []string      `yaml:"-"`
	ReceiveIdle             time.Duration `yaml:"receive_idle"`
	DialTimeout             time.Duration `yaml:"dial_timeout"`
}

// WBIConfig tunes the Weighted Book Imbalance detector (§4.7.1).
type WBIConfig struct {
	TopK             int     `yaml:"top_k"`
	WarmupTicks      int     `yaml:"warmup_ticks"`
	DeltaTrigger     float64 `yaml:"delta_trigger"`
	LevelTrigger     float64 `yaml:"level_trigger"`
	ConfirmTicks     int     `yaml:"confirm_ticks"`
	DeltaReset       float64 `yaml:"delta_reset"`
	EMAAlpha         float64 `yaml:"ema_alpha"`
	GainFactor       float64 `yaml:"gain_factor"`
	MinSpreadBps     float64 `yaml:"min_spread_bps"`
	MaxSpreadBps     float64 `yaml:"max_spread_bps"`
	CooldownSeconds  int64   `yaml:"cooldown_seconds"`
	ZombieTTL        time.Duration `yaml:"zombie_ttl"`
	MaxTrackedSymbols int    `yaml:"max_tracked_symbols"`
}

// SlippageConfig tunes the VWAP-slippage detector (§4.7.2).
type SlippageConfig struct {
	MinNotionalSpot  float64       `yaml:"min_notional_spot"`
	MinNotionalPerp  float64       `yaml:"min_notional_perp"`
	SampleSize       int           `yaml:"sample_size"`
	SampleTTL        time.Duration `yaml:"sample_ttl"`
	MinSamples       int           `yaml:"min_samples"`
	MajorFallbackPct float64       `yaml:"major_fallback_pct"`
	MinorFallbackPct float64       `yaml:"minor_fallback_pct"`
	MajorFloorPct    float64       `yaml:"major_floor_pct"`
	MinorFloorPct    float64       `yaml:"minor_floor_pct"`
	LowCutPct        float64       `yaml:"low_cut_pct"`
	MedCutPct        float64       `yaml:"med_cut_pct"`
	HighCutPct       float64       `yaml:"high_cut_pct"`
	CooldownSeconds  int64         `yaml:"cooldown_seconds"`
	SkipTopLevels    int           `yaml:"skip_top_levels"`
	MinLevels        int           `yaml:"min_levels"`
}

// WhaleConfig tunes the whale/large-order detector (§4.7.3).
type WhaleConfig struct {
	EMAWindow            time.Duration `yaml:"ema_window"`
	NotionalRatio        float64       `yaml:"notional_ratio"`
	NotionalFloor        float64       `yaml:"notional_floor"`
	Window               time.Duration `yaml:"window"`
	MinOrdersForPattern  int           `yaml:"min_orders_for_pattern"`
	AccumDistRatio       float64       `yaml:"accum_dist_ratio"`
	WallPersistMinutes   float64       `yaml:"wall_persist_minutes"`
	StopHuntVolumeRatio  float64       `yaml:"stop_hunt_volume_ratio"`
	StopHuntRecoverySecs float64       `yaml:"stop_hunt_recovery_secs"`
}

// PumpDumpConfig tunes the pump/dump detector (§4.7.4).
type PumpDumpConfig struct {
	Window          time.Duration `yaml:"window"`
	PumpThreshold   float64       `yaml:"pump_threshold"`
	DumpThreshold   float64       `yaml:"dump_threshold"`
	CooldownSeconds int64         `yaml:"cooldown_seconds"`
}

// BasisConfig tunes the cross-venue basis detector (§4.7.5).
type BasisConfig struct {
	FreshnessWindow  time.Duration `yaml:"freshness_window"`
	AlertThreshold   float64       `yaml:"alert_threshold"`
	HighThreshold    float64       `yaml:"high_threshold"`
	CooldownSeconds  int64         `yaml:"cooldown_seconds"`
}

// OrderFlowConfig tunes the trade-based buy/sell pressure detector (§4.7.6),
// grounded on the original system's OrderFlowAnalyzer.
type OrderFlowConfig struct {
	WindowSeconds           int64   `yaml:"window_seconds"`
	RetentionMultiple       int64   `yaml:"retention_multiple"`
	BuyPressureThreshold    float64 `yaml:"buy_pressure_threshold"`
	SellPressureThreshold   float64 `yaml:"sell_pressure_threshold"`
	MinTradeCount           int     `yaml:"min_trade_count"`
	ConsecutiveAlertMinutes int64   `yaml:"consecutive_alert_minutes"`
	CooldownSeconds         int64   `yaml:"cooldown_seconds"`
}

// AlertGateConfig tunes aggregation/dedup/severity behavior (§4.8).
type AlertGateConfig struct {
	AggregationWindow time.Duration `yaml:"aggregation_window"`
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
}

// ConnectionBudgetConfig tunes C1's connection-rate gate.
type ConnectionBudgetConfig struct {
	WindowCapacity int           `yaml:"window_capacity"` // default 280
	Window         time.Duration `yaml:"window"`          // default 5m
}

// TokenBucketConfig tunes C1's REST token bucket.
type TokenBucketConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec"`
	Capacity   float64 `yaml:"capacity"`
}

// StreamPoolConfig tunes C3's shard behavior.
type StreamPoolConfig struct {
	ReconnectMinBackoff time.Duration `yaml:"reconnect_min_backoff"`
	ReconnectMaxBackoff time.Duration `yaml:"reconnect_max_backoff"`
	ReconnectJitterPct  float64       `yaml:"reconnect_jitter_pct"`
	MaxReconnects       int           `yaml:"max_reconnects"`
	ShardRetryBudget    int           `yaml:"shard_retry_budget"`
	QuietPeriod         time.Duration `yaml:"quiet_period"`
	DialBudgetRetries   int           `yaml:"dial_budget_retries"`
}

// DispatchConfig tunes C9's sinks.
type DispatchConfig struct {
	PushRateLimitPerMin int `yaml:"push_rate_limit_per_min"`
	SinkQueueDepth      int `yaml:"sink_queue_depth"`
	StoreBatchSize      int `yaml:"store_batch_size"`
}

// Thresholds is the entire hot-reloadable layer: every field here can
// change at runtime without tearing down any connection.
type Thresholds struct {
	WBI        WBIConfig
	Slippage   SlippageConfig
	Whale      WhaleConfig
	PumpDump   PumpDumpConfig
	Basis      BasisConfig
	OrderFlow  OrderFlowConfig
	AlertGate  AlertGateConfig
	Connection ConnectionBudgetConfig
	TokenBucket TokenBucketConfig
	StreamPool StreamPoolConfig
	Dispatch   DispatchConfig
}

// DefaultThresholds returns the thresholds named throughout spec.md §4.7/§4.8.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WBI: WBIConfig{
			TopK: 10, WarmupTicks: 10, DeltaTrigger: 0.7, LevelTrigger: 0.85,
			ConfirmTicks: 3, DeltaReset: 0.2, EMAAlpha: 0.2, GainFactor: 1.0,
			MinSpreadBps: 1, MaxSpreadBps: 500, CooldownSeconds: 60,
			ZombieTTL: time.Hour, MaxTrackedSymbols: 3000,
		},
		Slippage: SlippageConfig{
			MinNotionalSpot: 50000, MinNotionalPerp: 20000, SampleSize: 1000,
			SampleTTL: time.Hour, MinSamples: 100, MajorFallbackPct: 1.5,
			MinorFallbackPct: 2.0, MajorFloorPct: 0.5, MinorFloorPct: 1.0,
			LowCutPct: 0.5, MedCutPct: 2.0, HighCutPct: 10.0, CooldownSeconds: 60,
			SkipTopLevels: 1, MinLevels: 3,
		},
		Whale: WhaleConfig{
			EMAWindow: 24 * time.Hour, NotionalRatio: 0.01, NotionalFloor: 10000,
			Window: 30 * time.Minute, MinOrdersForPattern: 5, AccumDistRatio: 0.8,
			WallPersistMinutes: 5, StopHuntVolumeRatio: 3, StopHuntRecoverySecs: 10,
		},
		PumpDump: PumpDumpConfig{
			Window: 60 * time.Second, PumpThreshold: 0.05, DumpThreshold: -0.05,
			CooldownSeconds: 300,
		},
		Basis: BasisConfig{
			FreshnessWindow: 60 * time.Second, AlertThreshold: 0.01,
			HighThreshold: 0.02, CooldownSeconds: 300,
		},
		OrderFlow: OrderFlowConfig{
			WindowSeconds: 60, RetentionMultiple: 5, BuyPressureThreshold: 2.0,
			SellPressureThreshold: 0.5, MinTradeCount: 10, ConsecutiveAlertMinutes: 2,
			CooldownSeconds: 120,
		},
		AlertGate: AlertGateConfig{
			AggregationWindow: 60 * time.Second, DedupTTL: 60 * time.Second,
		},
		Connection: ConnectionBudgetConfig{WindowCapacity: 280, Window: 5 * time.Minute},
		TokenBucket: TokenBucketConfig{RatePerSec: 20, Capacity: 1000},
		StreamPool: StreamPoolConfig{
			ReconnectMinBackoff: time.Second, ReconnectMaxBackoff: 60 * time.Second,
			ReconnectJitterPct: 0.25, MaxReconnects: 10, ShardRetryBudget: 3,
			QuietPeriod: 5 * time.Second, DialBudgetRetries: 3,
		},
		Dispatch: DispatchConfig{PushRateLimitPerMin: 30, SinkQueueDepth: 512, StoreBatchSize: 50},
	}
}

// StartupConfig is the fixed layer, read once at process start.
type StartupConfig struct {
	Venues             []VenueConfig
	Proxies            []string // scheme://[user:pass@]host:port
	MarketSelector     MarketSelector
	StableQuoteAssets  []string // e.g. USDT, USDC, BUSD treated as interchangeable
	AutoConvertStable  bool
	MetricsPort        int
	AdminPort          int
	LogFilePath        string
	RestartPolicy      RestartPolicy
	ShutdownDrain      time.Duration
	PushNormalToken    string
	PushNormalChatID   int64
	PushUrgentToken    string
	PushUrgentChatID   int64
	FirebaseCredsFile  string
	RedisURL           string
	PostgresDSN        string
	ThresholdsFilePath string
	ReloadSignalName   string // e.g. "SIGHUP"
	ReloadPollInterval time.Duration
}
