package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cryptosurveil/surveil/internal/errkind"
)

// LoadStartup reads the fixed layer from a .env file (if present) and the
// process environment, following whale-radar's config/loader.go: godotenv
// first, then os.Getenv with typed parsing and sane defaults so a missing
// .env file never aborts startup.
func LoadStartup(envPath string) (*StartupConfig, error) {
	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		// Missing .env is not fatal — the process may be configured purely
		// via the environment (container deployments).
		_ = err
	}

	cfg := &StartupConfig{
		MarketSelector:     MarketSelector(envOr("MONITOR_MARKETS", "all")),
		AutoConvertStable:  envBool("AUTO_CONVERT_STABLE", true),
		StableQuoteAssets:  envList("STABLE_QUOTE_ASSETS", []string{"USDT", "USDC", "BUSD", "FDUSD"}),
		MetricsPort:        envInt("METRICS_PORT", 9090),
		AdminPort:          envInt("ADMIN_PORT", 9091),
		LogFilePath:        envOr("LOG_FILE", ""),
		RestartPolicy:      RestartPolicy(envOr("SHARD_RESTART_POLICY", string(PolicyRestartShard))),
		ShutdownDrain:      envDuration("SHUTDOWN_DRAIN", 5*time.Second),
		PushNormalToken:    envOr("PUSH_NORMAL_TOKEN", ""),
		PushNormalChatID:   envInt64("PUSH_NORMAL_CHAT_ID", 0),
		PushUrgentToken:    envOr("PUSH_URGENT_TOKEN", ""),
		PushUrgentChatID:   envInt64("PUSH_URGENT_CHAT_ID", 0),
		FirebaseCredsFile:  envOr("FIREBASE_CREDENTIALS_FILE", ""),
		RedisURL:           envOr("REDIS_URL", ""),
		PostgresDSN:        envOr("PG_DSN", ""),
		ThresholdsFilePath: envOr("THRESHOLDS_FILE", "config/thresholds.yaml"),
		ReloadSignalName:   envOr("RELOAD_SIGNAL", "SIGHUP"),
		ReloadPollInterval: envDuration("RELOAD_POLL_INTERVAL", 5*time.Second),
		Proxies:            envList("PROXY_LIST", nil),
	}

	venueNames := envList("VENUES", []string{"binance", "okx", "coinbase"})
	for _, name := range venueNames {
		upper := strings.ToUpper(name)
		cfg.Venues = append(cfg.Venues, VenueConfig{
			Name:                  name,
			StreamEndpoint:        envOr(upper+"_STREAM_ENDPOINT", ""),
			RESTEndpoint:          envOr(upper+"_REST_ENDPOINT", ""),
			MarketTypes:           envList(upper+"_MARKETS", []string{"spot"}),
			MaxStreamsPerConnSpot: envInt(upper+"_MAX_STREAMS_SPOT", 75),
			MaxStreamsPerConnPerp: envInt(upper+"_MAX_STREAMS_PERP", 25),
			MaxConnsPerEgress5Min: envInt(upper+"_MAX_CONNS_5MIN", 280),
			APIKey:                envOr(upper+"_API_KEY", ""),
			APISecret:             envOr(upper+"_API_SECRET", ""),
			ReceiveIdle:           envDuration(upper+"_RECEIVE_IDLE", 90*time.Second),
			DialTimeout:           envDuration(upper+"_DIAL_TIMEOUT", 10*time.Second),
			Symbols:               envList(upper+"_SYMBOLS", nil),
		})
	}

	if len(cfg.Venues) == 0 {
		return nil, errkind.Wrap(errkind.ErrConfigInvalid, "no venues configured")
	}

	return cfg, nil
}

// LoadThresholds reads the hot-reloadable layer from a YAML file, falling
// back to DefaultThresholds when the file does not exist yet (the process
// must be able to cold-start with no on-disk state beyond credentials).
func LoadThresholds(path string) (Thresholds, error) {
	out := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, errkind.Wrap(errkind.ErrConfigInvalid, "parse thresholds yaml: "+err.Error())
	}
	if err := out.Validate(); err != nil {
		return out, errkind.Wrap(errkind.ErrConfigInvalid, err.Error())
	}
	return out, nil
}

// Validate enforces the invariants a bad hot-reload must not be allowed to
// install (§7: "on hot-reload, keep prior value and log").
func (t Thresholds) Validate() error {
	if t.WBI.ConfirmTicks <= 0 {
		return fmt.Errorf("wbi.confirm_ticks must be positive")
	}
	if t.Slippage.LowCutPct <= 0 || t.Slippage.MedCutPct <= t.Slippage.LowCutPct || t.Slippage.HighCutPct <= t.Slippage.MedCutPct {
		return fmt.Errorf("slippage severity cuts must be strictly increasing")
	}
	if t.TokenBucket.RatePerSec <= 0 || t.TokenBucket.Capacity <= 0 {
		return fmt.Errorf("token bucket rate and capacity must be positive")
	}
	if t.Connection.WindowCapacity <= 0 {
		return fmt.Errorf("connection window capacity must be positive")
	}
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
