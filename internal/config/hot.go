package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ChangeCallback is invoked with the new snapshot after a successful reload.
type ChangeCallback func(Thresholds)

// Hot holds a read-mostly Thresholds snapshot swapped atomically on reload,
// following §4.10/§5: readers hold the snapshot for the duration of one
// tick rather than re-reading fields one at a time.
type Hot struct {
	path      string
	snapshot  atomic.Pointer[Thresholds]
	lastMtime time.Time
	callbacks []ChangeCallback
	log       zerolog.Logger
}

// NewHot loads the initial snapshot and returns a Hot config handle.
func NewHot(path string, log zerolog.Logger) (*Hot, error) {
	t, err := LoadThresholds(path)
	if err != nil {
		return nil, err
	}
	h := &Hot{path: path, log: log}
	h.snapshot.Store(&t)
	if fi, statErr := os.Stat(path); statErr == nil {
		h.lastMtime = fi.ModTime()
	}
	return h, nil
}

// Get returns the current snapshot. Safe for concurrent use.
func (h *Hot) Get() Thresholds {
	return *h.snapshot.Load()
}

// OnChange registers a callback invoked after every successful reload.
func (h *Hot) OnChange(cb ChangeCallback) {
	h.callbacks = append(h.callbacks, cb)
}

// Reload re-reads the file unconditionally. On parse/validate failure the
// previous snapshot is kept and the error is logged, never propagated to
// callers mid-tick (§7: configuration errors on hot-reload keep prior value).
func (h *Hot) Reload() {
	t, err := LoadThresholds(h.path)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.path).Msg("hot config reload failed, keeping prior snapshot")
		return
	}
	h.snapshot.Store(&t)
	if fi, statErr := os.Stat(h.path); statErr == nil {
		h.lastMtime = fi.ModTime()
	}
	for _, cb := range h.callbacks {
		cb(t)
	}
	h.log.Info().Str("path", h.path).Msg("hot config reloaded")
}

// Watch polls the file's mtime every interval and reloads on change, until
// ctx is cancelled. A receive on signalCh forces an immediate reload (for
// an explicit signal-triggered reload such as SIGHUP), decoupling the
// trigger source from the polling loop.
func (h *Hot) Watch(ctx context.Context, interval time.Duration, signalCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(h.path)
			if err != nil {
				continue
			}
			if fi.ModTime().After(h.lastMtime) {
				h.Reload()
			}
		case <-signalCh:
			h.Reload()
		}
	}
}
