// Package errkind names the recoverable error categories the pipeline
// distinguishes between, so callers can branch with errors.Is instead of
// string matching.
package errkind

import "errors"

var (
	// ErrTransientNetwork covers dial refusals, reset reads, and other
	// conditions that resolve with a reconnect.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRateLimited means the peer rejected a request with a retryable
	// rate-limit signal (HTTP 429, weight rejection).
	ErrRateLimited = errors.New("rate limited by peer")

	// ErrSequenceGap means an incremental depth update arrived out of
	// order relative to the ladder's last applied sequence.
	ErrSequenceGap = errors.New("sequence gap in incremental update")

	// ErrProtocolViolation means a frame could not be decoded or named an
	// event the pipeline does not understand.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrConfigInvalid means a threshold or credential failed validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrSinkOverflow means a dispatch sink's bounded queue was full.
	ErrSinkOverflow = errors.New("sink queue overflow")

	// ErrShardExhausted means a stream shard exhausted its reconnect
	// budget and must be raised to the Supervisor.
	ErrShardExhausted = errors.New("shard reconnect budget exhausted")

	// ErrInsufficientDepth means a ladder query could not satisfy the
	// caller's minimum level requirement.
	ErrInsufficientDepth = errors.New("insufficient depth")
)

// Wrap annotates err with msg while preserving errors.Is matching against
// the sentinel kind.
func Wrap(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg + ": " + w.kind.Error() }
func (w *wrapped) Unwrap() error { return w.kind }
