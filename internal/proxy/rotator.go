// Package proxy implements C2: round-robin egress identity selection with
// credential-redacted display names, following the teacher's
// internal/secrets/redaction.go pattern of stripping sensitive substrings
// before anything reaches a log line.
package proxy

import (
	"net/url"
	"sync"
	"sync/atomic"
)

// Identity is one egress endpoint: scheme://[user:pass@]host:port.
type Identity struct {
	Raw      string
	useCount uint64
}

// UseCount returns how many times Next() has returned this identity.
func (i *Identity) UseCount() uint64 { return atomic.LoadUint64(&i.useCount) }

// Display returns the identity with any embedded credentials stripped, safe
// to place in a log line.
func (i *Identity) Display() string {
	u, err := url.Parse(i.Raw)
	if err != nil {
		return "invalid-proxy"
	}
	u.User = nil
	return u.String()
}

// Rotator cycles through a configured list of egress identities. An empty
// rotator means "dial directly" — callers check Empty() and skip proxying.
type Rotator struct {
	mu        sync.Mutex
	identities []*Identity
	next      int
}

// NewRotator builds a rotator from raw proxy URLs. Empty entries are
// skipped; other entries are kept unvalidated (Display reports one that
// does not parse as "invalid-proxy"). This package has no logger
// dependency by design.
func NewRotator(raw []string) *Rotator {
	r := &Rotator{}
	for _, s := range raw {
		if s == "" {
			continue
		}
		r.identities = append(r.identities, &Identity{Raw: s})
	}
	return r
}

// Empty reports whether no egress identities are configured.
func (r *Rotator) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identities) == 0
}

// Next returns the next identity round-robin, or nil if empty.
func (r *Rotator) Next() *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.identities) == 0 {
		return nil
	}
	id := r.identities[r.next]
	r.next = (r.next + 1) % len(r.identities)
	atomic.AddUint64(&id.useCount, 1)
	return id
}

// All returns a snapshot of configured identities (diagnostics/admin HTTP).
func (r *Rotator) All() []*Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Identity, len(r.identities))
	copy(out, r.identities)
	return out
}
