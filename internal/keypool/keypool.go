// Package keypool rotates through the configured upstream API keys so
// request load spreads across per-key quotas.
package keypool

import (
	"strings"
	"sync"
)

// Pool hands out keys round-robin. The zero value is unusable; construct
// with New. Pool is safe for concurrent use.
type Pool struct {
	mu   sync.Mutex
	keys []string
	next int
}

// New builds a pool from the given keys. Empty and whitespace-only
// entries are dropped; the relative order of the rest is preserved.
func New(keys []string) *Pool {
	kept := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	return &Pool{keys: kept}
}

// Next returns the next key in rotation. The second return is false when
// no keys are configured.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", false
	}
	key := p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)
	return key, true
}

// Size reports how many keys are in rotation.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Keys returns a copy of the keys in rotation order.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
