/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package session

import (
	"sync"
	"time"
)

// Dedup remembers ids for a while so redelivered webhook updates are
// processed once.
type Dedup struct {
	mu   sync.Mutex
	seen map[int64]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{seen: map[int64]time.Time{}, ttl: ttl, now: time.Now}
}

// First records id and reports whether it was not seen within the ttl.
func (d *Dedup) First(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if at, ok := d.seen[id]; ok && now.Sub(at) <= d.ttl {
		return false
	}
	d.seen[id] = now
	return true
}

func (d *Dedup) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	n := 0
	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
			n++
		}
	}
	return n
}
