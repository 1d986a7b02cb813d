package provider

import "time"

// Policy bounds the in-memory cache. Capacity limits the number of entries
// (zero means unbounded) by evicting the least recently used Ready entry;
// TTL expires Ready entries (zero means never). Pending entries are never
// evicted.
type Policy struct {
	Capacity int
	TTL      time.Duration
}

func NoEviction() Policy {
	return Policy{}
}

func LRU(capacity int) Policy {
	return Policy{Capacity: capacity}
}

func TTL(ttl time.Duration) Policy {
	return Policy{TTL: ttl}
}

func (p Policy) expired(readyAt, now time.Time) bool {
	return p.TTL > 0 && now.Sub(readyAt) >= p.TTL
}
