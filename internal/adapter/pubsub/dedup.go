package pubsub

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduplicator remembers recently seen event ids so an event exported by
// this node and echoed back by the broker is not folded a second time.
type Deduplicator struct {
	// [MEMORY_MANAGEMENT] bounded; the oldest ids fall out first
	seen *lru.Cache[string, struct{}]
}

func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Deduplicator{seen: cache}, nil
}

// Remember records id as already delivered locally.
func (d *Deduplicator) Remember(id string) {
	d.seen.Add(id, struct{}{})
}

// FirstSeen reports whether id is new and records it.
func (d *Deduplicator) FirstSeen(id string) bool {
	ok, _ := d.seen.ContainsOrAdd(id, struct{}{})
	return !ok
}

func (d *Deduplicator) Len() int { return d.seen.Len() }
