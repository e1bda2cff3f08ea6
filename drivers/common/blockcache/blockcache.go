// Package blockcache provides the single-entry caches the drivers keep in
// front of the sector device: the most recently used inode, index sector, or
// data block.
//
// A Slot holds at most one value. Asking for the key it currently holds is a
// hit and never calls the fetch callback; asking for any other key evicts the
// held value unconditionally. A failed fetch leaves the slot empty, so a
// half-loaded value can never be served.

package blockcache

// FetchCallback loads the value for `key` from the underlying storage.
type FetchCallback[K comparable, V any] func(key K) (V, error)

// Stats gives the number of lookups served from the slot and the number that
// had to go to storage.
type Stats struct {
	Hits   uint64
	Misses uint64
}

type Slot[K comparable, V any] struct {
	key    K
	value  V
	loaded bool
	stats  Stats
}

// New creates an empty Slot.
func New[K comparable, V any]() *Slot[K, V] {
	return &Slot[K, V]{}
}

// Get returns the value for `key`, calling `fetch` only if the slot doesn't
// already hold it.
func (slot *Slot[K, V]) Get(key K, fetch FetchCallback[K, V]) (V, error) {
	if slot.loaded && slot.key == key {
		slot.stats.Hits++
		return slot.value, nil
	}

	slot.stats.Misses++
	slot.Invalidate()

	value, err := fetch(key)
	if err != nil {
		var zero V
		return zero, err
	}

	slot.key = key
	slot.value = value
	slot.loaded = true
	return value, nil
}

// Peek returns the key held by the slot, and false if the slot is empty.
func (slot *Slot[K, V]) Peek() (K, bool) {
	return slot.key, slot.loaded
}

// Invalidate empties the slot. The next Get always fetches.
func (slot *Slot[K, V]) Invalidate() {
	var zeroKey K
	var zeroValue V
	slot.key = zeroKey
	slot.value = zeroValue
	slot.loaded = false
}

func (slot *Slot[K, V]) Stats() Stats {
	return slot.stats
}
