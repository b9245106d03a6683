// Package cmap provides a sharded, string-keyed concurrent map.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash, each guarded by its own RWMutex, so unrelated keys rarely contend.
//
// Usage:
//
//	m := cmap.New[*Session]()
//	m.Set(id, session)
//	s, ok := m.Get(id)
//
// Thread Safety:
//
// All operations are safe for concurrent use. Range and Keys lock one
// shard at a time, so they may miss or repeat concurrent changes.
package cmap
