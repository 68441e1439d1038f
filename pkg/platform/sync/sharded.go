package sync

import (
	"hash/maphash"
	"sync"
)

// DefaultShards is the shard count used by NewShardedMutex.
const DefaultShards = 32

// ShardedMutex serializes work per key without a global lock. Keys that hash
// to the same shard share a mutex, so callers must not hold two keys at once.
type ShardedMutex struct {
	seed   maphash.Seed
	shards []sync.Mutex
}

func NewShardedMutex() *ShardedMutex {
	return NewShardedMutexN(DefaultShards)
}

// NewShardedMutexN builds a mutex with n shards; n below 1 is treated as 1.
func NewShardedMutexN(n int) *ShardedMutex {
	return &ShardedMutex{
		seed:   maphash.MakeSeed(),
		shards: make([]sync.Mutex, max(n, 1)),
	}
}

func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// Do runs fn while holding the shard for key.
func (m *ShardedMutex) Do(key string, fn func()) {
	m.Lock(key)
	defer m.Unlock(key)
	fn()
}

// Empty keys map to shard 0.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" || len(m.shards) == 1 {
		return 0
	}
	return int(maphash.String(m.seed, key) % uint64(len(m.shards)))
}
