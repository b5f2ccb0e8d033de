package session

import (
	"context"
	"sync"
	"time"
)

// memoryBackend はプロセス内メモリのセッションバックエンドです。
// 期限切れのエントリーは読み込み時に破棄します。
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore はプロセス内メモリをバックエンドとするストアを作成します。
// 再起動で全セッションが消えるため、単一インスタンスの運用とテスト向けです。
func NewMemoryStore(ttl time.Duration, keyPairs ...[]byte) *Store {
	return newStore(&memoryBackend{entries: make(map[string]memoryEntry)}, ttl, keyPairs...)
}

func (b *memoryBackend) save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (b *memoryBackend) load(_ context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(b.entries, id)
		return nil, nil
	}
	return entry.data, nil
}

func (b *memoryBackend) delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}
