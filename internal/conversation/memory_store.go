package conversation

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 64

type memoryShard struct {
	mu       sync.Mutex
	contexts map[string]*Context
}

// MemoryStore keeps contexts in process, serialising upserts per shard of lead ids.
type MemoryStore struct {
	shards [memoryShards]*memoryShard
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{contexts: make(map[string]*Context)}
	}
	return s
}

func (s *MemoryStore) shard(leadID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(leadID))
	return s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Get(_ context.Context, leadID string) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	sh := s.shard(leadID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.contexts[leadID].Clone(), nil
}

func (s *MemoryStore) Upsert(_ context.Context, leadID string, partial PartialContext) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	sh := s.shard(leadID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	next := merge(sh.contexts[leadID], leadID, partial, s.now())
	sh.contexts[leadID] = next
	return next.Clone(), nil
}
