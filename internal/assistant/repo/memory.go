package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/patrickmn/go-cache"

	"github.com/docqa-assistant/server/internal/assistant/model"
)

type memorySession struct {
	document *model.Document
	messages []*schema.Message
}

// MemorySessionRepository keeps sessions in process memory. Entries expire after
// ttl without writes.
type MemorySessionRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}
	return &MemorySessionRepository{
		cache: cache.New(expiration, cleanup),
	}
}

// load returns the stored session or a fresh one. Caller holds mu.
func (r *MemorySessionRepository) load(sessionID string) *memorySession {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*memorySession)
	}
	return &memorySession{}
}

// save re-sets the entry so its expiry slides. Caller holds mu.
func (r *MemorySessionRepository) save(sessionID string, s *memorySession) {
	r.cache.Set(sessionID, s, cache.DefaultExpiration)
}

func (r *MemorySessionRepository) SaveDocument(_ context.Context, sessionID string, doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("save document: nil document")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.load(sessionID)
	cp := *doc
	s.document = &cp
	r.save(sessionID, s)
	return nil
}

func (r *MemorySessionRepository) LoadDocument(_ context.Context, sessionID string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.load(sessionID)
	if s.document == nil {
		return nil, nil
	}
	cp := *s.document
	return &cp, nil
}

func (r *MemorySessionRepository) AppendMessages(_ context.Context, sessionID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.load(sessionID)
	s.messages = append(s.messages, messages...)
	r.save(sessionID, s)
	return nil
}

func (r *MemorySessionRepository) LoadTranscript(_ context.Context, sessionID string) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.load(sessionID)
	msgs := make([]*schema.Message, len(s.messages))
	copy(msgs, s.messages)
	return &model.Transcript{SessionID: sessionID, Messages: msgs}, nil
}

func (r *MemorySessionRepository) ClearTranscript(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(sessionID); found {
		s := x.(*memorySession)
		s.messages = nil
		r.save(sessionID, s)
	}
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(sessionID)
	return nil
}

var _ model.SessionStore = (*MemorySessionRepository)(nil)
