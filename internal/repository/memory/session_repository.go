package memory

import (
	"context"
	"sync"
	"time"

	"nexus-ai-be/internal/repository/contract"
	"nexus-ai-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache      *cache.Cache
	historyCap int

	// serializes read-modify-write of a session's transcript
	mu sync.Mutex
}

var _ contract.SessionRepository = &SessionRepository{}

// NewSessionRepository keeps transcripts for ttl after their last append,
// capped at historyCap turns.
func NewSessionRepository(historyCap int, ttl time.Duration) *SessionRepository {
	if historyCap <= 0 {
		historyCap = 20
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{
		cache:      cache.New(ttl, 10*time.Minute),
		historyCap: historyCap,
	}
}

func (r *SessionRepository) Append(_ context.Context, sessionID string, turns ...llm.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []llm.Message
	if x, found := r.cache.Get(sessionID); found {
		history = x.([]llm.Message)
	}

	// copy so slices handed out by History stay immutable
	next := make([]llm.Message, 0, len(history)+len(turns))
	next = append(next, history...)
	next = append(next, turns...)
	if len(next) > r.historyCap {
		next = next[len(next)-r.historyCap:]
	}

	r.cache.Set(sessionID, next, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) History(_ context.Context, sessionID string) ([]llm.Message, error) {
	if x, found := r.cache.Get(sessionID); found {
		return x.([]llm.Message), nil
	}
	return []llm.Message{}, nil
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
