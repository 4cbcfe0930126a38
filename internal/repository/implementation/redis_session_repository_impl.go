package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nexus-ai-be/internal/repository/contract"
	"nexus-ai-be/pkg/llm"

	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository shares transcripts between gateway instances.
type RedisSessionRepository struct {
	rdb        *redis.Client
	historyCap int
	ttl        time.Duration
}

func NewRedisSessionRepository(rdb *redis.Client, historyCap int, ttl time.Duration) contract.SessionRepository {
	if historyCap <= 0 {
		historyCap = 20
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisSessionRepository{rdb: rdb, historyCap: historyCap, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID + ":history"
}

func (r *RedisSessionRepository) Append(ctx context.Context, sessionID string, turns ...llm.Message) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, len(turns))
	for i, t := range turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values[i] = raw
	}

	key := sessionKey(sessionID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-r.historyCap), -1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisSessionRepository) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	raw, err := r.rdb.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	history := make([]llm.Message, 0, len(raw))
	for _, item := range raw {
		var m llm.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		history = append(history, m)
	}
	return history, nil
}
