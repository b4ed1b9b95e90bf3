package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) documentKey(sessionID string) string {
	return fmt.Sprintf("session:%s:document", sessionID)
}

func (r *RedisSessionRepository) messagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

// touch extends the TTL of both session keys inside pipe.
func (r *RedisSessionRepository) touch(ctx context.Context, pipe redis.Pipeliner, sessionID string) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, r.documentKey(sessionID), r.ttl)
	pipe.Expire(ctx, r.messagesKey(sessionID), r.ttl)
}

func (r *RedisSessionRepository) SaveDocument(ctx context.Context, sessionID string, doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("save document: nil document")
	}
	b, err := json.Marshal(doc)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal document")
		return fmt.Errorf("marshal document: %w", err)
	}

	key := r.documentKey(sessionID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, r.ttl)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store document in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) LoadDocument(ctx context.Context, sessionID string) (*model.Document, error) {
	key := r.documentKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load document from redis")
		return nil, errx.WrapRedis(err)
	}

	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal document")
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

func (r *RedisSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	rows := make([]any, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, b)
	}

	key := r.messagesKey(sessionID)
	// all messages of a turn land together or not at all
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, rows...)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push messages to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) LoadTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	key := r.messagesKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.Transcript{SessionID: sessionID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.Transcript{SessionID: sessionID, Messages: msgs}, nil
}

func (r *RedisSessionRepository) ClearTranscript(ctx context.Context, sessionID string) error {
	key := r.messagesKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.documentKey(sessionID), r.messagesKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionStore = (*RedisSessionRepository)(nil)
