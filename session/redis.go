package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldState     = "state"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at addr and verifies the connection with
// PING. Keys are namespaced under prefix:
//
//	<prefix>conv:<id>:meta   hash of state, created_at, updated_at
//	<prefix>conv:<id>:msgs   list of JSON messages
//	<prefix>handoff          set of human_active ids
func NewRedisStore(addr string, db int, prefix string) (Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis session store %q: ping failed: %w", addr, err)
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) metaKey(id string) string {
	return s.prefix + "conv:" + url.PathEscape(id) + ":meta"
}

func (s *redisStore) msgsKey(id string) string {
	return s.prefix + "conv:" + url.PathEscape(id) + ":msgs"
}

func (s *redisStore) handoffKey() string {
	return s.prefix + "handoff"
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// initMeta queues the creation of a conversation hash without overwriting
// an existing one.
func (s *redisStore) initMeta(ctx context.Context, pipe redis.Pipeliner, id string, now time.Time) {
	key := s.metaKey(id)
	pipe.HSetNX(ctx, key, fieldState, string(StateAIActive))
	pipe.HSetNX(ctx, key, fieldCreatedAt, stamp(now))
	pipe.HSetNX(ctx, key, fieldUpdatedAt, stamp(now))
}

func (s *redisStore) GetOrCreate(ctx context.Context, id string) (Conversation, error) {
	if err := checkID(id); err != nil {
		return Conversation{}, err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.initMeta(ctx, pipe, id, time.Now())
		return nil
	})
	if err != nil {
		return Conversation{}, err
	}
	return s.Get(ctx, id)
}

func (s *redisStore) Get(ctx context.Context, id string) (Conversation, error) {
	var (
		fields *redis.MapStringStringCmd
		count  *redis.IntCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.metaKey(id))
		count = pipe.LLen(ctx, s.msgsKey(id))
		return nil
	})
	if err != nil {
		return Conversation{}, err
	}

	m := fields.Val()
	if len(m) == 0 {
		return Conversation{}, ErrNotFound
	}

	c := Conversation{
		ID:           id,
		State:        State(m[fieldState]),
		MessageCount: int(count.Val()),
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, m[fieldCreatedAt]); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation %q: %w", id, err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, m[fieldUpdatedAt]); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation %q: %w", id, err)
	}
	return c, nil
}

func (s *redisStore) Append(ctx context.Context, id string, sender Sender, text string) (Message, error) {
	if err := checkAppend(id, sender); err != nil {
		return Message{}, err
	}

	msg := NewMessage(sender, text)
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.initMeta(ctx, pipe, id, msg.CreatedAt)
		pipe.RPush(ctx, s.msgsKey(id), data)
		pipe.HSet(ctx, s.metaKey(id), fieldUpdatedAt, stamp(msg.CreatedAt))
		return nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *redisStore) Messages(ctx context.Context, id string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, s.msgsKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *redisStore) SetState(ctx context.Context, id string, state State) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !state.IsValid() {
		return ErrInvalidState
	}

	now := time.Now()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.initMeta(ctx, pipe, id, now)
		pipe.HSet(ctx, s.metaKey(id), fieldState, string(state), fieldUpdatedAt, stamp(now))
		if state == StateHumanActive {
			pipe.SAdd(ctx, s.handoffKey(), id)
		} else {
			pipe.SRem(ctx, s.handoffKey(), id)
		}
		return nil
	})
	return err
}

func (s *redisStore) HandoffSessions(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.handoffKey()).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
