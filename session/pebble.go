package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Key layout:
//
//	conv/<id>/meta            JSON Conversation
//	conv/<id>/msg/<seq:020d>  JSON Message
//	handoff/<id>              empty marker while human_active
//
// Ids are path-escaped so a '/' inside an id cannot collide with the layout.
const (
	convPrefix    = "conv/"
	handoffPrefix = "handoff/"
)

func metaKey(id string) []byte {
	return []byte(convPrefix + url.PathEscape(id) + "/meta")
}

func msgPrefix(id string) []byte {
	return []byte(convPrefix + url.PathEscape(id) + "/msg/")
}

func msgKey(id string, seq int) []byte {
	return fmt.Appendf(msgPrefix(id), "%020d", seq)
}

func handoffKey(id string) []byte {
	return []byte(handoffPrefix + url.PathEscape(id))
}

// prefixUpperBound returns the smallest key greater than every key that
// starts with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := slices.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

type pebbleStore struct {
	db *pebble.DB
	// mu serializes read-modify-write of conversation metadata.
	mu sync.Mutex
}

// OpenPebbleStore opens (or creates) a pebble database at path. A nil opts
// uses pebble defaults.
func OpenPebbleStore(path string, opts *pebble.Options) (Store, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &pebbleStore{db: db}, nil
}

func (s *pebbleStore) readMeta(id string) (Conversation, error) {
	v, closer, err := s.db.Get(metaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	defer closer.Close()

	var c Conversation
	if err := json.Unmarshal(v, &c); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation %q: %w", id, err)
	}
	return c, nil
}

// loadOrInit must be called with s.mu held.
func (s *pebbleStore) loadOrInit(id string) (Conversation, bool, error) {
	c, err := s.readMeta(id)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, false, err
	}
	now := time.Now().UTC()
	return Conversation{ID: id, State: StateAIActive, CreatedAt: now, UpdatedAt: now}, true, nil
}

func setMeta(b *pebble.Batch, c Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.Set(metaKey(c.ID), data, nil)
}

func (s *pebbleStore) GetOrCreate(_ context.Context, id string) (Conversation, error) {
	if err := checkID(id); err != nil {
		return Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, created, err := s.loadOrInit(id)
	if err != nil || !created {
		return c, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := setMeta(b, c); err != nil {
		return Conversation{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (s *pebbleStore) Get(_ context.Context, id string) (Conversation, error) {
	return s.readMeta(id)
}

func (s *pebbleStore) Append(_ context.Context, id string, sender Sender, text string) (Message, error) {
	if err := checkAppend(id, sender); err != nil {
		return Message{}, err
	}

	msg := NewMessage(sender, text)
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.loadOrInit(id)
	if err != nil {
		return Message{}, err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(msgKey(id, c.MessageCount), data, nil); err != nil {
		return Message{}, err
	}
	c.MessageCount++
	c.UpdatedAt = msg.CreatedAt
	if err := setMeta(b, c); err != nil {
		return Message{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *pebbleStore) Messages(_ context.Context, id string) ([]Message, error) {
	prefix := msgPrefix(id)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	msgs := make([]Message, 0)
	for ok := it.First(); ok; ok = it.Next() {
		var m Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("decode message %q: %w", it.Key(), err)
		}
		msgs = append(msgs, m)
	}
	return msgs, it.Error()
}

func (s *pebbleStore) SetState(_ context.Context, id string, state State) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !state.IsValid() {
		return ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.loadOrInit(id)
	if err != nil {
		return err
	}
	c.State = state
	c.UpdatedAt = time.Now().UTC()

	b := s.db.NewBatch()
	defer b.Close()

	if err := setMeta(b, c); err != nil {
		return err
	}
	if state == StateHumanActive {
		err = b.Set(handoffKey(id), nil, nil)
	} else {
		err = b.Delete(handoffKey(id), nil)
	}
	if err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (s *pebbleStore) HandoffSessions(_ context.Context) ([]string, error) {
	prefix := []byte(handoffPrefix)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	ids := make([]string, 0)
	for ok := it.First(); ok; ok = it.Next() {
		id, err := url.PathUnescape(string(it.Key()[len(prefix):]))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *pebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
