package dlq

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory DLQ store for tests and single-process routers
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*Message
}

// NewMemoryStore creates a new in-memory DLQ store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*Message),
	}
}

func cloneMessage(msg *Message) *Message {
	c := *msg
	c.Frame = slices.Clone(msg.Frame)
	if msg.RetriedAt != nil {
		t := *msg.RetriedAt
		c.RetriedAt = &t
	}
	return &c
}

// Store adds a message to the DLQ
func (s *MemoryStore) Store(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("message already exists: %s", msg.ID)
	}
	s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

// Get retrieves a single message by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneMessage(msg), nil
}

// List returns messages matching the filter, oldest first
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []*Message
	for _, msg := range s.messages {
		if filter.matches(msg) {
			messages = append(messages, cloneMessage(msg))
		}
	}
	slices.SortFunc(messages, func(a, b *Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return filter.page(messages), nil
}

// Count returns the number of messages matching the filter
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, msg := range s.messages {
		if filter.matches(msg) {
			count++
		}
	}
	return count, nil
}

// MarkRetried marks a message as replayed
func (s *MemoryStore) MarkRetried(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := time.Now()
	msg.RetriedAt = &now
	return nil
}

// Delete removes a message from the DLQ
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.messages, id)
	return nil
}

// DeleteOlderThan removes messages older than the specified age
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var deleted int64
	for id, msg := range s.messages {
		if msg.CreatedAt.Before(cutoff) {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

// Stats returns DLQ statistics
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := newStats()
	for _, msg := range s.messages {
		stats.add(msg)
	}
	return stats, nil
}

func newStats() *Stats {
	return &Stats{
		MessagesByCodec: make(map[string]int64),
		MessagesByKind:  make(map[string]int64),
	}
}

// add folds one message into the running totals
func (st *Stats) add(msg *Message) {
	st.TotalMessages++
	if msg.RetriedAt != nil {
		st.RetriedMessages++
	} else {
		st.PendingMessages++
	}
	st.MessagesByCodec[msg.Codec]++
	st.MessagesByKind[msg.Kind]++

	if st.OldestMessage == nil || msg.CreatedAt.Before(*st.OldestMessage) {
		t := msg.CreatedAt
		st.OldestMessage = &t
	}
	if st.NewestMessage == nil || msg.CreatedAt.After(*st.NewestMessage) {
		t := msg.CreatedAt
		st.NewestMessage = &t
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Compile-time checks
var _ Store = (*MemoryStore)(nil)
var _ StatsProvider = (*MemoryStore)(nil)
