package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

var errMemoryClosed = errors.New("memory backend closed")

// maxPending caps the per-channel backlog held for absent subscribers.
const maxPending = 256

// MemoryBackend delivers messages to in-process subscribers. Up to
// maxPending messages published before anyone subscribes to a channel are
// kept and replayed to the first subscriber; older ones are dropped.
type MemoryBackend struct {
	mu      sync.Mutex
	seq     int
	closed  bool
	done    chan struct{}
	pending map[string][]Message
	subs    map[string][]chan Message
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		done:    make(chan struct{}),
		pending: make(map[string][]Message),
		subs:    make(map[string][]chan Message),
	}
}

func (m *MemoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", errMemoryClosed
	}
	m.seq++
	msg := Message{ID: strconv.Itoa(m.seq), Data: append([]byte(nil), data...), Attributes: attrs}

	subs := m.subs[channel]
	if len(subs) == 0 {
		backlog := append(m.pending[channel], msg)
		if len(backlog) > maxPending {
			backlog = append(backlog[:0:0], backlog[len(backlog)-maxPending:]...)
		}
		m.pending[channel] = backlog
		return msg.ID, nil
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; drop rather than block publishers.
		}
	}
	return msg.ID, nil
}

// Subscribe blocks delivering messages to handler until ctx is done or the
// backend is closed. Handler errors are ignored.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch := make(chan Message, 64)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMemoryClosed
	}
	backlog := m.pending[channel]
	delete(m.pending, channel)
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	defer m.unsubscribe(channel, ch)

	for _, msg := range backlog {
		_ = handler(ctx, msg)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return errMemoryClosed
		case msg := <-ch:
			_ = handler(ctx, msg)
		}
	}
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[channel]
	for i, c := range subs {
		if c == ch {
			m.subs[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
