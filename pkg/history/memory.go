package history

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Store backed by a map. It is safe for concurrent
// use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Append(_ context.Context, r Record) error {
	if err := validChannel(r.Channel); err != nil {
		return err
	}
	data, err := encode(r)
	if err != nil {
		return err
	}
	k := string(recordKey(r.Channel, r.Time))
	m.mu.Lock()
	m.data[k] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, channel string, since time.Time) ([]Record, error) {
	if err := validChannel(channel); err != nil {
		return nil, err
	}
	prefix := channelPrefix(channel)
	start := recordKey(channel, since)

	// Snapshot matching keys under read lock.
	type entry struct {
		key string
		val []byte
	}
	var matches []entry
	m.mu.RLock()
	for k, v := range m.data {
		kb := []byte(k)
		if bytes.HasPrefix(kb, prefix) && (since.IsZero() || bytes.Compare(kb, start) >= 0) {
			matches = append(matches, entry{k, v})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key < matches[j].key
	})

	out := make([]Record, 0, len(matches))
	for _, e := range matches {
		r, err := decode(e.val)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
