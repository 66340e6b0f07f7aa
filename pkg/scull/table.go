package scull

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/haivivi/scullring/pkg/ring"
)

// Option configures a Table.
type Option func(*options)

type options struct {
	alloc    Allocator
	memLimit int64
	logger   *slog.Logger
}

// WithAllocator sets the allocator used for channel storage.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// WithMemoryLimit caps the total storage of the default allocator. It has no
// effect together with WithAllocator.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memLimit = bytes
	}
}

// WithLogger sets the logger for the table and its channels.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// ChannelStatus is the status of one channel with its address.
type ChannelStatus struct {
	Index  int         `json:"index" yaml:"index" msgpack:"index"`
	Name   string      `json:"name" yaml:"name" msgpack:"name"`
	Status ring.Status `json:"status" yaml:"status" msgpack:"status"`
}

// maxStorage is the most channel storage a table may ask for in total. It
// matches the largest heap the Go runtime can address on 64-bit platforms.
const maxStorage int64 = 1 << 48

// Table is a fixed, index-addressed set of ring channels.
//
// The channel slice is immutable after New, so lookups need no lock; each
// channel serializes its own transfers. Destroy must not race with transfers
// still in flight.
type Table struct {
	prefix    string
	capacity  int
	channels  []*ring.Channel
	alloc     Allocator
	logger    *slog.Logger
	destroyed atomic.Bool
}

// New validates cfg and allocates every channel. If any allocation fails,
// the channels already allocated are released in reverse order and the error
// matches ErrOutOfMemory.
func New(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.alloc == nil {
		o.alloc = NewHeapAllocator(o.memLimit)
	}

	if int64(cfg.Instances) > maxStorage/int64(cfg.Capacity) {
		err := fmt.Errorf("%w: %d channels of %d bytes exceed %d bytes", ErrOutOfMemory, cfg.Instances, cfg.Capacity, maxStorage)
		o.logger.Error("failed to allocate channels", "error", err)
		return nil, fmt.Errorf("scull: create: %w", err)
	}

	t := &Table{
		prefix:   cfg.Prefix,
		capacity: cfg.Capacity,
		channels: make([]*ring.Channel, 0, min(cfg.Instances, 1024)),
		alloc:    o.alloc,
		logger:   o.logger,
	}
	for i := 0; i < cfg.Instances; i++ {
		name := t.Name(i)
		buf, err := t.alloc.Alloc(i, cfg.Capacity)
		if err == nil && len(buf) != cfg.Capacity {
			t.alloc.Free(i, buf)
			err = fmt.Errorf("%w: channel %d got %d bytes, want %d", ErrOutOfMemory, i, len(buf), cfg.Capacity)
		}
		if err != nil {
			t.logger.Error("failed to allocate channel", "channel", name, "error", err)
			t.release()
			if !errors.Is(err, ErrOutOfMemory) {
				err = fmt.Errorf("%w: %w", ErrOutOfMemory, err)
			}
			return nil, fmt.Errorf("scull: create %s: %w", name, err)
		}
		t.channels = append(t.channels, ring.New(buf, ring.WithName(name), ring.WithLogger(t.logger)))
	}

	t.logger.Info("channels created", "count", cfg.Instances, "capacity", cfg.Capacity, "prefix", cfg.Prefix)
	return t, nil
}

// Destroy tears down every channel in reverse order and returns its storage
// to the allocator. It is idempotent and safe on a zero Table.
func (t *Table) Destroy() {
	if t == nil || !t.destroyed.CompareAndSwap(false, true) {
		return
	}
	t.release()
	if t.logger != nil {
		t.logger.Info("channels destroyed", "count", len(t.channels))
	}
}

func (t *Table) release() {
	t.destroyed.Store(true)
	for i := len(t.channels) - 1; i >= 0; i-- {
		buf := t.channels[i].Destroy()
		if buf != nil && t.alloc != nil {
			t.alloc.Free(i, buf)
		}
	}
}

// Len returns the number of channels.
func (t *Table) Len() int {
	return len(t.channels)
}

// Capacity returns the capacity of every channel in bytes.
func (t *Table) Capacity() int {
	return t.capacity
}

// Name returns the external name of channel index.
func (t *Table) Name(index int) string {
	return t.prefix + "-" + strconv.Itoa(index)
}

// Names returns the names of all channels in index order.
func (t *Table) Names() []string {
	names := make([]string, len(t.channels))
	for i := range t.channels {
		names[i] = t.Name(i)
	}
	return names
}

// Lookup resolves a channel name, or a bare index, to its index. Only the
// canonical spelling matches: "channel-01" and "+1" are rejected.
func (t *Table) Lookup(name string) (int, error) {
	s, ok := strings.CutPrefix(name, t.prefix+"-")
	if !ok {
		s = name
	}
	index, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(index) != s {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchInstance, name)
	}
	if _, err := t.Channel(index); err != nil {
		return 0, err
	}
	return index, nil
}

// Channel returns the channel at index.
func (t *Table) Channel(index int) (*ring.Channel, error) {
	if t.destroyed.Load() {
		return nil, fmt.Errorf("%w: table destroyed", ErrNoSuchInstance)
	}
	if index < 0 || index >= len(t.channels) {
		return nil, fmt.Errorf("%w: index %d not in [0, %d)", ErrNoSuchInstance, index, len(t.channels))
	}
	return t.channels[index], nil
}

// Status returns a consistent snapshot of channel index.
func (t *Table) Status(index int) (ring.Status, error) {
	ch, err := t.Channel(index)
	if err != nil {
		return ring.Status{}, err
	}
	return ch.Status(), nil
}

// Snapshot returns the status of every channel. Each entry is consistent on
// its own; entries are taken one after another.
func (t *Table) Snapshot() []ChannelStatus {
	if t.destroyed.Load() {
		return nil
	}
	out := make([]ChannelStatus, len(t.channels))
	for i, ch := range t.channels {
		out[i] = ChannelStatus{Index: i, Name: t.Name(i), Status: ch.Status()}
	}
	return out
}
