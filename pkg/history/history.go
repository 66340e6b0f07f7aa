// Package history records channel status samples over time.
//
// Records are keyed by channel and timestamp:
//
//	sample:{channel}:{unix_ns + 2^63, zero padded}  → msgpack-encoded Record
//
// so that a prefix scan over one channel yields its samples in time order.
// A BadgerDB-backed Store persists samples across runs; Memory is intended
// for tests and short-lived monitors.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/scullring/pkg/ring"
)

// ErrBadDSN is returned by Open for an unrecognised data source name.
var ErrBadDSN = errors.New("history: bad dsn")

// Record is one status sample of one channel.
type Record struct {
	Time    time.Time   `msgpack:"time" json:"time" yaml:"time"`
	Channel string      `msgpack:"channel" json:"channel" yaml:"channel"`
	Status  ring.Status `msgpack:"status" json:"status" yaml:"status"`
}

// Store is an append-only log of Records.
type Store interface {
	// Append stores r. A second record for the same channel and time
	// replaces the first.
	Append(ctx context.Context, r Record) error

	// List returns the records of channel taken at or after since, oldest
	// first. A zero since returns every record.
	List(ctx context.Context, channel string, since time.Time) ([]Record, error)

	// Close releases any resources held by the store.
	Close() error
}

const (
	keyPrefix = "sample"
	separator = ':'
)

// recordKey returns the storage key of a record of channel taken at t. The
// timestamp is shifted into the unsigned range so that times before 1970
// sort ahead of later ones.
func recordKey(channel string, t time.Time) []byte {
	ts := uint64(t.UnixNano()) ^ 1<<63
	return fmt.Appendf(nil, "%s%c%s%c%020d", keyPrefix, separator, channel, separator, ts)
}

// channelPrefix returns the key prefix of every record of channel.
func channelPrefix(channel string) []byte {
	return fmt.Appendf(nil, "%s%c%s%c", keyPrefix, separator, channel, separator)
}

func validChannel(channel string) error {
	if channel == "" || strings.IndexByte(channel, separator) >= 0 {
		return fmt.Errorf("history: invalid channel name %q", channel)
	}
	return nil
}

func encode(r Record) ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("history: encode %s: %w", r.Channel, err)
	}
	return data, nil
}

func decode(data []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("history: decode: %w", err)
	}
	return r, nil
}

// Open opens a store by data source name: "memory://" for an in-memory
// store, "badger:///path/to/dir" for an on-disk BadgerDB store.
func Open(dsn string) (Store, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDSN, dsn)
	}
	switch scheme {
	case "memory":
		return NewMemory(), nil
	case "badger":
		if rest == "" {
			return nil, fmt.Errorf("%w: %q has no directory", ErrBadDSN, dsn)
		}
		return NewBadger(BadgerOptions{Dir: rest})
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrBadDSN, scheme)
	}
}
