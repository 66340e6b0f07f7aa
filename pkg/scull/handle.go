package scull

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haivivi/scullring/pkg/ring"
)

// Device is the collaborator-facing view of one opened channel. It is
// implemented by *Handle for in-process use and by devnode.Conn remotely.
type Device interface {
	// Name returns the channel name the device was opened on.
	Name() string

	// Write stores as much of p as fits and returns the count.
	Write(ctx context.Context, p []byte) (int, error)

	// Read moves up to len(p) bytes into p and returns the count.
	Read(ctx context.Context, p []byte) (int, error)

	// Status returns a snapshot of the channel.
	Status(ctx context.Context) (ring.Status, error)

	// Close releases the device. The channel itself stays alive.
	Close() error
}

var _ Device = (*Handle)(nil)

// Command selects what Handle.Query reports.
type Command int

const (
	// CmdOccupancy reports only the number of unread bytes.
	CmdOccupancy Command = 0
	// CmdInfo reports the full status.
	CmdInfo Command = 1
)

func (c Command) String() string {
	switch c {
	case CmdOccupancy:
		return "occupancy"
	case CmdInfo:
		return "info"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Handle is an open reference to one channel with a fixed mode.
type Handle struct {
	id     string
	index  int
	name   string
	mode   ring.Mode
	ch     *ring.Channel
	table  *Table
	closed atomic.Bool
}

// Open returns a handle on channel index.
func (t *Table) Open(index int, mode ring.Mode) (*Handle, error) {
	ch, err := t.Channel(index)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		id:    uuid.New().String(),
		index: index,
		name:  t.Name(index),
		mode:  mode,
		ch:    ch,
		table: t,
	}
	t.logger.Debug("channel opened", "channel", h.name, "handle", h.id, "mode", mode)
	return h, nil
}

// OpenName returns a handle on the channel called name.
func (t *Table) OpenName(name string, mode ring.Mode) (*Handle, error) {
	index, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	return t.Open(index, mode)
}

// ID returns the unique identifier of the handle.
func (h *Handle) ID() string { return h.id }

// Index returns the channel index.
func (h *Handle) Index() int { return h.index }

// Name returns the channel name.
func (h *Handle) Name() string { return h.name }

// Capacity returns the capacity of the channel in bytes.
func (h *Handle) Capacity() int { return h.ch.Cap() }

// Mode returns the mode the handle was opened with.
func (h *Handle) Mode() ring.Mode { return h.mode }

// Write stores as much of p as fits in the channel.
func (h *Handle) Write(ctx context.Context, p []byte) (int, error) {
	ch, err := h.channel()
	if err != nil {
		return 0, err
	}
	n, err := ch.Write(ctx, p, h.mode)
	return n, h.wrap(err)
}

// Read moves up to len(p) bytes from the channel into p.
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	ch, err := h.channel()
	if err != nil {
		return 0, err
	}
	n, err := ch.Read(ctx, p, h.mode)
	return n, h.wrap(err)
}

// WriteFrom stores up to n bytes taken from r. A failing r yields an error
// matching ring.ErrFault with the channel unchanged.
func (h *Handle) WriteFrom(ctx context.Context, r io.Reader, n int) (int, error) {
	ch, err := h.channel()
	if err != nil {
		return 0, err
	}
	wn, err := ch.WriteFrom(ctx, r, n, h.mode)
	return wn, h.wrap(err)
}

// ReadTo writes up to limit bytes from the channel to w. A failing w yields
// an error matching ring.ErrFault with the bytes kept in the channel.
func (h *Handle) ReadTo(ctx context.Context, w io.Writer, limit int) (int, error) {
	ch, err := h.channel()
	if err != nil {
		return 0, err
	}
	rn, err := ch.ReadTo(ctx, w, limit, h.mode)
	return rn, h.wrap(err)
}

// Status returns a consistent snapshot of the channel.
func (h *Handle) Status(ctx context.Context) (ring.Status, error) {
	return h.Query(ctx, CmdInfo)
}

// Query answers a status command: CmdOccupancy fills only Occupancy,
// CmdInfo fills every field. Other commands fail with ErrUnsupportedCommand.
func (h *Handle) Query(ctx context.Context, cmd Command) (ring.Status, error) {
	if err := ctx.Err(); err != nil {
		return ring.Status{}, fmt.Errorf("scull: %s: status: %w: %w", h.name, ring.ErrInterrupted, err)
	}
	ch, err := h.channel()
	if err != nil {
		return ring.Status{}, err
	}
	switch cmd {
	case CmdOccupancy:
		return ring.Status{Occupancy: ch.Len()}, nil
	case CmdInfo:
		return ch.Status(), nil
	default:
		return ring.Status{}, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
	}
}

// Close releases the handle. The channel and its data are untouched.
// Closing twice fails with ErrNoSuchInstance.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s: handle %s already closed", ErrNoSuchInstance, h.name, h.id)
	}
	h.table.logger.Debug("channel closed", "channel", h.name, "handle", h.id)
	return nil
}

func (h *Handle) channel() (*ring.Channel, error) {
	if h.closed.Load() {
		return nil, fmt.Errorf("%w: %s: handle %s closed", ErrNoSuchInstance, h.name, h.id)
	}
	if h.table.destroyed.Load() {
		return nil, fmt.Errorf("%w: %s: table destroyed", ErrNoSuchInstance, h.name)
	}
	return h.ch, nil
}

// wrap maps a torn-down channel to ErrNoSuchInstance while keeping the ring
// error matchable.
func (h *Handle) wrap(err error) error {
	if err != nil && errors.Is(err, ring.ErrClosed) {
		return fmt.Errorf("scull: %s: %w: %w", h.name, ErrNoSuchInstance, err)
	}
	return err
}
