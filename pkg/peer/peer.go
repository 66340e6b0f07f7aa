// Package peer implements the companion programs that exercise a set of
// channels: two pingers exchanging numbered messages in opposite
// directions, and a monitor sampling channel status.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/scullring/pkg/scull"
)

// MaxRead is the largest number of bytes a Pinger reads per tick.
const MaxRead = 255

// Op is the kind of a pinger event.
type Op string

const (
	OpWrite Op = "write"
	OpRead  Op = "read"
)

// Event reports one transfer made by a Pinger.
type Event struct {
	Process string
	Op      Op
	Channel string
	N       int
	Data    string
	Err     error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("Process %s: %s %s failed: %v", e.Process, e.Op, e.Channel, e.Err)
	}
	verb := "Wrote"
	if e.Op == OpRead {
		verb = "Read"
	}
	return fmt.Sprintf("Process %s: %s %d bytes: '%s'", e.Process, verb, e.N, e.Data)
}

// Pinger writes a numbered message to Out and reads back from In once per
// Interval until its context ends.
type Pinger struct {
	// Name identifies the process in messages, e.g. "A".
	Name string

	// Out receives "Message from Process <Name> #<n>".
	Out scull.Device

	// In is read for up to MaxRead bytes per tick.
	In scull.Device

	// Interval is the pause between ticks. Defaults to one second.
	Interval time.Duration

	// ReadFirst reads from In before writing to Out on each tick.
	ReadFirst bool

	// OnEvent, if set, is called after every transfer.
	OnEvent func(Event)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Message returns the n-th message of the pinger.
func (p *Pinger) Message(n int) string {
	return fmt.Sprintf("Message from Process %s #%d", p.Name, n)
}

// Run loops until ctx is done. Transfer errors are reported and the loop
// continues; cancellation ends Run with a nil error.
func (p *Pinger) Run(ctx context.Context) error {
	if p.Out == nil || p.In == nil {
		return errors.New("peer: pinger needs both In and Out devices")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	logger := p.logger()
	logger.Info("process started", "writing", p.Out.Name(), "reading", p.In.Name())

	buf := make([]byte, MaxRead)
	for n := 0; ; n++ {
		if p.ReadFirst {
			p.read(ctx, buf)
			p.write(ctx, p.Message(n))
		} else {
			p.write(ctx, p.Message(n))
			p.read(ctx, buf)
		}

		select {
		case <-ctx.Done():
			logger.Info("process stopped", "ticks", n+1)
			return nil
		case <-time.After(interval):
		}
	}
}

// write stores msg completely, resubmitting the remainder after partial
// writes.
func (p *Pinger) write(ctx context.Context, msg string) {
	data := []byte(msg)
	total := 0
	for total < len(data) {
		n, err := p.Out.Write(ctx, data[total:])
		total += n
		if err == nil && n == 0 {
			err = errors.New("peer: device accepted no bytes")
		}
		if err != nil {
			p.emit(ctx, Event{Process: p.Name, Op: OpWrite, Channel: p.Out.Name(), N: total, Err: err})
			return
		}
	}
	p.emit(ctx, Event{Process: p.Name, Op: OpWrite, Channel: p.Out.Name(), N: total, Data: msg})
}

func (p *Pinger) read(ctx context.Context, buf []byte) {
	n, err := p.In.Read(ctx, buf)
	ev := Event{Process: p.Name, Op: OpRead, Channel: p.In.Name(), N: n, Err: err}
	if err == nil && n == 0 {
		return
	}
	ev.Data = string(buf[:n])
	p.emit(ctx, ev)
}

func (p *Pinger) emit(ctx context.Context, ev Event) {
	if ev.Err != nil && ctx.Err() != nil {
		return
	}
	if ev.Err != nil {
		p.logger().Warn("transfer failed", "op", ev.Op, "channel", ev.Channel, "error", ev.Err)
	} else {
		p.logger().Debug("transfer", "op", ev.Op, "channel", ev.Channel, "bytes", ev.N)
	}
	if p.OnEvent != nil {
		p.OnEvent(ev)
	}
}

func (p *Pinger) logger() *slog.Logger {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("process", p.Name)
}
