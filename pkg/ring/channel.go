package ring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Mode selects what a transfer does when it cannot make progress.
type Mode uint8

const (
	// Blocking waits until at least one byte can be moved.
	Blocking Mode = iota
	// NonBlocking fails with ErrWouldBlock instead of waiting.
	NonBlocking
)

func (m Mode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case NonBlocking:
		return "nonblocking"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode converts "blocking" or "nonblocking" (also "non_blocking" and
// the empty string, which means blocking) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "blocking", "block":
		return Blocking, nil
	case "nonblocking", "non_blocking", "nonblock":
		return NonBlocking, nil
	default:
		return 0, fmt.Errorf("ring: unknown mode %q", s)
	}
}

// Status is a point-in-time snapshot of a channel, taken under its lock.
type Status struct {
	Occupancy   int    `json:"occupancy" yaml:"occupancy" msgpack:"occupancy"`
	Capacity    int    `json:"capacity" yaml:"capacity" msgpack:"capacity"`
	ReadCursor  int    `json:"read_cursor" yaml:"read_cursor" msgpack:"read_cursor"`
	WriteCursor int    `json:"write_cursor" yaml:"write_cursor" msgpack:"write_cursor"`
	Written     uint64 `json:"written" yaml:"written" msgpack:"written"`
	Read        uint64 `json:"read" yaml:"read" msgpack:"read"`
}

// Free returns the number of bytes that can be written without waiting.
func (s Status) Free() int {
	return s.Capacity - s.Occupancy
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for debug tracing. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithName attaches a name to every log record of the channel.
func WithName(name string) Option {
	return func(c *Channel) {
		c.name = name
	}
}

// Channel is a bounded circular byte channel safe for concurrent use.
//
// One mutex guards the store, the transfer totals and the closed flag. Two
// conditions share that mutex: writers wait on spaceAvailable while the store
// is full, readers wait on dataAvailable while it is empty. Every successful
// transfer broadcasts the complementary condition, so all waiters wake and
// re-check; there is no FIFO ordering among them.
type Channel struct {
	dataAvailable  *sync.Cond
	spaceAvailable *sync.Cond
	capacity       int
	name           string
	logger         *slog.Logger

	mu      sync.Mutex
	store   *Store
	written uint64
	read    uint64
	closed  bool
}

// New creates a Channel over buf. The capacity is len(buf) and must be
// positive.
func New(buf []byte, opts ...Option) *Channel {
	if len(buf) == 0 {
		panic("ring: zero capacity")
	}
	c := &Channel{
		capacity: len(buf),
		store:    NewStore(buf),
	}
	c.dataAvailable = sync.NewCond(&c.mu)
	c.spaceAvailable = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.name != "" {
		c.logger = c.logger.With("channel", c.name)
	}
	return c
}

// NewN creates a Channel with a freshly allocated buffer of size bytes.
func NewN(size int, opts ...Option) *Channel {
	return New(make([]byte, size), opts...)
}

// Cap returns the capacity fixed at construction.
func (c *Channel) Cap() int {
	return c.capacity
}

// Name returns the name given with WithName.
func (c *Channel) Name() string {
	return c.name
}

// Write stores as much of p as fits and returns the number of bytes stored.
//
// While the channel is full, a Blocking call waits for space and a
// NonBlocking call fails with ErrWouldBlock. A write larger than the free
// space succeeds partially; the caller resubmits the remainder. An empty p
// returns 0 without waiting.
func (c *Channel) Write(ctx context.Context, p []byte, mode Mode) (int, error) {
	if err := c.lock(ctx, "write"); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}
	if err := c.awaitSpace(ctx, mode, "write"); err != nil {
		return 0, err
	}

	n := c.store.Put(p)
	c.wrote(n)
	return n, nil
}

// Read moves up to len(p) stored bytes into p and returns the count.
//
// While the channel is empty, a Blocking call waits for data and a
// NonBlocking call fails with ErrWouldBlock; a successful call never returns
// zero bytes unless len(p) is zero.
func (c *Channel) Read(ctx context.Context, p []byte, mode Mode) (int, error) {
	if err := c.lock(ctx, "read"); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}
	if err := c.awaitData(ctx, mode, "read"); err != nil {
		return 0, err
	}

	n := c.store.Take(p)
	c.consumed(n)
	return n, nil
}

// WriteFrom stores up to n bytes read from r. It waits for space like Write.
// If r fails, the error matches ErrFault and the channel is unchanged.
func (c *Channel) WriteFrom(ctx context.Context, r io.Reader, n int, mode Mode) (int, error) {
	if err := c.lock(ctx, "write"); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	if n <= 0 {
		return 0, nil
	}
	if err := c.awaitSpace(ctx, mode, "write"); err != nil {
		return 0, err
	}

	wn, err := c.store.PutFrom(r, n)
	if err != nil {
		return 0, fault("write", err)
	}
	c.wrote(wn)
	return wn, nil
}

// ReadTo writes up to limit stored bytes to w. It waits for data like Read.
// If w fails, the error matches ErrFault and the bytes stay in the channel.
func (c *Channel) ReadTo(ctx context.Context, w io.Writer, limit int, mode Mode) (int, error) {
	if err := c.lock(ctx, "read"); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	if limit <= 0 {
		return 0, nil
	}
	if err := c.awaitData(ctx, mode, "read"); err != nil {
		return 0, err
	}

	rn, err := c.store.TakeTo(w, limit)
	if err != nil {
		return 0, fault("read", err)
	}
	c.consumed(rn)
	return rn, nil
}

// Status returns a consistent snapshot of the channel. A closed channel
// reports zero occupancy and zero capacity.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	read, write := c.store.Cursors()
	return Status{
		Occupancy:   c.store.Len(),
		Capacity:    c.store.Cap(),
		ReadCursor:  read,
		WriteCursor: write,
		Written:     c.written,
		Read:        c.read,
	}
}

// Len returns the number of unread bytes.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Bytes returns a copy of the unread bytes without consuming them.
func (c *Channel) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Peek()
}

// Closed reports whether Destroy has run.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Destroy tears the channel down and returns its storage so the owner can
// release it. Waiters are woken and fail with ErrClosed, as does every later
// call. Destroy returns nil if the channel was already destroyed.
//
// Destroying a channel that still has active waiters is the owner's
// responsibility to avoid; the waiters are released but their transfer fails.
func (c *Channel) Destroy() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.dataAvailable.Broadcast()
	c.spaceAvailable.Broadcast()
	return c.store.Release()
}

// Close implements io.Closer. It is Destroy with the storage discarded.
func (c *Channel) Close() error {
	c.Destroy()
	return nil
}

// lock takes the mutex unless ctx is already done or the channel is closed.
// On success the caller must unlock.
func (c *Channel) lock(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return interrupted(op, err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("ring: %s: %w", op, ErrClosed)
	}
	return nil
}

func (c *Channel) awaitSpace(ctx context.Context, mode Mode, op string) error {
	for c.store.Free() == 0 {
		if mode == NonBlocking {
			return fmt.Errorf("ring: %s: %w", op, ErrWouldBlock)
		}
		c.logger.Debug("buffer full, writer going to sleep", "capacity", c.capacity)
		if err := c.wait(ctx, c.spaceAvailable, op); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) awaitData(ctx context.Context, mode Mode, op string) error {
	for c.store.Len() == 0 {
		if mode == NonBlocking {
			return fmt.Errorf("ring: %s: %w", op, ErrWouldBlock)
		}
		c.logger.Debug("buffer empty, reader going to sleep", "capacity", c.capacity)
		if err := c.wait(ctx, c.dataAvailable, op); err != nil {
			return err
		}
	}
	return nil
}

// wait releases the mutex until cond is broadcast or ctx is done, then
// re-acquires it. The caller re-checks its predicate afterwards.
func (c *Channel) wait(ctx context.Context, cond *sync.Cond, op string) error {
	if ctx.Done() == nil {
		cond.Wait()
	} else {
		stop := context.AfterFunc(ctx, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			cond.Broadcast()
		})
		cond.Wait()
		stop()
		if err := ctx.Err(); err != nil {
			return interrupted(op, err)
		}
	}
	if c.closed {
		return fmt.Errorf("ring: %s: %w", op, ErrClosed)
	}
	return nil
}

func (c *Channel) wrote(n int) {
	c.written += uint64(n)
	c.logger.Debug("wrote bytes", "n", n, "occupancy", c.store.Len(), "capacity", c.capacity)
	if n > 0 {
		c.dataAvailable.Broadcast()
	}
}

func (c *Channel) consumed(n int) {
	c.read += uint64(n)
	c.logger.Debug("read bytes", "n", n, "occupancy", c.store.Len(), "capacity", c.capacity)
	if n > 0 {
		c.spaceAvailable.Broadcast()
	}
}
