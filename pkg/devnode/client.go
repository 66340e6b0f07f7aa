package devnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

// Conn is a remote channel handle. Requests are serialized; each waits for
// its response.
type Conn struct {
	ws     *websocket.Conn
	name   string
	mu     sync.Mutex
	closed atomic.Bool
}

var _ scull.Device = (*Conn)(nil)

// Dial opens channel name on the server at baseURL ("http://host:port").
func Dial(ctx context.Context, baseURL, name string, mode ring.Mode) (*Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("devnode: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("devnode: unsupported scheme %q", u.Scheme)
	}
	u = u.JoinPath("channels", name)
	u.RawQuery = url.Values{"mode": {mode.String()}}.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusNotFound:
				return nil, fmt.Errorf("devnode: dial %s: %w", name, scull.ErrNoSuchInstance)
			case http.StatusBadRequest:
				return nil, fmt.Errorf("devnode: dial %s: %w", name, ErrBadRequest)
			}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("devnode: dial %s: %w: %w", name, ring.ErrInterrupted, ctx.Err())
		}
		return nil, fmt.Errorf("devnode: dial %s: %w", name, err)
	}
	return &Conn{ws: ws, name: name}, nil
}

// Name returns the channel name.
func (c *Conn) Name() string { return c.name }

// Write sends p and returns how many bytes the channel accepted.
func (c *Conn) Write(ctx context.Context, p []byte) (int, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpWrite, Data: p})
	return resp.N, err
}

// Read receives up to len(p) bytes into p.
func (c *Conn) Read(ctx context.Context, p []byte) (int, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpRead, Max: len(p)})
	n := copy(p, resp.Data)
	return n, err
}

// Status returns the full channel status.
func (c *Conn) Status(ctx context.Context) (ring.Status, error) {
	return c.Query(ctx, scull.CmdInfo)
}

// Query sends a status command.
func (c *Conn) Query(ctx context.Context, cmd scull.Command) (ring.Status, error) {
	op := OpQuery
	if cmd == scull.CmdInfo {
		op = OpStatus
	}
	resp, err := c.roundTrip(ctx, Request{Op: op, Cmd: int(cmd)})
	if err != nil {
		return ring.Status{}, err
	}
	if resp.Status == nil {
		return ring.Status{}, fmt.Errorf("%w: %s: response without status", ErrRemote, c.name)
	}
	return *resp.Status, nil
}

// Close closes the connection. The server closes its handle in turn.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("devnode: %s: %w: already closed", c.name, scull.ErrNoSuchInstance)
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
	return c.ws.Close()
}

// roundTrip sends req and waits for its response. Cancelling ctx closes
// the connection, which the server sees as a disconnect.
func (c *Conn) roundTrip(ctx context.Context, req Request) (Response, error) {
	if c.closed.Load() {
		return Response{}, fmt.Errorf("devnode: %s: %w: closed", c.name, scull.ErrNoSuchInstance)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("devnode: %s: %s: %w: %w", c.name, req.Op, ring.ErrInterrupted, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.closed.Store(true)
		c.ws.Close()
	})
	defer stop()

	data, err := marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("devnode: %s: encode: %w", c.name, err)
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return Response{}, c.transportErr(ctx, req.Op, err)
	}
	_, data, err = c.ws.ReadMessage()
	if err != nil {
		return Response{}, c.transportErr(ctx, req.Op, err)
	}
	var resp Response
	if err := unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("devnode: %s: decode: %w", c.name, err)
	}
	if err := resp.Err(); err != nil {
		return resp, fmt.Errorf("devnode: %s: %s: %w", c.name, req.Op, err)
	}
	return resp, nil
}

func (c *Conn) transportErr(ctx context.Context, op Op, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("devnode: %s: %s: %w: %w", c.name, op, ring.ErrInterrupted, cerr)
	}
	c.closed.Store(true)
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.CloseGoingAway {
		return fmt.Errorf("devnode: %s: %s: %w: %w", c.name, op, scull.ErrNoSuchInstance, err)
	}
	return fmt.Errorf("devnode: %s: %s: %w", c.name, op, err)
}

// FetchStatus returns the snapshot served at baseURL/channels.
func FetchStatus(ctx context.Context, baseURL string) ([]scull.ChannelStatus, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("devnode: parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.JoinPath("channels").String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devnode: fetch status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devnode: fetch status: %s", resp.Status)
	}
	var out []scull.ChannelStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("devnode: decode status: %w", err)
	}
	return out, nil
}
