package devnode

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

func newTestServer(t *testing.T, capacity int) (*scull.Table, *Server, string) {
	t.Helper()
	tbl, err := scull.New(scull.Config{Instances: 2, Capacity: capacity, Prefix: "channel"})
	require.NoError(t, err)
	srv := NewServer(tbl)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		tbl.Destroy()
	})
	return tbl, srv, ts.URL
}

func dial(t *testing.T, url, name string, mode ring.Mode) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), url, name, mode)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	_, _, url := newTestServer(t, 16)
	ctx := context.Background()
	c := dial(t, url, "channel-0", ring.Blocking)
	assert.Equal(t, "channel-0", c.Name())

	n, err := c.Write(ctx, []byte("hello, remote world"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	buf := make([]byte, 5)
	n, err = c.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, ring.Status{Occupancy: 11, Capacity: 16, ReadCursor: 5, WriteCursor: 0, Written: 16, Read: 5}, st)

	st, err = c.Query(ctx, scull.CmdOccupancy)
	require.NoError(t, err)
	assert.Equal(t, ring.Status{Occupancy: 11}, st)

	_, err = c.Query(ctx, scull.Command(9))
	require.ErrorIs(t, err, scull.ErrUnsupportedCommand)

	n, err = c.Read(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNonBlocking(t *testing.T) {
	_, _, url := newTestServer(t, 4)
	ctx := context.Background()
	c := dial(t, url, "channel-1", ring.NonBlocking)

	_, err := c.Read(ctx, make([]byte, 4))
	require.ErrorIs(t, err, ring.ErrWouldBlock)

	n, err := c.Write(ctx, []byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = c.Write(ctx, []byte("g"))
	require.ErrorIs(t, err, ring.ErrWouldBlock)
}

func TestDialErrors(t *testing.T) {
	_, _, url := newTestServer(t, 4)
	ctx := context.Background()

	_, err := Dial(ctx, url, "channel-2", ring.Blocking)
	require.ErrorIs(t, err, scull.ErrNoSuchInstance)

	_, err = Dial(ctx, "ftp://example.com", "channel-0", ring.Blocking)
	require.Error(t, err)
}

func TestCancelInterruptsBlockedRead(t *testing.T) {
	tbl, srv, url := newTestServer(t, 8)
	c := dial(t, url, "channel-0", ring.Blocking)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Read(ctx, make([]byte, 4))
	require.ErrorIs(t, err, ring.ErrInterrupted)

	// The connection is gone and the server-side wait has ended.
	_, err = c.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, scull.ErrNoSuchInstance)
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 2*time.Second, 5*time.Millisecond)

	h, err := tbl.Open(0, ring.NonBlocking)
	require.NoError(t, err)
	ctx2 := context.Background()
	_, err = h.Write(ctx2, []byte("x"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := h.Read(ctx2, buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf[:n]))
}

func TestBlockedReadWokenByRemoteWrite(t *testing.T) {
	_, _, url := newTestServer(t, 8)
	reader := dial(t, url, "channel-0", ring.Blocking)
	writer := dial(t, url, "channel-0", ring.Blocking)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 8)
		n, err := reader.Read(context.Background(), buf)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- string(buf[:n])
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := writer.Write(context.Background(), []byte("ping"))
	require.NoError(t, err)

	select {
	case s := <-got:
		assert.Equal(t, "ping", s)
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken")
	}
}

func TestServerCloseEndsSessions(t *testing.T) {
	_, srv, url := newTestServer(t, 8)
	c := dial(t, url, "channel-0", ring.Blocking)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Read(context.Background(), make([]byte, 4))
		errc <- err
	}()
	require.Eventually(t, func() bool { return srv.Sessions() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, srv.Close())

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read survived server close")
	}
	assert.Zero(t, srv.Sessions())

	_, err := Dial(context.Background(), url, "channel-1", ring.Blocking)
	require.Error(t, err)
}

func TestBadFrames(t *testing.T) {
	_, _, url := newTestServer(t, 8)
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/channels/channel-0"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	roundTrip := func(typ int, data []byte) Response {
		t.Helper()
		require.NoError(t, ws.WriteMessage(typ, data))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var resp Response
		require.NoError(t, unmarshal(data, &resp))
		return resp
	}

	resp := roundTrip(websocket.TextMessage, []byte("hello"))
	assert.Equal(t, CodeBadRequest, resp.Code)

	resp = roundTrip(websocket.BinaryMessage, []byte{0xc1})
	assert.Equal(t, CodeBadRequest, resp.Code)

	data, err := marshal(Request{Op: "truncate"})
	require.NoError(t, err)
	resp = roundTrip(websocket.BinaryMessage, data)
	assert.Equal(t, CodeBadRequest, resp.Code)
	require.ErrorIs(t, resp.Err(), ErrBadRequest)

	data, err = marshal(Request{Op: OpRead, Max: -1})
	require.NoError(t, err)
	resp = roundTrip(websocket.BinaryMessage, data)
	assert.Equal(t, CodeBadRequest, resp.Code)

	// The session survives bad frames and keeps serving.
	data, err = marshal(Request{Op: OpWrite, Data: []byte("ok")})
	require.NoError(t, err)
	resp = roundTrip(websocket.BinaryMessage, data)
	require.NoError(t, resp.Err())
	assert.Equal(t, 2, resp.N)

	data, err = marshal(Request{Op: OpStatus})
	require.NoError(t, err)
	resp = roundTrip(websocket.BinaryMessage, data)
	require.NoError(t, resp.Err())
	require.NotNil(t, resp.Status)
	assert.Equal(t, 2, resp.Status.Occupancy)
	assert.Equal(t, 8, resp.Status.Capacity)
}

func TestPipelinedFramesThenDisconnect(t *testing.T) {
	tbl, srv, url := newTestServer(t, 8)
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/channels/channel-0"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	// The first read blocks on the empty channel; the rest queue behind it.
	data, err := marshal(Request{Op: OpRead, Max: 4})
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, data))
	}
	require.Eventually(t, func() bool { return srv.Sessions() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 2*time.Second, 5*time.Millisecond)

	// No queued read consumed data after the disconnect.
	h, err := tbl.Open(0, ring.NonBlocking)
	require.NoError(t, err)
	defer h.Close()
	ctx := context.Background()
	_, err = h.Write(ctx, []byte("x"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := h.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf[:n]))
}

func TestTooManyPendingFrames(t *testing.T) {
	_, srv, url := newTestServer(t, 8)
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/channels/channel-0"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	data, err := marshal(Request{Op: OpRead, Max: 1})
	require.NoError(t, err)
	for range maxPending + 2 {
		if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestFetchStatus(t *testing.T) {
	tbl, _, url := newTestServer(t, 32)
	h, err := tbl.Open(1, ring.Blocking)
	require.NoError(t, err)
	_, err = h.Write(context.Background(), []byte("abc"))
	require.NoError(t, err)

	snap, err := FetchStatus(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, tbl.Snapshot(), snap)
	assert.Equal(t, 3, snap[1].Status.Occupancy)
}

func TestCodeMapping(t *testing.T) {
	for _, code := range []Code{CodeWouldBlock, CodeInterrupted, CodeFault, CodeNoSuchInstance, CodeUnsupportedCommand, CodeBadRequest} {
		err := Response{Code: code, Message: "x"}.Err()
		assert.Equal(t, code, codeOf(err), code.String())
	}
	assert.NoError(t, Response{}.Err())
	assert.Equal(t, Response{N: 3}, errorResponse(3, nil))
	assert.Equal(t, "Code(42)", Code(42).String())
}
