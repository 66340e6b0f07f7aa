// Package devnode exposes a scull.Table over HTTP so that processes other
// than the owner can open channels.
//
// GET /channels returns a JSON snapshot of every channel. GET
// /channels/{name}?mode=blocking|nonblocking upgrades to a websocket bound
// to one scull.Handle. Each binary frame carries one msgpack Request and is
// answered by exactly one msgpack Response, in order.
//
// Dial opens such a websocket and returns a Conn that implements
// scull.Device, so the same peer code runs in-process and remotely:
//
//	conn, err := devnode.Dial(ctx, "http://localhost:8642", "channel-0", ring.Blocking)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//	n, err := conn.Write(ctx, []byte("hello"))
package devnode
