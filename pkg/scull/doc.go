// Package scull manages a fixed table of independent ring channels and the
// handles collaborators use to drive them.
//
// A Table is created once from a Config (number of channels and capacity of
// each) and destroyed once. Creation is all-or-nothing: if storage for any
// channel cannot be allocated, every channel already allocated is released in
// reverse order and New fails with ErrOutOfMemory. Channels are addressed by
// index or by name ("channel-0", "channel-1", ...); the table never grows or
// shrinks while live.
//
// Collaborators open a Handle on one channel in Blocking or NonBlocking mode,
// then Write, Read, Query its Status, and Close the handle. Closing a handle
// never tears down the channel.
//
// Example usage:
//
//	tbl, err := scull.New(scull.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tbl.Destroy()
//
//	h, err := tbl.OpenName("channel-0", ring.Blocking)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	n, err := h.Write(ctx, []byte("Message from Process A #0"))
package scull
