// Package ring provides a bounded circular byte channel with blocking and
// non-blocking transfer semantics.
//
// The package is split into two layers:
//
//   - Store: a fixed-capacity byte array with read/write cursors and an
//     explicit occupancy counter. It has no locking of its own.
//
//   - Channel: a Store guarded by one mutex and two broadcast conditions
//     (data available, space available). Channel implements the blocking
//     read and write algorithms, partial transfers, and consistent status
//     snapshots.
//
// Writes never block to force a full transfer: a write larger than the free
// space stores what fits and returns the partial count. Reads return at most
// the bytes currently stored. In Blocking mode a call waits until it can move
// at least one byte; in NonBlocking mode it fails with ErrWouldBlock instead.
// A wait bound to a cancelled context returns ErrInterrupted and changes
// nothing, so the whole call may be retried.
//
// Example usage:
//
//	ch := ring.NewN(1024)
//
//	n, err := ch.Write(ctx, []byte("hello"), ring.Blocking)
//
//	buf := make([]byte, 5)
//	n, err = ch.Read(ctx, buf, ring.Blocking)
//
//	st := ch.Status()
//	fmt.Println(st.Occupancy, st.Capacity)
package ring
