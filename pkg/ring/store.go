package ring

import (
	"io"
)

// Store is a fixed-capacity circular byte array with a read cursor, a write
// cursor and an explicit occupancy counter.
//
// Occupancy is tracked separately from the cursors because equal cursors are
// ambiguous between empty and full. The live bytes are the Len() positions
// starting at the read cursor, wrapping at the end of the array.
//
// Store does no locking and never blocks; Channel provides both.
type Store struct {
	buf         []byte
	read, write int
	n           int
}

// NewStore creates a Store over buf. The capacity is len(buf).
func NewStore(buf []byte) *Store {
	return &Store{buf: buf}
}

// Cap returns the capacity in bytes. It is zero after Release.
func (s *Store) Cap() int {
	return len(s.buf)
}

// Len returns the number of unread bytes.
func (s *Store) Len() int {
	return s.n
}

// Free returns the number of bytes that can be written before the store is
// full.
func (s *Store) Free() int {
	return len(s.buf) - s.n
}

// Cursors returns the read and write offsets, both in [0, Cap()).
func (s *Store) Cursors() (read, write int) {
	return s.read, s.write
}

// Split divides a transfer of count bytes starting at cursor into the run
// that fits before the wrap boundary and the run that continues from offset
// zero. The caller guarantees count <= Cap().
func (s *Store) Split(cursor, count int) (first, second int) {
	first = min(count, len(s.buf)-cursor)
	return first, count - first
}

// Put copies as much of p as fits into the free space at the write cursor
// and returns the number of bytes stored. The remainder of p is not kept.
func (s *Store) Put(p []byte) int {
	n := min(len(p), s.Free())
	first, second := s.Split(s.write, n)
	copy(s.buf[s.write:s.write+first], p[:first])
	if second > 0 {
		copy(s.buf[:second], p[first:n])
	}
	s.commitWrite(n)
	return n
}

// Take copies up to len(p) unread bytes starting at the read cursor into p
// and returns the number of bytes consumed.
func (s *Store) Take(p []byte) int {
	n := min(len(p), s.n)
	first, second := s.Split(s.read, n)
	copy(p[:first], s.buf[s.read:s.read+first])
	if second > 0 {
		copy(p[first:n], s.buf[:second])
	}
	s.commitRead(n)
	return n
}

// PutFrom fills up to count bytes of free space with data read from r.
//
// The cursors only move once both runs were read in full. If r fails, the
// bytes already copied stay outside the live region and the error is
// returned with a zero count.
func (s *Store) PutFrom(r io.Reader, count int) (int, error) {
	n := min(count, s.Free())
	first, second := s.Split(s.write, n)
	if _, err := io.ReadFull(r, s.buf[s.write:s.write+first]); err != nil {
		return 0, err
	}
	if second > 0 {
		if _, err := io.ReadFull(r, s.buf[:second]); err != nil {
			return 0, err
		}
	}
	s.commitWrite(n)
	return n, nil
}

// TakeTo writes up to limit unread bytes to w. The bytes are only consumed if
// w accepted both runs in full; otherwise the store is unchanged.
func (s *Store) TakeTo(w io.Writer, limit int) (int, error) {
	n := min(limit, s.n)
	first, second := s.Split(s.read, n)
	if err := writeFull(w, s.buf[s.read:s.read+first]); err != nil {
		return 0, err
	}
	if second > 0 {
		if err := writeFull(w, s.buf[:second]); err != nil {
			return 0, err
		}
	}
	s.commitRead(n)
	return n, nil
}

// Peek copies the unread bytes into a new slice without consuming them.
func (s *Store) Peek() []byte {
	out := make([]byte, s.n)
	first, second := s.Split(s.read, s.n)
	copy(out, s.buf[s.read:s.read+first])
	copy(out[first:], s.buf[:second])
	return out
}

// Reset discards all unread data and rewinds both cursors to zero.
func (s *Store) Reset() {
	s.read, s.write, s.n = 0, 0, 0
}

// Release detaches and returns the underlying array. The store is empty with
// zero capacity afterwards.
func (s *Store) Release() []byte {
	buf := s.buf
	s.buf = nil
	s.Reset()
	return buf
}

func (s *Store) commitWrite(n int) {
	if n == 0 {
		return
	}
	s.write = (s.write + n) % len(s.buf)
	s.n += n
}

func (s *Store) commitRead(n int) {
	if n == 0 {
		return
	}
	s.read = (s.read + n) % len(s.buf)
	s.n -= n
}

func writeFull(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
