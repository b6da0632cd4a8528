package streambuf

import (
	"container/list"
	"iter"
)

type (
	// lease is the state common to WriteLease and ReadLease: a half-open
	// range of the ring, starting at lo and covering size slots, plus the
	// handle to the owning manager's node. A closed lease has a nil buf, and
	// is inert.
	lease[T any] struct {
		buf  *Buffer[T]
		node *list.Element
		lo   int64
		size int
	}

	// WriteLease is a scoped, single-owner handle over contiguous unused
	// capacity, acquired via Buffer.Prepare, Buffer.PrepareAll, or
	// Buffer.PrepareContext. The holder fills the leased slots in place (At,
	// Slices, Set, Copy), then calls Close, which publishes the region to
	// readers. Close should normally be deferred at the acquisition site.
	//
	// While the lease is alive, no lock is held, and no other lease covers
	// any of its slots. A WriteLease must not be shared between goroutines
	// without external synchronisation, and must be closed before the Buffer
	// is discarded.
	WriteLease[T any] struct {
		lease[T]
	}

	// ReadLease is a scoped, single-owner handle over the oldest contiguous
	// published data, acquired via Buffer.Read, Buffer.ReadAll, or
	// Buffer.ReadContext. The holder consumes the leased slots in place (At,
	// Slices, CopyTo, Values), then calls Close, which retires the region
	// back to free capacity. Close should normally be deferred at the
	// acquisition site.
	ReadLease[T any] struct {
		lease[T]
	}
)

// Len returns the number of slots covered by the lease, or 0 once closed.
func (x *lease[T]) Len() int {
	if x.buf == nil {
		return 0
	}
	return x.size
}

// At returns a pointer to the i'th leased slot. The pointer aliases the
// buffer's backing storage directly; there is no staging area. It panics if
// i is outside [0, Len()), or if the lease has been closed.
func (x *lease[T]) At(i int) *T {
	if x.buf == nil {
		panic(`streambuf: use of closed lease`)
	}
	if i < 0 || i >= x.size {
		panic(`streambuf: lease index out of range`)
	}
	return &x.buf.storage[x.buf.wrap(x.lo+int64(i))]
}

// Slices returns the leased range as at most two contiguous spans of the
// backing storage, in logical order. The second span is non-nil only when
// the range wraps around the end of the ring. Both spans are nil for an
// empty lease. It panics if the lease has been closed.
func (x *lease[T]) Slices() (a, b []T) {
	if x.buf == nil {
		panic(`streambuf: use of closed lease`)
	}
	if x.size == 0 {
		return nil, nil
	}
	lo := int(x.lo)
	if hi := lo + x.size; hi <= int(x.buf.n) {
		return x.buf.storage[lo:hi:hi], nil
	}
	return x.buf.storage[lo:], x.buf.storage[:lo+x.size-int(x.buf.n)]
}

// All returns an iterator over the leased slots, in logical order, yielding
// logical indices and pointers into the ring. The sequence is finite and
// restartable. Iterating a closed lease panics, on first use.
func (x *lease[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		if x.buf == nil {
			panic(`streambuf: use of closed lease`)
		}
		for i := 0; i < x.size; i++ {
			if !yield(i, x.At(i)) {
				return
			}
		}
	}
}

// close detaches the lease, returning its node handle, or nil if it was
// already closed.
func (x *lease[T]) close() (buf *Buffer[T], node *list.Element) {
	buf, node = x.buf, x.node
	x.buf = nil
	x.node = nil
	return
}

// Set stores v into the i'th leased slot. It panics under the same
// conditions as At.
func (x *WriteLease[T]) Set(i int, v T) {
	*x.At(i) = v
}

// Copy copies src into the lease, in logical order, starting at slot 0. It
// returns the number of elements copied, the lesser of len(src) and Len().
// It panics if the lease has been closed.
func (x *WriteLease[T]) Copy(src []T) int {
	a, b := x.Slices()
	n := copy(a, src)
	if n < len(src) {
		n += copy(b, src[n:])
	}
	return n
}

// Close releases the lease, publishing the leased region to readers once all
// older write leases have also been closed. Close is idempotent: second and
// subsequent calls are no-ops. It never returns a non-nil error.
func (x *WriteLease[T]) Close() error {
	if buf, node := x.close(); buf != nil {
		buf.releaseWrite(node)
	}
	return nil
}

// CopyTo copies the leased contents into dst, in logical order. It returns
// the number of elements copied, the lesser of len(dst) and Len(). It panics
// if the lease has been closed.
func (x *ReadLease[T]) CopyTo(dst []T) int {
	a, b := x.Slices()
	n := copy(dst, a)
	if n < len(dst) {
		n += copy(dst[n:], b)
	}
	return n
}

// Values returns a copy of the leased contents, in logical order, or nil for
// an empty or closed lease.
func (x *ReadLease[T]) Values() []T {
	if x.buf == nil || x.size == 0 {
		return nil
	}
	s := make([]T, x.size)
	x.CopyTo(s)
	return s
}

// Close releases the lease, retiring the leased region back to free capacity
// once all older read leases have also been closed. Close is idempotent:
// second and subsequent calls are no-ops. It never returns a non-nil error.
func (x *ReadLease[T]) Close() error {
	if buf, node := x.close(); buf != nil {
		buf.releaseRead(node)
	}
	return nil
}
