package streambuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Writer A acquires before writer B, and B releases first: nothing is
// published until A releases, at which point both regions become visible at
// once, in acquire order.
func TestWriteLease_outOfOrderRelease(t *testing.T) {
	b := New[int](11)

	a, err := b.Prepare(3)
	require.NoError(t, err)
	fillSequential(a, 1)

	bb, err := b.Prepare(2)
	require.NoError(t, err)
	fillSequential(bb, 100)

	require.NoError(t, bb.Close())
	assert.Equal(t, 0, b.Len(), `younger writer must not publish ahead of the older`)
	checkInvariants(t, b)

	require.NoError(t, a.Close())
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, []int{1, 2, 3, 100, 101}, contents(b))
	checkInvariants(t, b)
}

// Three writers, released youngest first: the publish cursor advances only
// when the oldest closes, and then past every already-closed lease.
func TestWriteLease_outOfOrderReleaseChain(t *testing.T) {
	b := New[int](16)

	w1, err := b.Prepare(4)
	require.NoError(t, err)
	fillSequential(w1, 10)
	w2, err := b.Prepare(4)
	require.NoError(t, err)
	fillSequential(w2, 20)
	w3, err := b.Prepare(4)
	require.NoError(t, err)
	fillSequential(w3, 30)

	require.NoError(t, w3.Close())
	assert.Equal(t, 0, b.Len())
	require.NoError(t, w2.Close())
	assert.Equal(t, 0, b.Len())
	require.NoError(t, w1.Close())
	assert.Equal(t, 12, b.Len())
	assert.Equal(t, []int{10, 11, 12, 13, 20, 21, 22, 23, 30, 31, 32, 33}, contents(b))
	checkInvariants(t, b)
}

// Mirror of the write-side claim: capacity returns to writers only when the
// oldest outstanding read lease closes.
func TestReadLease_outOfOrderReclaim(t *testing.T) {
	b := New[int](8) // usable 7

	w, err := b.Prepare(7)
	require.NoError(t, err)
	fillSequential(w, 0)
	require.NoError(t, w.Close())
	require.True(t, b.Full())

	r1, err := b.Read(4)
	require.NoError(t, err)
	r2, err := b.Read(3)
	require.NoError(t, err)

	// all data is leased out, but none reclaimed yet
	_, err = b.Prepare(1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, r2.Close())
	_, err = b.Prepare(1)
	assert.ErrorIs(t, err, ErrOutOfRange, `younger reader must not reclaim ahead of the older`)
	checkInvariants(t, b)

	require.NoError(t, r1.Close())
	w, err = b.Prepare(7)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	checkInvariants(t, b)
}

// Concurrently live leases never cover a common slot, including in wrapped
// configurations.
func TestLease_noDoubleOccupancy(t *testing.T) {
	b := New[int](8)

	// wrap the cursors
	w, err := b.Prepare(5)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	r, err := b.Read(5)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	occupied := make(map[*int]string)
	claim := func(name string, a, b []int) {
		for i := range a {
			p := &a[i]
			if prev, ok := occupied[p]; ok {
				t.Fatalf(`slot shared between %s and %s`, prev, name)
			}
			occupied[p] = name
		}
		for i := range b {
			p := &b[i]
			if prev, ok := occupied[p]; ok {
				t.Fatalf(`slot shared between %s and %s`, prev, name)
			}
			occupied[p] = name
		}
	}

	w1, err := b.Prepare(3)
	require.NoError(t, err)
	fillSequential(w1, 0)
	require.NoError(t, w1.Close())

	r1, err := b.Read(2)
	require.NoError(t, err)
	r2, err := b.Read(1)
	require.NoError(t, err)
	w2, err := b.Prepare(2)
	require.NoError(t, err)
	w3, err := b.Prepare(2)
	require.NoError(t, err)

	a1, b1 := r1.Slices()
	claim(`r1`, a1, b1)
	a2, b2 := r2.Slices()
	claim(`r2`, a2, b2)
	a3, b3 := w2.Slices()
	claim(`w2`, a3, b3)
	a4, b4 := w3.Slices()
	claim(`w3`, a4, b4)

	assert.Equal(t, 7, len(occupied), `leases should cover seven distinct slots`)

	for _, c := range []interface{ Close() error }{r1, r2, w2, w3} {
		require.NoError(t, c.Close())
	}
	checkInvariants(t, b)
}

func TestLease_slicesWrap(t *testing.T) {
	b := New[int](6)

	w, err := b.Prepare(4)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	r, err := b.Read(4)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// lease starts at slot 4 and wraps: spans must be [4:6] and [0:2]
	w, err = b.Prepare(4)
	require.NoError(t, err)
	a, bb := w.Slices()
	require.Len(t, a, 2)
	require.Len(t, bb, 2)
	assert.Same(t, &b.storage[4], &a[0])
	assert.Same(t, &b.storage[0], &bb[0])

	copy(a, []int{40, 41})
	copy(bb, []int{42, 43})
	require.NoError(t, w.Close())
	assert.Equal(t, []int{40, 41, 42, 43}, contents(b))

	rr, err := b.Read(4)
	require.NoError(t, err)
	a, bb = rr.Slices()
	assert.Equal(t, []int{40, 41}, a)
	assert.Equal(t, []int{42, 43}, bb)
	assert.Equal(t, []int{40, 41, 42, 43}, rr.Values())
	require.NoError(t, rr.Close())
}

func TestLease_atAndSet(t *testing.T) {
	b := New[int](5)

	w, err := b.Prepare(3)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Len())
	w.Set(0, 7)
	*w.At(1) = 8
	w.Set(2, 9)
	assert.PanicsWithValue(t, `streambuf: lease index out of range`, func() { w.At(3) })
	assert.PanicsWithValue(t, `streambuf: lease index out of range`, func() { w.At(-1) })
	require.NoError(t, w.Close())

	r, err := b.Read(3)
	require.NoError(t, err)
	assert.Equal(t, 7, *r.At(0))
	assert.Equal(t, 9, *r.At(2))

	var viaIter []int
	for _, p := range r.All() {
		viaIter = append(viaIter, *p)
	}
	assert.Equal(t, []int{7, 8, 9}, viaIter)
	require.NoError(t, r.Close())
}

// Empty read lease on an empty buffer: zero length, closing it changes
// nothing.
func TestReadLease_emptyReadAll(t *testing.T) {
	b := New[int](4)

	r := b.ReadAll()
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Values())
	a, bb := r.Slices()
	assert.Nil(t, a)
	assert.Nil(t, bb)
	require.NoError(t, r.Close())
	assert.Equal(t, 0, b.Len())
	checkInvariants(t, b)
}

func TestWriteLease_emptyPrepareAll(t *testing.T) {
	b := New[int](4)

	w, err := b.Prepare(3)
	require.NoError(t, err)

	// no capacity lendable while w holds it all
	empty := b.PrepareAll()
	assert.Equal(t, 0, empty.Len())
	require.NoError(t, empty.Close())
	assert.Equal(t, 0, b.Len())

	fillSequential(w, 0)
	require.NoError(t, w.Close())
	assert.Equal(t, 3, b.Len())
	checkInvariants(t, b)
}

// A closed lease is inert: closing again is a no-op, with no effect on the
// ring; access panics.
func TestLease_closeIdempotent(t *testing.T) {
	b := New[int](8)

	w, err := b.Prepare(3)
	require.NoError(t, err)
	fillSequential(w, 0)
	require.NoError(t, w.Close())
	require.Equal(t, 3, b.Len())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 3, b.Len())
	checkInvariants(t, b)

	assert.Equal(t, 0, w.Len())
	assert.PanicsWithValue(t, `streambuf: use of closed lease`, func() { w.At(0) })
	assert.PanicsWithValue(t, `streambuf: use of closed lease`, func() { w.Slices() })
	assert.PanicsWithValue(t, `streambuf: use of closed lease`, func() {
		for range w.All() {
		}
	})

	r, err := b.Read(2)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, b.Len())
	checkInvariants(t, b)
}

// Transferring ownership of a lease pointer and closing via the new owner
// leaves nothing for the original reference to release.
func TestLease_ownershipTransfer(t *testing.T) {
	b := New[int](8)

	w, err := b.Prepare(2)
	require.NoError(t, err)
	fillSequential(w, 5)

	moved := w
	require.NoError(t, moved.Close())
	assert.Equal(t, 2, b.Len())

	require.NoError(t, w.Close()) // same handle, already inert
	assert.Equal(t, 2, b.Len())
	checkInvariants(t, b)
}
