package streambuf

import (
	"container/list"
)

// The write manager lends contiguous unused capacity, tracking outstanding
// write leases so that written data becomes visible to readers only once the
// oldest outstanding write lease is closed. The read manager is its mirror:
// it lends contiguous published data, and reclaims it as free capacity once
// the oldest outstanding read lease is closed. Each manager's node list holds
// the start cursors of its outstanding leases; insertion order equals ring
// order by construction, so the front of the list is always the oldest lease
// on the ring.

// Prepare lends a write lease over n contiguous unused slots, or fails with
// ErrOutOfRange if fewer than n are currently lendable, leaving the buffer
// unchanged. A negative n will cause a panic. The returned lease must be
// closed to publish the written region; see WriteLease.
func (x *Buffer[T]) Prepare(n int) (*WriteLease[T], error) {
	if n < 0 {
		panic(`streambuf: negative count`)
	}
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	if n > x.writeAvailableLocked() {
		return nil, ErrOutOfRange
	}
	return x.lendWriteLocked(n), nil
}

// PrepareAll lends a write lease over all currently lendable capacity. It
// never fails: if no capacity is lendable the returned lease is empty.
func (x *Buffer[T]) PrepareAll() *WriteLease[T] {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	return x.lendWriteLocked(x.writeAvailableLocked())
}

// Read lends a read lease over the n oldest published elements, or fails
// with ErrOutOfRange if fewer than n are published, leaving the buffer
// unchanged. A negative n will cause a panic. The returned lease must be
// closed to retire the consumed region; see ReadLease.
func (x *Buffer[T]) Read(n int) (*ReadLease[T], error) {
	if n < 0 {
		panic(`streambuf: negative count`)
	}
	x.readMu.Lock()
	defer x.readMu.Unlock()
	if n > x.readAvailableLocked() {
		return nil, ErrOutOfRange
	}
	return x.lendReadLocked(n), nil
}

// ReadAll lends a read lease over all currently published elements. It never
// fails: if the buffer is empty the returned lease is empty.
func (x *Buffer[T]) ReadAll() *ReadLease[T] {
	x.readMu.Lock()
	defer x.readMu.Unlock()
	return x.lendReadLocked(x.readAvailableLocked())
}

// writeAvailableLocked returns the lendable write capacity. One slot past
// afterStop stays reserved, so that a write of the full remaining capacity
// still leaves start != stop distinguishable from empty.
func (x *Buffer[T]) writeAvailableLocked() int {
	return x.dist(x.wrap(x.afterStop.Load()+1), x.beforeStart.Load())
}

// readAvailableLocked returns the published element count. No reservation is
// needed on the read side.
func (x *Buffer[T]) readAvailableLocked() int {
	return x.dist(x.start.Load(), x.stop.Load())
}

func (x *Buffer[T]) lendWriteLocked(n int) *WriteLease[T] {
	lo := x.afterStop.Load()
	hi := x.wrap(lo + int64(n))
	l := WriteLease[T]{lease[T]{
		buf:  x,
		node: x.writeNodes.PushBack(lo),
		lo:   lo,
		size: n,
	}}
	x.afterStop.Store(hi)
	if b := x.logger.Trace(); b.Enabled() {
		b.Int(`lo`, int(lo)).Int(`hi`, int(hi)).Int(`n`, n).Log(`write lease acquired`)
	}
	return &l
}

func (x *Buffer[T]) lendReadLocked(n int) *ReadLease[T] {
	lo := x.start.Load()
	hi := x.wrap(lo + int64(n))
	l := ReadLease[T]{lease[T]{
		buf:  x,
		node: x.readNodes.PushBack(lo),
		lo:   lo,
		size: n,
	}}
	x.start.Store(hi)
	if b := x.logger.Trace(); b.Enabled() {
		b.Int(`lo`, int(lo)).Int(`hi`, int(hi)).Int(`n`, n).Log(`read lease acquired`)
	}
	return &l
}

// releaseWrite removes the given node from the write manager. If it was the
// oldest outstanding write lease, stop advances to the new oldest node, or to
// afterStop if none remain: the writes whose nodes have already been removed
// become published, all at once, preserving acquire order visibility.
func (x *Buffer[T]) releaseWrite(node *list.Element) {
	x.writeMu.Lock()
	oldest := node.Prev() == nil
	x.writeNodes.Remove(node)
	if oldest {
		if front := x.writeNodes.Front(); front != nil {
			x.stop.Store(front.Value.(int64))
		} else {
			x.stop.Store(x.afterStop.Load())
		}
	}
	x.writeMu.Unlock()

	if oldest {
		// data may have become visible; wake any read waiter
		signal(x.readable)
	}

	if b := x.logger.Trace(); b.Enabled() {
		b.Bool(`published`, oldest).Log(`write lease released`)
	}
}

// releaseRead removes the given node from the read manager. If it was the
// oldest outstanding read lease, beforeStart advances to the new oldest node,
// or to start if none remain, reclaiming the consumed region as free
// capacity, oldest-release-first.
func (x *Buffer[T]) releaseRead(node *list.Element) {
	x.readMu.Lock()
	oldest := node.Prev() == nil
	x.readNodes.Remove(node)
	if oldest {
		if front := x.readNodes.Front(); front != nil {
			x.beforeStart.Store(front.Value.(int64))
		} else {
			x.beforeStart.Store(x.start.Load())
		}
	}
	x.readMu.Unlock()

	if oldest {
		// capacity may have been reclaimed; wake any write waiter
		signal(x.writable)
	}

	if b := x.logger.Trace(); b.Enabled() {
		b.Bool(`reclaimed`, oldest).Log(`read lease released`)
	}
}
