package streambuf

import (
	"container/list"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultPollInterval is the fallback poll quantum used by PrepareContext
	// and ReadContext, between failed acquisition attempts, when not
	// configured via WithPollInterval. Waiters are normally woken by the
	// release of a lease; the poll timer only guards against coalesced or
	// raced wakeups.
	DefaultPollInterval = time.Millisecond
)

type (
	// Buffer is a bounded FIFO stream buffer over elements of type T,
	// supporting zero-copy in-place access via leases, see Prepare and Read.
	// Instances must be initialized using the New factory.
	//
	// The buffer is a ring of a fixed number of slots, of which all but one
	// are usable as live data (the last slot disambiguates full from empty,
	// see Cap). At any moment each slot belongs to exactly one of four
	// regions, delimited by four cursors:
	//
	//	beforeStart … start      leased for reading (consumers in progress)
	//	start … stop             published data (the live contents)
	//	stop … afterStop         leased for writing (producers in progress)
	//	afterStop … beforeStart  free capacity
	//
	// Acquire and release operations are safe for concurrent use. The write
	// side (Prepare, PrepareAll, PrepareContext, WriteLease.Close) and the
	// read side (Read, ReadAll, ReadContext, ReadLease.Close) synchronise on
	// independent mutexes, and never block each other.
	Buffer[T any] struct {
		storage []T
		n       int64 // == len(storage)

		// write manager: owns afterStop, publishes to stop
		writeMu    sync.Mutex
		writeNodes list.List // outstanding write lease start cursors, ring order

		// read manager: owns start, publishes to beforeStart
		readMu    sync.Mutex
		readNodes list.List // outstanding read lease start cursors, ring order

		// cursors are mutated only under the owning manager's mutex, and
		// observed by the peer manager via atomic loads
		beforeStart atomic.Int64
		start       atomic.Int64
		stop        atomic.Int64
		afterStop   atomic.Int64

		// edge-coalesced wakeups, signalled at release
		readable chan struct{}
		writable chan struct{}

		clock        clockwork.Clock
		pollInterval time.Duration
		logger       *logiface.Logger[logiface.Event]
	}

	// Option models a configuration option for New.
	Option[T any] func(c *bufferConfig[T])

	// bufferConfig is the internal configuration type used by the New function.
	bufferConfig[T any] struct {
		storage      []T
		clock        clockwork.Clock
		pollInterval time.Duration
		logger       *logiface.Logger[logiface.Event]
	}
)

// WithStorage configures the buffer to use s as its backing storage, instead
// of allocating its own. The length of s must equal the capacity passed to
// New, or New will panic. The buffer assumes exclusive ownership of s.
func WithStorage[T any](s []T) Option[T] {
	return func(c *bufferConfig[T]) {
		c.storage = s
	}
}

// WithLogger configures an optional structured logger, receiving trace and
// debug events for lease acquisition, release, and waiter behavior. A nil
// logger (the default) disables logging.
func WithLogger[T any](logger *logiface.Logger[logiface.Event]) Option[T] {
	return func(c *bufferConfig[T]) {
		c.logger = logger
	}
}

// WithClock configures the time source used by the async waiters, e.g. to
// support deterministic tests. Defaults to the real clock.
func WithClock[T any](clock clockwork.Clock) Option[T] {
	return func(c *bufferConfig[T]) {
		c.clock = clock
	}
}

// WithPollInterval configures the fallback poll quantum of PrepareContext and
// ReadContext. A non-positive interval will cause a panic.
// Defaults to DefaultPollInterval.
func WithPollInterval[T any](interval time.Duration) Option[T] {
	if interval <= 0 {
		panic(`streambuf: poll interval must be positive`)
	}
	return func(c *bufferConfig[T]) {
		c.pollInterval = interval
	}
}

// New initializes a new Buffer with the given capacity, in number of slots.
// The usable capacity is one less, see Cap. A capacity <= 0, or storage
// (provided via WithStorage) of a different length, will cause a panic.
func New[T any](capacity int, options ...Option[T]) *Buffer[T] {
	if capacity <= 0 {
		panic(`streambuf: capacity must be positive`)
	}

	var c bufferConfig[T]
	for _, o := range options {
		if o != nil {
			o(&c)
		}
	}

	if c.storage == nil {
		c.storage = make([]T, capacity)
	} else if len(c.storage) != capacity {
		panic(`streambuf: storage length must equal capacity`)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.pollInterval == 0 {
		c.pollInterval = DefaultPollInterval
	}

	b := Buffer[T]{
		storage:      c.storage,
		n:            int64(capacity),
		readable:     make(chan struct{}, 1),
		writable:     make(chan struct{}, 1),
		clock:        c.clock,
		pollInterval: c.pollInterval,
		logger:       c.logger,
	}
	b.writeNodes.Init()
	b.readNodes.Init()
	return &b
}

// dist returns the distance from a to b on the circular axis, in [0, n).
func (x *Buffer[T]) dist(a, b int64) int {
	d := b - a
	if d < 0 {
		d += x.n
	}
	return int(d)
}

// wrap reduces v modulo n, for v in [0, 2n).
func (x *Buffer[T]) wrap(v int64) int64 {
	if v >= x.n {
		v -= x.n
	}
	return v
}

// Len returns the number of published elements, i.e. those visible to new
// read leases. Elements inside an open write lease are not counted until the
// lease (and all older write leases) have been closed. Len is non-blocking,
// and not serialised against in-flight acquires or releases.
func (x *Buffer[T]) Len() int {
	return x.dist(x.start.Load(), x.stop.Load())
}

// Cap returns the usable capacity, which is one less than the slot count the
// buffer was constructed with (one slot is permanently reserved to
// disambiguate full from empty).
func (x *Buffer[T]) Cap() int {
	return int(x.n) - 1
}

// Empty returns true if no published elements are available.
func (x *Buffer[T]) Empty() bool {
	return x.Len() == 0
}

// Full returns true if the published size has reached the usable capacity.
func (x *Buffer[T]) Full() bool {
	return x.Len() == x.Cap()
}

// Clear resets the buffer to its initial, empty state. If any lease is
// outstanding, on either side, it fails with ErrLeaseOutstanding, and the
// buffer is unchanged. The contents of the backing storage are not zeroed.
func (x *Buffer[T]) Clear() error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	x.readMu.Lock()
	defer x.readMu.Unlock()

	if x.writeNodes.Len() != 0 || x.readNodes.Len() != 0 {
		return ErrLeaseOutstanding
	}

	x.beforeStart.Store(0)
	x.start.Store(0)
	x.stop.Store(0)
	x.afterStop.Store(0)

	x.logger.Debug().Log(`buffer cleared`)

	return nil
}

// Front returns the oldest published element. It panics if the buffer is
// empty, see Empty.
func (x *Buffer[T]) Front() T {
	start, stop := x.start.Load(), x.stop.Load()
	if start == stop {
		panic(`streambuf: front of empty buffer`)
	}
	return x.storage[start]
}

// Back returns the newest published element. It panics if the buffer is
// empty, see Empty.
func (x *Buffer[T]) Back() T {
	start, stop := x.start.Load(), x.stop.Load()
	if start == stop {
		panic(`streambuf: back of empty buffer`)
	}
	return x.storage[x.wrap(stop-1+x.n)]
}

// At returns the published element at logical index i, in [0, Len()), or
// ErrOutOfRange without a value.
func (x *Buffer[T]) At(i int) (T, error) {
	start, stop := x.start.Load(), x.stop.Load()
	if i < 0 || i >= x.dist(start, stop) {
		var zero T
		return zero, ErrOutOfRange
	}
	return x.storage[x.wrap(start+int64(i))], nil
}

// Index returns the published element at logical index i, without any bounds
// check. Callers are responsible for ensuring i is in [0, Len()), see At for
// a checked variant.
func (x *Buffer[T]) Index(i int) T {
	return x.storage[x.wrap(x.start.Load()+int64(i))]
}

// All returns an iterator over the live contents, in logical order, yielding
// logical indices and values. The sequence is finite and restartable: the
// start cursor and size are observed once per iteration, at its beginning.
// Iterating concurrently with writes is safe; iterating concurrently with
// reads (which retire slots back to writers) may observe overwritten values.
func (x *Buffer[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		start, stop := x.start.Load(), x.stop.Load()
		for i, size := 0, x.dist(start, stop); i < size; i++ {
			if !yield(i, x.storage[x.wrap(start+int64(i))]) {
				return
			}
		}
	}
}

// String returns a human-readable rendering of the buffer's published region.
func (x *Buffer[T]) String() string {
	start, stop := x.start.Load(), x.stop.Load()
	return fmt.Sprintf(`streambuf.Buffer{start: %d, stop: %d, size: %d}`, start, stop, x.dist(start, stop))
}

// signal performs a non-blocking, coalescing send.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
