// Package streambuf implements a bounded FIFO stream buffer with zero-copy,
// in-place writing and reading, via scoped leases.
//
// A Buffer is a ring of fixed capacity over elements of a single type.
// Producers acquire a write lease over contiguous unused capacity, fill it in
// place, and close it to publish the written region to consumers. Consumers
// acquire a read lease over contiguous published data, consume it in place,
// and close it to retire the region back to free capacity. Leases may be
// closed in a different order than they were acquired; publication and
// reclamation both advance oldest-release-first, so readers always observe a
// gap-free prefix of the data, in the exact order it was written.
//
// Acquisition is offered both synchronously (Prepare, Read, failing with
// ErrOutOfRange) and asynchronously (PrepareContext, ReadContext, suspending
// until the request can be satisfied, or the context is done).
//
// No lock is held while a lease is alive; only the constant-time acquire and
// release steps synchronise, on independent per-direction mutexes. A writer's
// acquire or release never blocks a reader's, and vice versa.
package streambuf
