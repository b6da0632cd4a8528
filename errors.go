package streambuf

import (
	"errors"
)

// Standard errors.
var (
	// ErrOutOfRange is returned by Prepare and Read when the requested count
	// exceeds the currently lendable capacity or data, and by Buffer.At when
	// the index is beyond the published size. The operation has no effect on
	// the buffer's state.
	ErrOutOfRange = errors.New("streambuf: out of range")

	// ErrLeaseOutstanding is returned by Clear while one or more leases are
	// outstanding. The buffer is left unchanged.
	ErrLeaseOutstanding = errors.New("streambuf: lease outstanding")
)
