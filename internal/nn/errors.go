package nn

import "errors"

var (
	// ErrConfiguration reports an invalid topology, population or breeding
	// configuration. It is raised at construction and never retried.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDimensionMismatch reports a vector whose length does not match the
	// width the network was built for.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
