package dtqueue

import (
	"github.com/cockroachdb/errors"
	"github.com/xuanhan863/dtqueue/pkg/interval"
)

// Error kinds from spec §7.
var (
	// ErrUnknownSubtree is returned when a (begin, count) handle does
	// not name any subtree currently in the forest.
	ErrUnknownSubtree = errors.New("dtqueue: unknown subtree")

	// ErrInvalidInterval re-exports pkg/interval's sentinel so callers
	// of this package never need to import pkg/interval just to check
	// errors.Is against it.
	ErrInvalidInterval = interval.ErrInvalidInterval
)
