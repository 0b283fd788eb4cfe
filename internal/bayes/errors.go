package bayes

import "errors"

var (
	// ErrConfiguration means the engine cannot locate its collaborators.
	// It aborts the operation.
	ErrConfiguration = errors.New("bayes: configuration error")
	// ErrAggregateQuery wraps failures of the aggregate reads.
	ErrAggregateQuery = errors.New("bayes: aggregate query failed")
	// ErrCacheUnavailable is logged and never returned; the cache is
	// treated as empty.
	ErrCacheUnavailable = errors.New("bayes: cache unavailable")
	// ErrBulkWrite wraps a failed update of every item.
	ErrBulkWrite = errors.New("bayes: bulk write failed")
)
