package persist

import "errors"

var (
	// ErrAlreadyAttached is returned when a coordinator already holds a store.
	ErrAlreadyAttached = errors.New("store already attached")

	// ErrNotAttached is returned when Root needs the store but none is attached.
	ErrNotAttached = errors.New("store not attached")

	// ErrNotFound is returned when an object is neither registered nor stored.
	ErrNotFound = errors.New("object not found")

	// ErrDeleted is returned when mutating an object already marked deleted.
	ErrDeleted = errors.New("object deleted")

	// ErrDuplicate is returned when a context receives a second insert for an id.
	ErrDuplicate = errors.New("object inserted twice")

	// ErrForeignObject is returned when an object is used through a context
	// that does not own it.
	ErrForeignObject = errors.New("object owned by another context")

	// ErrTxDone is returned by every Tx method once Perform has returned.
	ErrTxDone = errors.New("transaction already finished")

	// ErrStale is returned by operations on a manager that has been replaced
	// or torn down.
	ErrStale = errors.New("manager is stale")
)
