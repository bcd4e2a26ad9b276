package runner

import (
	"errors"
	"fmt"
)

// Sentinels a Store returns, wrapped, for the cases the runner handles
// specially.
var (
	// ErrCollectionExists means a concurrent creator won the race; the
	// collection ensurer treats it as success.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrIndexConflict means the index cannot be built next to the existing
	// indexes or data (options conflict, duplicate keys under a unique index).
	ErrIndexConflict = errors.New("index conflict")
)

// ConnectionError means the database could not be reached. Always fatal.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connecting to database: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// CollectionError is a failure to inspect or create a collection.
type CollectionError struct {
	Op         string
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s collection %s: %v", e.Op, e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// IndexConflictError is an index that cannot coexist with what the database
// already holds. It matches ErrIndexConflict with errors.Is.
type IndexConflictError struct {
	Collection string
	Index      string
	Reason     string
	Err        error
}

func (e *IndexConflictError) Error() string {
	msg := fmt.Sprintf("index %s on %s conflicts", e.Index, e.Collection)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *IndexConflictError) Unwrap() error { return e.Err }

func (e *IndexConflictError) Is(target error) bool { return target == ErrIndexConflict }

// IndexError is any other failure while creating an index.
type IndexError struct {
	Collection string
	Index      string
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("creating index %s on %s: %v", e.Index, e.Collection, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// AdminBootstrapError is a failure to count, remove or insert admin records.
// Always fatal: the single-admin invariant cannot be assumed afterwards.
type AdminBootstrapError struct {
	Op         string
	Collection string
	Err        error
}

func (e *AdminBootstrapError) Error() string {
	return fmt.Sprintf("admin bootstrap: %s in %s: %v", e.Op, e.Collection, e.Err)
}

func (e *AdminBootstrapError) Unwrap() error { return e.Err }
