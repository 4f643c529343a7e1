package modelcache

import (
	"errors"
	"fmt"
)

var (
	// ErrSetResolution matches every *SetResolutionError.
	ErrSetResolution = errors.New("modelcache: named set member missing")
	// ErrSequenceFailed is yielded by a Sequence whose first traversal failed.
	// Fetch the set again.
	ErrSequenceFailed = errors.New("modelcache: sequence failed")
	// ErrSequenceBusy is yielded when a Sequence is traversed while its first
	// traversal is still running.
	ErrSequenceBusy = errors.New("modelcache: sequence is being resolved")

	ErrUnknownField      = errors.New("modelcache: unknown field")
	ErrInvalidDescriptor = errors.New("modelcache: invalid descriptor")
	ErrNoAttributes      = errors.New("modelcache: no attributes given")
	ErrEmptySetName      = errors.New("modelcache: empty set name")
	ErrForeignKey        = errors.New("modelcache: key belongs to another type")
)

// SetResolutionError reports a named set member whose record is no longer
// cached. The set is stale and must be rebuilt from the datastore.
type SetResolutionError struct {
	SetKey    string
	MemberKey string
	Index     int
	Status    Status // Miss or Tombstoned
}

func (e *SetResolutionError) Error() string {
	return fmt.Sprintf("modelcache: set %q: member %d (%q) is %s", e.SetKey, e.Index, e.MemberKey, e.Status)
}

func (e *SetResolutionError) Is(target error) bool { return target == ErrSetResolution }
