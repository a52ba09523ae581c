package manager

import (
	"errors"
	"strings"
)

var (
	// ErrIncompatible is returned (or wrapped) by mergers when a stored and an
	// incoming node with the same ID cannot be reconciled.
	ErrIncompatible = errors.New("incompatible merge")

	// ErrClosed is reported by operations submitted after Close.
	ErrClosed = errors.New("manager closed")

	// ErrDeliveryUnavailable signals that the delivery executor no longer
	// accepts work. The affected batch is dropped.
	ErrDeliveryUnavailable = errors.New("delivery context unavailable")
)

// MergeConflict records a failed merge for one ID.
type MergeConflict struct {
	ID  ID
	Err error
}

func (c MergeConflict) Error() string { return "merge " + string(c.ID) + ": " + c.Err.Error() }

func (c MergeConflict) Unwrap() error { return c.Err }

// MergeError enumerates the IDs that failed to merge during one update pass.
// Changes for the remaining IDs were applied and delivered.
type MergeError struct {
	Conflicts []MergeConflict
}

func (e *MergeError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, string(c.ID))
	}
	return "merge conflicts: " + strings.Join(ids, ", ")
}

func (e *MergeError) Unwrap() []error {
	out := make([]error, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		out = append(out, c)
	}
	return out
}

// FailedIDs returns the conflicting IDs in traversal order.
func (e *MergeError) FailedIDs() []ID {
	out := make([]ID, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		out = append(out, c.ID)
	}
	return out
}

// IsMergeConflict reports whether err carries merge conflicts.
func IsMergeConflict(err error) bool {
	var me *MergeError
	return errors.As(err, &me)
}

// FailedIDs extracts the conflicting IDs from err, or nil.
func FailedIDs(err error) []ID {
	var me *MergeError
	if errors.As(err, &me) {
		return me.FailedIDs()
	}
	return nil
}

// IsClosed reports whether err indicates the manager was closed.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

// IsDeliveryUnavailable reports whether err indicates a closed executor.
func IsDeliveryUnavailable(err error) bool { return errors.Is(err, ErrDeliveryUnavailable) }
