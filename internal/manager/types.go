package manager

import "iter"

// ID names one logical trackable model. The empty ID marks a node as untracked.
type ID string

// Node is a model tree node supplied by callers. The manager treats a node as an
// immutable value for the duration of one pass and may enumerate its children
// more than once.
type Node interface {
	// ModelID returns the stable identifier of the node, or "" when the node
	// is not tracked.
	ModelID() ID
	// Children enumerates the direct children of the node.
	Children() iter.Seq[Node]
}

// Composer is implemented by nodes that can be rebuilt with another child
// list. Stored models refer to their tracked children, which are stored on
// their own; reads use WithChildren to substitute the latest state of each
// tracked descendant. Nodes that are not Composers are returned as stored.
type Composer interface {
	Node
	WithChildren(children []Node) Node
}

// Merger reconciles the stored state of a model with an incoming instance of
// the same ID. Returning an error wrapping ErrIncompatible (or any error) marks
// the node as a merge conflict for the current pass.
type Merger interface {
	Merge(stored, incoming Node) (Node, error)
}

// MergeFunc adapts a function to the Merger interface.
type MergeFunc func(stored, incoming Node) (Node, error)

func (f MergeFunc) Merge(stored, incoming Node) (Node, error) { return f(stored, incoming) }

// Replace is the default Merger: the incoming node wins.
var Replace MergeFunc = func(_, incoming Node) (Node, error) { return incoming, nil }

// Change describes what happened to one model during a pass.
type Change struct {
	ID      ID
	Node    Node // nil when Deleted
	Deleted bool
}

// Notification is the batch handed to one listener for one pass.
type Notification struct {
	// Seq is the pass sequence number; it increases with submission order.
	Seq     uint64
	Changes []Change
	// Context is the opaque value supplied with the update or delete call.
	Context any
	// CatchUp is set for deliveries produced by Resume.
	CatchUp bool
}

// Listener observes model changes. ModelsChanged is invoked on the delivery
// executor, never on the mutation queue, so it may submit further updates.
type Listener interface {
	ModelsChanged(Notification)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Notification)

func (f ListenerFunc) ModelsChanged(n Notification) { f(n) }

// Executor is the delivery context notifications are posted to. Post must run
// functions in the order they were posted and return an error once the
// executor can no longer accept work.
type Executor interface {
	Post(func()) error
}

// State represents lifecycle state of the manager.
type State string

const (
	StateRunning State = "running"
	StateClosed  State = "closed"
)

// Snapshot is a lock-free projection of the manager counters.
type Snapshot struct {
	State     State
	Passes    uint64
	Conflicts uint64
	Delivered uint64
	Dropped   uint64
	Pruned    uint64
	QueueLen  int
	LastSeq   uint64
	LastError string
}
