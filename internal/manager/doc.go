// Package manager keeps listeners consistent with an identifier-addressed tree
// of model nodes. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, Settle/Flush/Close, queue reads.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: ID, Node, Merger, Listener, Notification, Executor.
//   - errors.go: error types and helpers (IsMergeConflict, IsClosed, ...).
//   - queue.go: the serial mutation queue every registry access runs on.
//   - registry.go: ID -> weak listener buckets and per-listener interest sets.
//   - store.go: latest merged node per ID plus the parent index.
//   - ops.go: public mutations (Subscribe, Pause, Resume, Update, Delete) and Op.
//   - diffuse.go: update/delete passes and fan-out to listeners.
//   - dispatch.go: handing batches to the delivery Executor.
//   - mainloop.go: MainLoop, the default single-goroutine Executor.
//   - prune.go: LowMemory sweep.
//   - status_report.go: Snapshot/Status reporting helpers.
//   - events.go, metrics.go: lifecycle events and Prometheus collectors.
//
// Concurrency model:
//
// Public mutations return immediately. Their work runs strictly in
// submission order on one goroutine (the mutation queue), which is the only
// code touching the registry and the store. Notifications computed by a pass
// are posted as one unit to the Executor, so a FIFO executor delivers passes
// in order and a listener callback may itself call Update without deadlock.
// Callers that need completion wait on both stages: Settle for the queue,
// Flush for queue plus delivery.
//
// Listeners are referenced weakly through their Subscription. Dropping the
// Subscription is enough to stop deliveries; its entries are pruned the next
// time their bucket is read, or by LowMemory.
package manager
