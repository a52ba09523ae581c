package types

// UpdateResponse is returned by PUT /models and DELETE /models/{id}.
type UpdateResponse struct {
	// Sequence number of the pass that applied the request.
	// example: 12
	Seq uint64 `json:"seq" example:"12"`
	// IDs that failed to merge; the rest of the tree was applied.
	// example: ["author-7"]
	Failed []string `json:"failed,omitempty" example:"author-7"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// IDs that failed to merge, when the error is a merge conflict.
	Failed []string `json:"failed,omitempty"`
}

// ChangeMessage describes one change pushed to a websocket subscriber.
type ChangeMessage struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted,omitempty"`
	Model   *Model `json:"model,omitempty"`
}

// NotificationMessage is the frame pushed to websocket subscribers.
type NotificationMessage struct {
	Seq     uint64          `json:"seq"`
	CatchUp bool            `json:"catch_up,omitempty"`
	Context string          `json:"context,omitempty"`
	Changes []ChangeMessage `json:"changes"`
}

// ControlMessage is sent by websocket subscribers.
// Op is one of: pause, resume, listen.
type ControlMessage struct {
	Op  string   `json:"op"`
	IDs []string `json:"ids,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Manager state (running, closed).
	// example: running
	State string `json:"state" example:"running"`
	// Number of models with stored state.
	// example: 120
	TrackedModels int `json:"tracked_models" example:"120"`
	// Number of identifier buckets in the listener registry.
	// example: 64
	Buckets int `json:"buckets" example:"64"`
	// Registry entries across all buckets, dead references included.
	// example: 80
	Entries int `json:"entries" example:"80"`
	// Listeners with registry state.
	// example: 5
	Listeners int `json:"listeners" example:"5"`
	// Tasks waiting on the mutation queue.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Passes executed since start.
	PassesTotal uint64 `json:"passes_total"`
	// Nodes rejected by the merger since start.
	ConflictsTotal uint64 `json:"conflicts_total"`
	// Notifications delivered since start.
	DeliveredTotal uint64 `json:"delivered_total"`
	// Notifications dropped because the delivery context was unavailable.
	DroppedTotal uint64 `json:"dropped_total"`
	// Dead registry entries pruned since start.
	PrunedTotal uint64 `json:"pruned_total"`
	// Sequence number of the last pass.
	LastSeq uint64 `json:"last_seq"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
