package api

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WorkerRunning bool   `json:"worker_running"`
}

// LoginRequest is the JSON body for POST /session/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ContextRequest selects the active project context.
type ContextRequest struct {
	Context string `json:"context"`
}

// CollectionRequest selects the target collection for new records.
type CollectionRequest struct {
	Collection string `json:"collection"`
}

// ControlResponse acknowledges a start/stop request.
type ControlResponse struct {
	Running bool `json:"running"`
}
