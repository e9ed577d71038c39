package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Registered model descriptors.
	Models []ModelDescriptor `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RunStats summarizes one recorded generation run for /status.
type RunStats struct {
	// Run identifier.
	// example: 6d7f0a52-6e0f-4a52-9f0b-1f1a2b3c4d5e
	RunID string `json:"run_id" example:"6d7f0a52-6e0f-4a52-9f0b-1f1a2b3c4d5e"`
	// Model that served the run.
	// example: onnx-community/Qwen3-0.6B-ONNX
	ModelID string `json:"model_id"`
	// Tokens generated.
	// example: 128
	NumTokens int `json:"num_tokens" example:"128"`
	// Wall duration in milliseconds.
	// example: 5400
	DurationMS int64 `json:"duration_ms" example:"5400"`
	// Mean tokens per second over the run.
	// example: 23.7
	TokensPerSecond float64 `json:"tokens_per_second" example:"23.7"`
	// Final phase reached (thinking or answering).
	// example: answering
	Phase string `json:"phase" example:"answering"`
	// Whether the run was cut short by an interrupt.
	// example: false
	Interrupted bool `json:"interrupted" example:"false"`
	// Completion time in unix seconds.
	// example: 1700000000
	CompletedUnix int64 `json:"completed_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Session lifecycle state (idle, loading, ready, generating, unloading).
	// example: ready
	State string `json:"state" example:"ready"`
	// Currently selected model id, if any.
	ActiveModel string `json:"active_model,omitempty"`
	// Resolved precision of the loaded weights, if loaded.
	Dtype string `json:"dtype,omitempty"`
	// Execution backend the weights were loaded on, if loaded.
	Device string `json:"device,omitempty"`
	// Whether the one-shot CPU fallback has been consumed this session.
	CPUFallbackAttempted bool `json:"cpu_fallback_attempted"`
	// Last error observed by the session (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of model loads this process.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total number of generation runs this process.
	// example: 12
	RunsTotal uint64 `json:"runs_total" example:"12"`
	// Most recent recorded runs, newest first.
	RecentRuns []RunStats `json:"recent_runs,omitempty"`
}
