package types

import "encoding/json"

// Command is the controller → session message envelope. Fire-and-forget:
// there is no request id and no response correlation.
type Command struct {
	// Command type, one of the Cmd* constants.
	// example: generate
	Type string `json:"type" example:"generate"`
	// Type-specific payload; absent for parameterless commands.
	Data json.RawMessage `json:"data,omitempty"`
}

// Command vocabulary.
const (
	CmdCheck         = "check"
	CmdModelRegistry = "model_registry"
	CmdSetModel      = "set_model"
	CmdLoad          = "load"
	CmdGenerate      = "generate"
	CmdInterrupt     = "interrupt"
	CmdReset         = "reset"
	CmdUnload        = "unload"
)

// KnownCommand reports whether t is part of the command vocabulary.
func KnownCommand(t string) bool {
	switch t {
	case CmdCheck, CmdModelRegistry, CmdSetModel, CmdLoad, CmdGenerate, CmdInterrupt, CmdReset, CmdUnload:
		return true
	}
	return false
}

// SetModelSpec is the structured form of a set_model payload. The payload may
// also be a bare JSON string carrying just the model id.
type SetModelSpec struct {
	ModelID string `json:"model_id"`
	Dtype   Dtype  `json:"dtype,omitempty"`
}

// DecodeSetModel accepts either a bare model id string or a SetModelSpec object.
func DecodeSetModel(data json.RawMessage) (SetModelSpec, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return SetModelSpec{ModelID: id}, nil
	}
	var spec SetModelSpec
	err := json.Unmarshal(data, &spec)
	return spec, err
}

// Status vocabulary, session → controller.
const (
	StatusError            = "error"
	StatusRegistryReceived = "registry_received"
	StatusModelChanged     = "model_changed"
	StatusLoading          = "loading"
	StatusInitiate         = "initiate"
	StatusProgress         = "progress"
	StatusDone             = "done"
	StatusReady            = "ready"
	StatusStart            = "start"
	StatusUpdate           = "update"
	StatusTokenDebug       = "token_debug"
	StatusComplete         = "complete"
	StatusUnloading        = "unloading"
	StatusUnloaded         = "unloaded"
)

// Status is the session → controller message envelope. One flat shape covers
// every status; unused fields are omitted on the wire. The controller infers
// context from the Status field and recency alone.
type Status struct {
	// Status kind, one of the Status* constants.
	// example: update
	Status string `json:"status"`
	// Free-form payload for error / loading / model_changed.
	Data string `json:"data,omitempty"`
	// Artifact name for initiate / progress / done.
	File string `json:"file,omitempty"`
	// Download percentage 0-100 for initiate / progress.
	Progress int `json:"progress,omitempty"`
	// Progress denominator; reported as 100 once an artifact starts.
	Total int `json:"total,omitempty"`
	// Resolved model id for ready.
	Model string `json:"model,omitempty"`
	// Current answer text for update; final decoded text for complete.
	Output string `json:"output,omitempty"`
	// Current thought text for update, when the model is reasoning.
	Thought string `json:"thought,omitempty"`
	// Tokens per second; absent until the fifth generated token.
	Tps *float64 `json:"tps,omitempty"`
	// Number of tokens generated so far.
	NumTokens int `json:"numTokens,omitempty"`
	// Generation phase: thinking or answering.
	State string `json:"state,omitempty"`
	// Raw control-token ids for token_debug, coerced to ordinary ints.
	Tokens []int `json:"tokens,omitempty"`
	// Matched control-token text for token_debug.
	Text string `json:"text,omitempty"`
}

func ErrorStatus(msg string) Status   { return Status{Status: StatusError, Data: msg} }
func LoadingStatus(msg string) Status { return Status{Status: StatusLoading, Data: msg} }

func ModelChangedStatus(id string) Status {
	return Status{Status: StatusModelChanged, Data: id}
}

func InitiateStatus(file string) Status {
	return Status{Status: StatusInitiate, File: file, Progress: 0, Total: 100}
}

func ProgressStatus(file string, percent int) Status {
	return Status{Status: StatusProgress, File: file, Progress: percent, Total: 100}
}

func DoneStatus(file string) Status { return Status{Status: StatusDone, File: file} }
func ReadyStatus(model string) Status {
	return Status{Status: StatusReady, Model: model}
}

func StartStatus() Status { return Status{Status: StatusStart} }

// UpdateStatus carries one streamed increment. tps is nil until the fifth token.
func UpdateStatus(output, thought string, tps *float64, numTokens int, state string) Status {
	return Status{
		Status:    StatusUpdate,
		Output:    output,
		Thought:   thought,
		Tps:       tps,
		NumTokens: numTokens,
		State:     state,
	}
}

func TokenDebugStatus(tokens []int, text string) Status {
	return Status{Status: StatusTokenDebug, Tokens: tokens, Text: text}
}

func CompleteStatus(output string) Status {
	return Status{Status: StatusComplete, Output: output}
}
