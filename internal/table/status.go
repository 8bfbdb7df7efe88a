package table

// State names a phase of the orchestrator's batch state machine:
// Idle → Processing → Success|Error → (after a display delay) Idle.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Status is the orchestrator's externally visible condition, shown to the
// user while a batch runs and for a short while after it finishes.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}
