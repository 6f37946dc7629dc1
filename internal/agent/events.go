package agent

// Event is one run-stream occurrence. It is a closed union dispatched with an
// exhaustive type switch: MessageDelta, RunStatus or StreamError.
type Event interface {
	isEvent()
}

// MessageDelta carries incremental response text.
type MessageDelta struct {
	Text string
}

// RunStatus reports a run lifecycle transition. LastError is populated when
// Status is "failed".
type RunStatus struct {
	Status    string
	LastError string
}

// StreamError is a raw error event from the stream, independent of run state.
type StreamError struct {
	Payload string
}

func (MessageDelta) isEvent() {}
func (RunStatus) isEvent()    {}
func (StreamError) isEvent()  {}

// Run statuses with dispatch significance.
const (
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)
