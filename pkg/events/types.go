// Package events defines the events emitted by the method registry and the
// publishers that deliver them.
package events

// MethodRegisteredEvent is emitted when a method becomes callable.
type MethodRegisteredEvent struct {
	Method     string   `json:"method"`
	Version    string   `json:"version,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	Deprecated bool     `json:"deprecated,omitempty"`
	Envelope   string   `json:"envelope,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// Call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CallCompletedEvent is emitted once per dispatched call, after its hooks ran.
type CallCompletedEvent struct {
	CallID      string `json:"callId"`
	Method      string `json:"method"`
	Version     string `json:"version,omitempty"`
	Outcome     string `json:"outcome"`
	ErrorName   string `json:"errorName,omitempty"`
	Status      int    `json:"status,omitempty"`
	DurationMs  int64  `json:"durationMs"`
	EarlyReturn bool   `json:"earlyReturn,omitempty"`
	Env         string `json:"env,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// HookFailedEvent is emitted when a post-call hook returns an error or panics.
type HookFailedEvent struct {
	CallID    string `json:"callId"`
	Method    string `json:"method"`
	Hook      string `json:"hook"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}
