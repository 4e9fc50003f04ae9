package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectEventPrefix = "castrpc.events"
	HeaderContentType  = "Content-Type"
)

// Event kinds, used as the second-to-last subject token.
const (
	EventRegistered    = "registered"
	EventCallCompleted = "call"
	EventHookFailed    = "hook_failed"
)

// BuildEventSubject builds a granular event subject such as
// "castrpc.events.call.users_get". Dots in the method name become underscores
// so one method is always one subject token.
func BuildEventSubject(prefix, kind, method string) string {
	if prefix == "" {
		prefix = SubjectEventPrefix
	}
	return fmt.Sprintf("%s.%s.%s", prefix, kind, SafeToken(method))
}

// BuildEventWildcard builds the subject matching every event of one kind.
func BuildEventWildcard(prefix, kind string) string {
	if prefix == "" {
		prefix = SubjectEventPrefix
	}
	return fmt.Sprintf("%s.%s.*", prefix, kind)
}

// SafeToken makes a string usable as a single subject token.
func SafeToken(s string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "@", "_v")
	return r.Replace(s)
}
