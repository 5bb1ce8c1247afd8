// internal/domain/queue/status.go
package queue

import "fmt"

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusCompleted Status = "completed"
)

// transitions lists the legal forward edges. completed is terminal.
var transitions = map[Status][]Status{
	StatusWaiting: {StatusCalled, StatusCompleted},
	StatusCalled:  {StatusCompleted},
}

// ActiveStatuses are the states that appear in a snapshot.
var ActiveStatuses = []Status{StatusWaiting, StatusCalled}

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether an entry in this state still occupies the queue.
func (s Status) IsActive() bool {
	return s == StatusWaiting || s == StatusCalled
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus converts a stored value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown queue status %q", value)
	}
	return s, nil
}
