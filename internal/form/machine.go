package form

import (
	"errors"
	"fmt"

	"github.com/cloudadept/cloudadept-api/internal/models"
)

// Event drives a transition of the submission state machine.
type Event string

const (
	EventSubmit  Event = "submit"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
	EventReset   Event = "reset"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid form transition")

var transitions = map[models.SubmissionState]map[Event]models.SubmissionState{
	models.StateIdle: {
		EventSubmit: models.StateSubmitting,
		EventReset:  models.StateIdle,
	},
	models.StateSubmitting: {
		EventSucceed: models.StateSubmitted,
		EventFail:    models.StateIdle,
	},
	models.StateSubmitted: {
		EventReset: models.StateIdle,
	},
}

// Transition returns the state reached by applying event to from.
func Transition(from models.SubmissionState, event Event) (models.SubmissionState, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}
