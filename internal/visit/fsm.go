// Package visit implements the patient visit state machine, the queue
// ordering shared by every screen, and the service that persists both.
package visit

import (
	"fmt"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// Action is a front-desk command applied to a visit.
type Action string

const (
	AskToWait     Action = "ask_to_wait"
	CallInside    Action = "call_inside"
	CallAgain     Action = "call_again"
	BeginProgress Action = "begin_progress"
	Exit          Action = "exit"
)

// Actions lists every action in flow order.
var Actions = []Action{AskToWait, CallInside, CallAgain, BeginProgress, Exit}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := targets[a]
	return ok
}

// targets maps each action to the state it leads to.
var targets = map[Action]models.VisitState{
	AskToWait:     models.VisitAskedToWait,
	CallInside:    models.VisitCalledInside,
	CallAgain:     models.VisitCalledInside,
	BeginProgress: models.VisitInProgress,
	Exit:          models.VisitExited,
}

// allowed lists the actions accepted in each state. Re-applying the action
// that produced the current state is accepted and only re-stamps its time.
var allowed = map[models.VisitState][]Action{
	models.VisitArrived:      {AskToWait, CallInside},
	models.VisitAskedToWait:  {AskToWait, CallInside},
	models.VisitCalledInside: {CallInside, CallAgain, BeginProgress},
	models.VisitInProgress:   {BeginProgress, Exit},
	models.VisitExited:       {},
}

// TransitionError reports an action that is not accepted in the visit's state.
type TransitionError struct {
	From   models.VisitState
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s", domain.ErrIllegalTransition, e.Action, e.From)
}

// Is makes errors.Is(err, domain.ErrIllegalTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == domain.ErrIllegalTransition
}

// CanApply reports whether action is accepted from state.
func CanApply(state models.VisitState, action Action) bool {
	for _, a := range allowed[state] {
		if a == action {
			return true
		}
	}
	return false
}

// Transition applies action at the given time. On error v is returned
// unchanged. The input is never mutated.
func Transition(v models.Visit, action Action, at time.Time) (models.Visit, error) {
	if v.State.Terminal() {
		return v, fmt.Errorf("visit %s: %w", v.ID, domain.ErrAlreadyExited)
	}
	if !CanApply(v.State, action) {
		return v, &TransitionError{From: v.State, Action: action}
	}

	next := v.Clone()
	next.State = targets[action]
	stamp := at
	switch next.State {
	case models.VisitAskedToWait:
		next.AskedToWaitAt = &stamp
	case models.VisitCalledInside:
		next.CalledInsideAt = &stamp
	case models.VisitInProgress:
		next.InProgressAt = &stamp
	case models.VisitExited:
		next.ExitedAt = &stamp
	}
	return next, nil
}
