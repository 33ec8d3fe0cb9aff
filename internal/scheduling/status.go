package scheduling

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an appointment.
//
//	scheduled → confirmed → in-progress → completed
//	scheduled → cancelled
//	confirmed → cancelled
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no action can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Action is a requested status change.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
)

// Party identifies which side of an appointment an actor is on.
type Party string

const (
	PartyPatient    Party = "patient"
	PartyPharmacist Party = "pharmacist"
)

// Actor is the user requesting a transition.
type Actor struct {
	ID    string
	Party Party
}

var (
	// ErrIllegalTransition is returned when an action is not allowed from the current status.
	ErrIllegalTransition = errors.New("illegal appointment status transition")
	// ErrUnknownAction is returned for actions outside the transition table.
	ErrUnknownAction = errors.New("unknown appointment action")
	// ErrNotParticipant is returned when the actor is not assigned to the appointment.
	ErrNotParticipant = errors.New("actor is not a participant of this appointment")
	// ErrActorRole is returned when the actor's side may not perform the action.
	ErrActorRole = errors.New("actor role may not perform this action")
)

type rule struct {
	from    []Status
	to      Status
	parties []Party
}

var transitions = map[Action]rule{
	ActionConfirm:  {from: []Status{StatusScheduled}, to: StatusConfirmed, parties: []Party{PartyPharmacist}},
	ActionReject:   {from: []Status{StatusScheduled}, to: StatusCancelled, parties: []Party{PartyPharmacist}},
	ActionCancel:   {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusCancelled, parties: []Party{PartyPatient}},
	ActionStart:    {from: []Status{StatusConfirmed}, to: StatusInProgress, parties: []Party{PartyPatient, PartyPharmacist}},
	ActionComplete: {from: []Status{StatusInProgress}, to: StatusCompleted, parties: []Party{PartyPharmacist}},
}

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Next returns the status reached by applying action to from.
func Next(from Status, action Action) (Status, error) {
	r, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	for _, s := range r.from {
		if s == from {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s an appointment that is %s", ErrIllegalTransition, action, from)
}

// Confirm is Next(from, ActionConfirm).
func Confirm(from Status) (Status, error) { return Next(from, ActionConfirm) }

// Reject is Next(from, ActionReject).
func Reject(from Status) (Status, error) { return Next(from, ActionReject) }

// Authorize checks that actor sits on the side of the appointment allowed to
// perform action. patientID and pharmacistID are the appointment's assignees.
func Authorize(action Action, actor Actor, patientID, pharmacistID string) error {
	r, ok := transitions[action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var assigned string
	switch actor.Party {
	case PartyPatient:
		assigned = patientID
	case PartyPharmacist:
		assigned = pharmacistID
	}
	if assigned == "" || actor.ID != assigned {
		return ErrNotParticipant
	}

	for _, p := range r.parties {
		if p == actor.Party {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot %s", ErrActorRole, actor.Party, action)
}
