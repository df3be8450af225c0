package media

import (
	"errors"
	"fmt"
)

// State is the stage of a media session.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateNegotiating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrInvalidTransition = errors.New("invalid media state transition")
	ErrNoPeerConnection  = errors.New("no peer connection")
)

// transitionError reports an operation attempted in the wrong state.
func transitionError(op string, from State) error {
	return fmt.Errorf("%s from %s: %w", op, from, ErrInvalidTransition)
}
