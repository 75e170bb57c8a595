package call

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/ui"
)

var (
	ErrCallInProgress   = errors.New("another call is in progress")
	ErrNoActiveCall     = errors.New("no active call")
	ErrNotRinging       = errors.New("no incoming call to answer")
	ErrCallEnded        = errors.New("call already ended")
	ErrOfferTimeout     = errors.New("call not answered in time")
	ErrRingTimeout      = errors.New("incoming call expired")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrMediaAcquisition = errors.New("failed to acquire local media")
	ErrNegotiation      = errors.New("session negotiation failed")
	ErrSignalingError   = errors.New("signaling server error")
)

type CallError struct {
	Op      string
	Room    string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Room, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func (e *CallError) Print() {
	ui.PrintError(e.Error())
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func NewRoomError(op, room string, err error) *CallError {
	return &CallError{Op: op, Room: room, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
