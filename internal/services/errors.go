package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lifecycle failures so the HTTP layer can map them
// to status codes in one place.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// User-facing messages
const (
	MsgTripNotFound     = "Trip not found"
	MsgRelatedNotFound  = "Related resource not found"
	MsgAlreadyOnTrip    = "Driver, truck or box already on trip"
	MsgTripNotOnTrip    = "Trip is not on trip"
	MsgTripNotStartable = "Trip is not scheduled"
	MsgServerError      = "Server error"
)

// LifecycleError is the only error type StartTrip and FinishTrip return
type LifecycleError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *LifecycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

func notFoundError(msg string, err error) *LifecycleError {
	return &LifecycleError{Kind: KindNotFound, Msg: msg, Err: err}
}

func conflictError(msg string) *LifecycleError {
	return &LifecycleError{Kind: KindConflict, Msg: msg}
}

func unexpectedError(err error) *LifecycleError {
	return &LifecycleError{Kind: KindUnexpected, Msg: MsgServerError, Err: err}
}

// KindOf reports the kind of err, treating anything that is not a
// LifecycleError as unexpected.
func KindOf(err error) ErrorKind {
	var lerr *LifecycleError
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindUnexpected
}

// asLifecycleError passes LifecycleErrors through and wraps everything else
func asLifecycleError(err error) *LifecycleError {
	var lerr *LifecycleError
	if errors.As(err, &lerr) {
		return lerr
	}
	return unexpectedError(err)
}
