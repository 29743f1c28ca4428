package domain

import "errors"

var (
	// ErrRunRejected is returned when the admission policy blocks a run.
	ErrRunRejected = errors.New("run rejected by policy")
	// ErrNoActiveRun is returned when an operation needs a run in flight.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunNotFound is returned when a journaled run does not exist.
	ErrRunNotFound = errors.New("run not found")
)
