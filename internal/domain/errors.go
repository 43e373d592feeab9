package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no load exists for an id.
var ErrNotFound = errors.New("load not found")

// ErrForbidden is returned when a principal asks for a load it does not own.
var ErrForbidden = errors.New("access denied to this load")

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a transition attempted from a status that does not allow it.
// Status is the status observed at the moment of the attempted commit.
type ConflictError struct {
	Op     Operation
	Status Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s load: status is %s", e.Op, e.Status)
}

// UnresolvableAddressError reports a stop address the geocoding oracle could not
// turn into a usable coordinate pair.
type UnresolvableAddressError struct {
	Address string
	Err     error
}

func (e *UnresolvableAddressError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unresolvable address %q", e.Address)
	}
	return fmt.Sprintf("unresolvable address %q: %v", e.Address, e.Err)
}

func (e *UnresolvableAddressError) Unwrap() error { return e.Err }
