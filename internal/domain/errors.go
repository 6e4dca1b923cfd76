package domain

import (
	"errors"
	"fmt"
)

// Action failures. All are recoverable by user retry.
var (
	ErrAuthenticationFailed = errors.New("fingerprint not recognized")
	ErrLocationUnavailable  = errors.New("location unavailable")
	ErrActionNotAllowed     = errors.New("action not allowed in current state")
	ErrActionInFlight       = errors.New("another action is already in progress")
	ErrNoAssignedLocation   = errors.New("no office location assigned")
	ErrNoEmployeeID         = errors.New("employee id not assigned")
	ErrNotApproved          = errors.New("account pending admin approval")
)

// OutOfRangeError carries the distance/site context surfaced to the
// user when the GPS fix falls outside the assigned geofence.
type OutOfRangeError struct {
	LocationName   string
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("outside %s radius: %.0fm away, allowed %.0fm",
		e.LocationName, e.DistanceMeters, e.RadiusMeters)
}

// Tenant bootstrap failures. No partial tenant state is committed on
// any of these paths.
var (
	ErrDecryptionFailed     = errors.New("could not decrypt tenant payload")
	ErrMalformedPayload     = errors.New("tenant payload is malformed")
	ErrInvalidBackendConfig = errors.New("backend config is invalid")
)
