package resource

import "errors"

// Domain errors for the resource package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, resource.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a resource ID does not exist.
	ErrNotFound = errors.New("resource: not found")

	// ErrInvalid is returned when resource validation fails.
	ErrInvalid = errors.New("resource: invalid")

	// ErrSerialNumberExists is returned when another resource already has the serial number.
	ErrSerialNumberExists = errors.New("resource: serial number already exists")

	// ErrPlateExists is returned when another resource already has the plate.
	ErrPlateExists = errors.New("resource: plate already exists")

	// ErrEmptyPatch is returned when an update carries no recognised fields.
	ErrEmptyPatch = errors.New("resource: no fields to update")
)
