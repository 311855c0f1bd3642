package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or invalid caller-supplied field.
	ErrValidation = errors.New("validation error")
	// ErrUnknownReference marks a reference to a company or department that does not exist.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrUnknownCompany is an ErrUnknownReference for the review's company.
	ErrUnknownCompany = fmt.Errorf("%w: company", ErrUnknownReference)
	// ErrInvalidPlatform is an ErrValidation for an unrecognized platform.
	ErrInvalidPlatform = fmt.Errorf("%w: invalid platform", ErrValidation)
	// ErrPersistence marks a store failure. Nothing was committed.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned by point reads and deletes of missing resources.
	ErrNotFound = errors.New("not found")
)
