package setup

import "errors"

var (
	// ErrDuplicateTask is returned when two definitions share an identifier
	ErrDuplicateTask = errors.New("duplicate task identifier")

	// ErrInvalidDefinition is returned when a task definition cannot be scheduled
	ErrInvalidDefinition = errors.New("invalid task definition")

	// ErrInvalidAddress is returned when a contract address is not a hex address
	ErrInvalidAddress = errors.New("invalid contract address")
)
