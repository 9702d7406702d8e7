package scriptbuilder

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOsFamily is returned when no token table exists for a family.
	ErrUnknownOsFamily = errors.New("unknown os family")
	// ErrUndefinedVariable is returned when a statement references a variable
	// that is neither supplied nor built in.
	ErrUndefinedVariable = errors.New("undefined variable")
	// ErrInvalidSpec covers malformed names, directories and references.
	ErrInvalidSpec = errors.New("invalid script spec")
)

// UndefinedVariableError reports the missing variable and where it was used.
type UndefinedVariableError struct {
	Name      string
	Statement string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: %s referenced in %q", ErrUndefinedVariable, e.Name, e.Statement)
}

func (e *UndefinedVariableError) Is(target error) bool {
	return target == ErrUndefinedVariable
}
