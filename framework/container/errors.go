package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnbound matches any *UnboundKeyError via errors.Is.
	ErrUnbound = errors.New("container: no binding registered")

	// ErrCircular matches any *CircularDependencyError via errors.Is.
	ErrCircular = errors.New("container: circular dependency detected")

	// ErrFrozen is the panic value raised when a binding is registered on a
	// frozen container.
	ErrFrozen = errors.New("container: bindings are frozen")
)

// UnboundKeyError is returned by Make when nothing is registered for Key.
// It points at a wiring defect; resolve critical keys at boot to surface it early.
type UnboundKeyError struct {
	Key string
}

func (e *UnboundKeyError) Error() string {
	return fmt.Sprintf("container: no binding registered for [%s]", e.Key)
}

func (e *UnboundKeyError) Is(target error) bool { return target == ErrUnbound }

// CircularDependencyError is returned when resolving a key requires that
// same key again. Path runs from the first occurrence to the repeat,
// e.g. [A B A].
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("container: circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircular }

// TypeMismatchError is returned by Resolve when the instance bound to Key
// is not of the requested type.
type TypeMismatchError struct {
	Key      string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("container: [%s] resolved to %s, not %s", e.Key, e.Got, e.Expected)
}
