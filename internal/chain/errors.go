package chain

import (
	"errors"
	"fmt"
)

// Path tells which capability produced a failure.
type Path string

const (
	PathRead  Path = "read"
	PathWrite Path = "write"
)

// ErrReadOnly is returned by Submit when no signing credential was configured.
var ErrReadOnly = errors.New("client has no signing credential")

// Error wraps every failure surfaced by the adapter with the path it came from.
type Error struct {
	Path Path
	Op   Operation
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("chain %s %s: %v", e.Path, e.Op, e.Err)
	}
	return fmt.Sprintf("chain %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func readErr(err error) error {
	return &Error{Path: PathRead, Err: err}
}

func writeErr(op Operation, err error) error {
	return &Error{Path: PathWrite, Op: op, Err: err}
}
