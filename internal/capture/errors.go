package capture

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/honeytrace/honeypot/internal/model"
)

var (
	ErrPortUnavailable  = errors.New("port unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyRunning   = errors.New("listener already running")
)

type StartErrorKind int

const (
	PortUnavailable StartErrorKind = iota
	PermissionDenied
)

func (k StartErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "PermissionDenied"
	default:
		return "PortUnavailable"
	}
}

// StartError reports why a listening socket could not be bound.
type StartError struct {
	Kind     StartErrorKind
	Protocol model.Protocol
	Addr     string
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("bind %s listener on %s: %s: %v", e.Protocol, e.Addr, e.Kind, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

func (e *StartError) Is(target error) bool {
	switch target {
	case ErrPortUnavailable:
		return e.Kind == PortUnavailable
	case ErrPermissionDenied:
		return e.Kind == PermissionDenied
	}
	return false
}

func newStartError(proto model.Protocol, addr string, err error) *StartError {
	kind := PortUnavailable
	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, os.ErrPermission) {
		kind = PermissionDenied
	}
	return &StartError{Kind: kind, Protocol: proto, Addr: addr, Err: err}
}
