package faults

import (
	"errors"
	"fmt"
)

// Code identifies a failure category callers can branch on.
type Code string

const (
	NotAuthenticated Code = "not_authenticated"
	CapacityExceeded Code = "capacity_exceeded"
	SelfRequest      Code = "self_request"
	PeerNotFound     Code = "peer_not_found"
	DuplicateContact Code = "duplicate_contact"
	Blocked          Code = "blocked"
	PlanForbidden    Code = "plan_forbidden"
	NotFound         Code = "not_found"
	PermissionDenied Code = "permission_denied"
	InvalidArgument  Code = "invalid_argument"
	StoreFailure     Code = "store_failure"
)

// Fault carries a taxonomy code plus a message suitable for direct display.
type Fault struct {
	Code    Code
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// New builds a Fault with the given code and message.
func New(code Code, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// Newf builds a Fault with a formatted message.
func Newf(code Code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, mapping unknown errors to StoreFailure.
func CodeOf(err error) Code {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return StoreFailure
}

// MessageOf extracts the display message, with a generic fallback for
// untagged errors so store internals never leak to users.
func MessageOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Message
	}
	return "something went wrong, please try again"
}
