package flow

import "fmt"

// Fault codes used in logs and metrics labels.
const (
	CodeHandlerFault   = "handler_fault"
	CodeTransportFault = "transport_fault"
	CodeStorageFault   = "storage_fault"
)

// Coded is implemented by faults that carry a stable error code.
type Coded interface {
	error
	Code() string
}

type codedError struct {
	code  string
	cause error
}

func (e *codedError) Error() string {
	return e.code + ": " + e.cause.Error()
}

func (e *codedError) Code() string { return e.code }

func (e *codedError) Unwrap() error { return e.cause }

// HandlerFault wraps an unexpected failure inside a step handler. The
// dispatcher converts it to a generic user reply and retires the service.
func HandlerFault(cause error) error {
	if cause == nil {
		return nil
	}
	return &codedError{code: CodeHandlerFault, cause: cause}
}

// TransportFault wraps a failed outbound transport call.
func TransportFault(cause error) error {
	if cause == nil {
		return nil
	}
	return &codedError{code: CodeTransportFault, cause: cause}
}

// StorageFault wraps a failed storage call made from a step handler.
func StorageFault(cause error) error {
	if cause == nil {
		return nil
	}
	return &codedError{code: CodeStorageFault, cause: cause}
}

// Faultf builds a handler fault from a format string.
func Faultf(format string, args ...any) error {
	return &codedError{code: CodeHandlerFault, cause: fmt.Errorf(format, args...)}
}

// ErrCode walks the error chain for a stable code, defaulting to
// handler_fault for uncoded errors.
func ErrCode(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; {
		if coded, ok := e.(Coded); ok {
			return coded.Code()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return CodeHandlerFault
}
