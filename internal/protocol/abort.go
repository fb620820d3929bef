package protocol

import "errors"

// ErrAbort is raised by the client correlator when it receives the
// synthetic shutdown response (success=false, message="abort"). Callers
// distinguish this from a regular request failure.
var ErrAbort = errors.New("abort")

// RequestError is returned by the client correlator for any other
// success=false response, carrying the server's message verbatim.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}
