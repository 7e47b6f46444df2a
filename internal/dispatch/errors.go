package dispatch

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned by NewClient when account, serial or secret is empty.
var ErrMissingCredentials = errors.New("missing printer credentials")

// TransportError reports a failure to reach the gateway or a non-2xx reply.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway transport error: %v", e.Err)
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError reports a reachable gateway that rejected the request.
type BusinessError struct {
	Code    int
	Message string
	Data    string
}

func (e *BusinessError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("gateway rejected request: ret=%d msg=%q data=%s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("gateway rejected request: ret=%d msg=%q", e.Code, e.Message)
}

// IsTransport reports whether err came from the transport layer. Such failures
// are worth re-dispatching; business errors are not.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBusiness reports whether the gateway answered with a non-zero result code.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
