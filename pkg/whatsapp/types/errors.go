package types

import (
	"fmt"
)

// GatewayError carries the HTTP status and gateway-provided message of a
// failed call, so callers can classify throttle and ban responses.
type GatewayError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway call %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// AsGatewayError unwraps err into a *GatewayError when possible.
func AsGatewayError(err error) (*GatewayError, bool) {
	ge, ok := err.(*GatewayError)
	return ge, ok
}
