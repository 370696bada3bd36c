package rpc

import (
	"errors"
	"fmt"
)

// Sentinel errors for wire-level failures. ErrConnectionFailed means the
// endpoint could not be reached at all and callers may try another source;
// ErrInvalidResponse means the endpoint answered with something that is not
// a usable JSON-RPC response and the call fails hard.
var (
	ErrConnectionFailed = errors.New("rpc: connection failed")
	ErrInvalidResponse  = errors.New("rpc: invalid response")
)

// RPCError is an application-level error returned by the remote endpoint
// in the JSON-RPC error member.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsConnectionFailed reports whether err means the endpoint was unreachable.
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}
