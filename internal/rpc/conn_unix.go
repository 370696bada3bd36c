//go:build !windows

package rpc

import (
	"context"
	"net"
)

// dialSocket connects to a Unix domain socket.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	return dialer.DialContext(ctx, "unix", path)
}
