package testutils

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetFreePort returns a TCP port on host nothing listens on.
// It is used to point clients at an unreachable document store.
func GetFreePort(t *testing.T, host string) int {
	t.Helper()

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	require.NoError(t, err, "Setup: failed to listen on tcp")
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok, "Setup: expected TCPAddr")
	return addr.Port
}
