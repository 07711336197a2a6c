package rpcport_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/rpcport"
)

// TestDialServeRoundTrip spins up a real loopback gRPC server (Serve)
// relaying into an in-memory sink/source pair, dials it (Dial), and
// confirms a byte written to the dialed port's Writer reaches the
// server's sink — the one behavior a pure-function unit test cannot
// substitute for, since it exercises the bidirectional stream framing
// end to end.
func TestDialServeRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var sink bytes.Buffer
	source := bytes.NewReader([]byte("greetings from the server\n"))

	server := rpcport.Serve(lis, &sink, source)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	port, conn, err := rpcport.Dial(ctx, lis.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	n, err := port.Writer.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.Eventually(t, func() bool {
		return sink.String() == "hello"
	}, 2*time.Second, 20*time.Millisecond)
}
