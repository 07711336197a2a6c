package lambdust

import (
	"context"
	"io"
	"net"

	"google.golang.org/grpc"

	"github.com/akasaka-miraina/lambdust-sub001/internal/rpcport"
)

// ServeRPCPort exposes sink/source (e.g. a foreign process's stdin/stdout)
// as a rpcport.Serve listener, so a peer Runtime's DialRPCPort sees a
// Scheme port whose bytes cross a gRPC bidi stream.
func ServeRPCPort(lis net.Listener, sink io.Writer, source io.Reader) *grpc.Server {
	return rpcport.Serve(lis, sink, source)
}

// DialRPCPort connects to a rpcport.Serve listener at target and defines
// it as name in the Runtime's global environment, usable directly with
// display/write/read-line like any local port.
func (r *Runtime) DialRPCPort(ctx context.Context, name, target string) (*grpc.ClientConn, error) {
	port, conn, err := rpcport.Dial(ctx, target)
	if err != nil {
		return nil, err
	}
	r.ev.Global.Define(r.ev.Intern(name), port)
	return conn, nil
}
