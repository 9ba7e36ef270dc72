package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the Matchmaking service with the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method as userID, decoding the response into out.
func (c *Client) Call(ctx context.Context, userID uint64, method string, in, out any) error {
	return c.conn.Invoke(
		WithUser(ctx, userID),
		"/"+ServiceName+"/"+method,
		in, out,
		grpc.CallContentSubtype(CodecName),
	)
}
