// Package ctl is the client side of the daemon's control socket.
package ctl

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/camlog/internal/api"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(api.MaxMessageSize),
			grpc.MaxCallRecvMsgSize(api.MaxMessageSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes a control method. A nil req sends an empty message.
func (c *Client) Call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	if req == nil {
		req = map[string]any{}
	}
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.Call(ctx, api.MethodStatus, nil)
}

// Capture sends raw image files to the draft.
func (c *Client) Capture(ctx context.Context, kind string, files [][]byte) (map[string]any, error) {
	return c.Call(ctx, api.MethodCapture, map[string]any{
		"kind":   kind,
		"images": api.EncodeImages(files),
	})
}

func (c *Client) Commit(ctx context.Context, allowEmptyPO bool) (map[string]any, error) {
	return c.Call(ctx, api.MethodCommit, map[string]any{"allow_empty_po": allowEmptyPO})
}

func (c *Client) ListQueue(ctx context.Context) (map[string]any, error) {
	return c.Call(ctx, api.MethodListQueue, nil)
}

func (c *Client) Upload(ctx context.Context) (map[string]any, error) {
	return c.Call(ctx, api.MethodUpload, nil)
}
