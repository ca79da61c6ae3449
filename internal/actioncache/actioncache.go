// Package actioncache wraps the REAPI v2 ActionCache lookup recc performs
// before falling back to remote execution.
//
// Grounded on please's src/remote/remote.go execute(), which calls
// c.client.GetActionResult and treats a NotFound status as a cache miss
// rather than an error.
package actioncache

import (
	"context"
	"fmt"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/client"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client looks up and, after a successful execution, writes back
// ActionResults.
type Client struct {
	sdk *client.Client
}

// New wraps an already-dialled SDK client.
func New(sdk *client.Client) *Client {
	return &Client{sdk: sdk}
}

// Get returns the cached ActionResult for an action digest, or (nil, nil)
// on a cache miss. Any other error is returned as-is.
func (c *Client) Get(ctx context.Context, action digest.Digest) (*pb.ActionResult, error) {
	res, err := c.sdk.GetActionResult(ctx, &pb.GetActionResultRequest{
		InstanceName: c.sdk.InstanceName,
		ActionDigest: action.ToProto(),
	})
	if err == nil {
		return res, nil
	}
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	return nil, fmt.Errorf("actioncache: get %s: %w", action, err)
}

// Update writes an ActionResult back to the cache after a server-side
// execution that didn't itself request caching (DoNotCache was set, or
// the server is configured not to cache automatically). recc doesn't
// currently exercise this path itself — the execution service caches
// successful, cacheable actions on its own — but it's kept so a future
// local-execution fallback can populate the cache the same way the
// server would.
func (c *Client) Update(ctx context.Context, action digest.Digest, result *pb.ActionResult) error {
	_, err := c.sdk.UpdateActionResult(ctx, &pb.UpdateActionResultRequest{
		InstanceName: c.sdk.InstanceName,
		ActionDigest: action.ToProto(),
		ActionResult: result,
	})
	if err != nil {
		return fmt.Errorf("actioncache: update %s: %w", action, err)
	}
	return nil
}
