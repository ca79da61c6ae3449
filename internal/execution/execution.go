// Package execution drives the REAPI v2 Execute RPC: submit an action,
// follow the returned Operation stream to completion on a dedicated
// goroutine, and poll for SIGINT at a fixed interval so the process can
// issue CancelOperation and exit 130 without waiting for the stream to
// unblock on its own.
//
// Grounded on please's src/remote/remote.go execute(), which calls
// c.client.Execute and loops over stream.Recv(), decoding
// ExecuteOperationMetadata and ExecuteResponse out of the Any fields with
// ptypes (the unwrapped client surface that remote-apis-sdks bakes into
// c.client here). The polling loop and worker goroutine are new: please's
// build scheduler can afford to block on stream.Recv() because it has
// other goroutines making progress, but recc is a single foreground
// command and has to turn Ctrl-C into a cancellation while that Recv is
// still blocked.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/client"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"github.com/golang/protobuf/ptypes"
	"google.golang.org/genproto/googleapis/longrunning"

	loggingpkg "gopkg.in/op/go-logging.v1"

	"github.com/remoteexec/recc/internal/cli"
)

var log = loggingpkg.MustGetLogger("execution")

// PollInterval is the default cancellation-poll granularity; spec default
// is 50ms.
const PollInterval = 50 * time.Millisecond

// Result is the outcome of a completed execution.
type Result struct {
	ActionResult  *pb.ActionResult
	CachedResult  bool
	ServerMessage string
}

// Progress is reported as each ExecuteOperationMetadata arrives so the CLI
// can print "queued" / "executing" / "completed" status lines.
type Progress struct {
	Stage pb.ExecutionStage_Value
}

// Client drives one execution at a time.
type Client struct {
	sdk      *client.Client
	instance string
}

// New wraps an already-dialled SDK client.
func New(sdk *client.Client, instance string) *Client {
	return &Client{sdk: sdk, instance: instance}
}

type streamMsg struct {
	op  *longrunning.Operation
	err error
}

// Execute submits the action and blocks until it completes. A dedicated
// goroutine reads the Operation stream; the calling goroutine polls
// cli.Interrupted() every PollInterval so a SIGINT delivered while the
// stream read is blocked still gets serviced promptly. On cancellation,
// Execute issues a best-effort CancelOperation and calls cli.Exit(130)
// directly, matching the "exit the process with code 130 on interrupt"
// requirement rather than returning an error for the caller to translate.
// cli.Exit runs every registered cli.AtExit handler first, so deferred
// cleanup further up a caller's stack (command.ParsedCommand.Close, in
// particular) still happens even though this call never returns.
func (c *Client) Execute(ctx context.Context, action digest.Digest, skipCacheLookup bool, onProgress func(Progress)) (*Result, error) {
	stream, err := c.sdk.Execute(ctx, &pb.ExecuteRequest{
		InstanceName:    c.instance,
		ActionDigest:    action.ToProto(),
		SkipCacheLookup: skipCacheLookup,
	})
	if err != nil {
		return nil, fmt.Errorf("execution: submit: %w", err)
	}

	msgs := make(chan streamMsg, 1)
	go func() {
		for {
			op, err := stream.Recv()
			msgs <- streamMsg{op: op, err: err}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var opName string
	for {
		select {
		case <-ticker.C:
			if cli.Interrupted() {
				c.cancelOnBestEffort(opName)
				cli.Exit(130)
			}
		case m := <-msgs:
			if m.err != nil {
				return nil, fmt.Errorf("execution: stream: %w", m.err)
			}
			resp := m.op
			if resp.Name != "" {
				opName = resp.Name
			}
			if resp.Metadata != nil {
				meta := &pb.ExecuteOperationMetadata{}
				if err := ptypes.UnmarshalAny(resp.Metadata, meta); err != nil {
					log.Warning("failed to decode execution metadata: %s", err)
				} else if onProgress != nil {
					onProgress(Progress{Stage: meta.Stage})
				}
			}
			if !resp.Done {
				continue
			}
			return decodeResult(resp)
		}
	}
}

func decodeResult(resp *longrunning.Operation) (*Result, error) {
	switch result := resp.Result.(type) {
	case *longrunning.Operation_Error:
		return nil, statusError(result.Error)
	case *longrunning.Operation_Response:
		response := &pb.ExecuteResponse{}
		if err := ptypes.UnmarshalAny(result.Response, response); err != nil {
			return nil, fmt.Errorf("execution: decode response: %w", err)
		}
		if response.Status != nil && response.Status.Code != 0 {
			return nil, statusError(response.Status)
		}
		if response.Result == nil {
			return nil, fmt.Errorf("execution: server returned no result")
		}
		return &Result{
			ActionResult:  response.Result,
			CachedResult:  response.CachedResult,
			ServerMessage: response.Message,
		}, nil
	default:
		return nil, fmt.Errorf("execution: operation finished with no result")
	}
}

// cancelOnBestEffort issues CancelOperation on a fresh context, since the
// one bound to the streaming call is what we're trying to get out from
// under. Errors are logged, not returned: by the time SIGINT has tripped
// the flag we're exiting regardless.
func (c *Client) cancelOnBestEffort(opName string) {
	if opName == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if _, err := c.sdk.CancelOperation(ctx, &longrunning.CancelOperationRequest{Name: opName}); err != nil {
		log.Debug("failed to cancel remote operation %s: %s", opName, err)
	}
}
