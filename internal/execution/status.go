package execution

import (
	"fmt"
	"time"

	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
)

// dialTimeout bounds the best-effort CancelOperation call issued after a
// SIGINT; we don't want a hung cancel to block process exit.
const dialTimeout = 5 * time.Second

// statusError turns a google.rpc.Status into a Go error, in the style of
// please's convertError: the code name plus the message, since the status
// details recc cares about (PreconditionFailure violations) are rare
// enough to not warrant their own type.
func statusError(s *rpcstatus.Status) error {
	if s == nil || s.Code == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", codes.Code(s.Code), s.Message)
}
