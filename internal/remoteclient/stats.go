package remoteclient

import (
	"context"

	"google.golang.org/grpc/stats"

	"github.com/remoteexec/recc/internal/metrics"
)

// statsHandler reports wire bytes in and out to the shared metrics Sink.
// Grounded on please's src/remote/stats.go, trimmed from a live
// rate-window display (please's build console wants one; recc's
// one-shot CLI just wants cumulative Prometheus counters) down to
// straight pass-through accumulation.
type statsHandler struct {
	sink metrics.Sink
}

func newStatsHandler(sink metrics.Sink) *statsHandler {
	return &statsHandler{sink: sink}
}

func (h *statsHandler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	return ctx
}

func (h *statsHandler) HandleRPC(ctx context.Context, s stats.RPCStats) {
	switch p := s.(type) {
	case *stats.InHeader:
		h.sink.BytesDownloaded(int64(p.WireLength))
	case *stats.InPayload:
		h.sink.BytesDownloaded(int64(p.WireLength))
	case *stats.OutPayload:
		h.sink.BytesUploaded(int64(p.WireLength))
	}
}

func (h *statsHandler) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	return ctx
}

func (h *statsHandler) HandleConn(ctx context.Context, s stats.ConnStats) {}
