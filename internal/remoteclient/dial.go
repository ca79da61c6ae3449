// Package remoteclient dials the remote-apis-sdks client shared by
// CasClient, ActionCacheClient and ExecutionClient.
//
// Grounded on please's src/remote/dialparams.go and remote.go's New():
// the same client.NewClient call, the same UseBatchOps/RetryTransient
// options, and the same pattern of a custom grpc.StatsHandler wired in
// through DialOpts (please's for build-progress byte counters; recc's
// for the same Prometheus sink every other component reports through).
package remoteclient

import (
	"context"
	"fmt"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/client"
	"google.golang.org/grpc"

	"github.com/remoteexec/recc/internal/auth"
	"github.com/remoteexec/recc/internal/metrics"
	"github.com/remoteexec/recc/internal/reccconfig"
)

// Dial connects the SDK client against cfg.Remote, attaching session's
// per-RPC credentials and a stats handler that reports byte counts to
// sink.
func Dial(ctx context.Context, cfg reccconfig.Remote, session auth.Session, sink metrics.Sink) (*client.Client, error) {
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("remoteclient: RECC_SERVER is not configured")
	}
	casAddress := cfg.CASAddress
	if casAddress == "" {
		casAddress = cfg.ServerAddress
	}

	dialOpts := []grpc.DialOption{
		grpc.WithStatsHandler(newStatsHandler(sink)),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(419430400)),
	}
	if creds := session.GRPCCredentials(); creds != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(creds))
	}
	// Transport security itself is handled by NoSecurity/TransportCredsOnly
	// below; DialOpts here only adds to what the SDK already configures.

	params := client.DialParams{
		Service:            cfg.ServerAddress,
		CASService:         casAddress,
		NoSecurity:         !cfg.ServerSSL,
		TransportCredsOnly: cfg.ServerSSL,
		DialOpts:           dialOpts,
	}
	sdk, err := client.NewClient(ctx, cfg.InstanceName, params, client.UseBatchOps(true), client.RetryTransient())
	if err != nil {
		return nil, fmt.Errorf("remoteclient: dial %s: %w", cfg.ServerAddress, err)
	}
	return sdk, nil
}
