// Package auth provides the credential sources recc can attach to its
// gRPC connections: an OAuth2 client-credentials session refreshed
// transparently by golang.org/x/oauth2, or no authentication at all.
//
// please's remote client only ever dials with transport security and
// doesn't carry request-level credentials, so there's no direct teacher
// file for this package; it's grounded instead on the oauth2 client
// patterns in buildbuddy-io/buildbuddy's enterprise/server/auth and on
// please's own retry conventions, with token requests sent through
// hashicorp/go-retryablehttp (this package is its only user in recc).
package auth

import (
	"context"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"google.golang.org/grpc/credentials"

	"github.com/remoteexec/recc/internal/cli"
)

// Session produces per-RPC credentials for the gRPC channel.
type Session interface {
	// GRPCCredentials returns the PerRPCCredentials to attach to the
	// channel, or nil if none are needed.
	GRPCCredentials() credentials.PerRPCCredentials
	// Refresh forces a token refresh, used after an UNAUTHENTICATED
	// response so the caller can retry once with a fresh token.
	Refresh(ctx context.Context) error
}

// NullSession authenticates nothing; cmd/recc uses it when
// RECC_SERVER_AUTH_OAUTH_TOKEN_URL is unset.
type NullSession struct{}

func (NullSession) GRPCCredentials() credentials.PerRPCCredentials { return nil }
func (NullSession) Refresh(context.Context) error                 { return nil }

// OAuthSession authenticates with an OAuth2 client-credentials grant,
// transparently refreshed by the oauth2 TokenSource.
type OAuthSession struct {
	cfg *clientcredentials.Config
	ctx context.Context

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewOAuthSession builds a client-credentials session against tokenURL.
// The HTTP client used for token requests is retryablehttp's, giving
// token refresh the same exponential-backoff behaviour as every other
// outbound request recc makes.
func NewOAuthSession(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) *OAuthSession {
	rc := retryablehttp.NewClient()
	rc.Logger = &cli.HTTPLogWrapper{Log: cli.Log}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, rc.StandardClient())
	return &OAuthSession{cfg: cfg, ctx: ctx, source: cfg.TokenSource(ctx)}
}

func (s *OAuthSession) GRPCCredentials() credentials.PerRPCCredentials {
	return oauthAccess{session: s}
}

func (s *OAuthSession) token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Token()
}

// Refresh discards the cached token source, forcing the next request to
// fetch a fresh one. Used after the server rejects a token it considers
// still valid (clock skew, server-side revocation) rather than relying on
// the client's own expiry estimate.
func (s *OAuthSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = s.cfg.TokenSource(s.ctx)
	_, err := s.source.Token()
	return err
}

type oauthAccess struct {
	session *OAuthSession
}

func (o oauthAccess) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	tok, err := o.session.token()
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": tok.Type() + " " + tok.AccessToken}, nil
}

func (o oauthAccess) RequireTransportSecurity() bool { return true }
