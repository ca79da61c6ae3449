// Package reccconfig builds the immutable Config value every other
// package receives explicitly, rather than reaching for a global mutable
// singleton the way please's src/core.Configuration does. Loading still
// follows please's shape: layered file overrides parsed with
// github.com/please-build/gcfg, then an environment overlay; the on-disk
// format is "key=value" lines inside a [recc] INI section, the closest gcfg shape gets to
// spec's plain "KEY=value text file" (see DESIGN.md).
package reccconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/please-build/gcfg"

	"github.com/remoteexec/recc/internal/pathutil"
)

// Config is built once, at startup, and never mutated afterward. Every
// component that needs configuration takes one as an explicit argument.
type Config struct {
	Remote      Remote
	Deps        Deps
	Retry       Retry
	Concurrency int

	// RemoteEnv and RemotePlatform are populated from the dynamic
	// RECC_REMOTE_ENV_<K> / RECC_REMOTE_PLATFORM_<K> families.
	RemoteEnv      map[string]string
	RemotePlatform map[string]string
	// DepsEnv is populated from RECC_DEPS_ENV_<K>, applied when running
	// the dependency-discovery command.
	DepsEnv map[string]string

	// ProjectRoot gates which absolute paths CommandParser rewrites to
	// relative ones: only paths under it are hermetic candidates, the
	// rest pass through untouched. Defaults to the working directory.
	ProjectRoot string
	// PrefixReplacement is an ordered RECC_PREFIX_REPLACEMENT table,
	// applied to an absolute path before it's checked against ProjectRoot
	// and made relative.
	PrefixReplacement []pathutil.PrefixMapping

	// DepsOverride, when non-nil, bypasses DepsRunner entirely: the
	// orchestrator ships exactly these paths as inputs.
	DepsOverride []string
	// OutputFilesOverride and OutputDirectoriesOverride replace
	// CommandParser's product extraction when set.
	OutputFilesOverride       []string
	OutputDirectoriesOverride []string

	// ForceRemote ships even commands CommandParser doesn't recognize
	// as a compiler invocation.
	ForceRemote bool
	// SkipCache bypasses the ActionCache lookup on the way in.
	SkipCache bool
	// ActionUncacheable marks the Action so the server won't cache the
	// result either; ORed into skip_cache_lookup on the Execute call.
	ActionUncacheable bool
	// DontSaveOutput skips materializing ActionResult outputs locally.
	DontSaveOutput bool

	// MetricsGatewayURL is the optional Prometheus Pushgateway address;
	// leaving it empty makes metrics.Prometheus.Push a no-op.
	MetricsGatewayURL string

	Verbose bool
}

// Remote groups the settings needed to dial the execution/CAS/action-cache
// cluster.
type Remote struct {
	InstanceName      string
	ServerAddress     string
	CASAddress        string // defaults to ServerAddress when unset
	ServerSSL         bool
	UseGoogleAPIAuth  bool
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
}

// Deps groups the dependency-discovery behaviour.
type Deps struct {
	DirectoryOverride string
	ExcludePaths      []string
}

// Retry groups RetryDriver tuning.
type Retry struct {
	Limit          int
	Delay          time.Duration
	PollInterval   time.Duration
	BatchSizeLimit int64
}

// fileConfig mirrors the on-disk [recc] section that gcfg parses. Field
// names are capitalized Go identifiers over lowercase ini keys, resolved
// case-insensitively by gcfg.
type fileConfig struct {
	Recc struct {
		InstanceName          string
		Server                string
		CASServer             string
		ServerSSL             bool
		ServerAuthGoogleapi   bool
		OAuthTokenURL         string
		OAuthClientID         string
		OAuthClientSecret     string
		RetryLimit            int
		RetryDelayMs          int
		PollIntervalMs        int
		BatchSizeLimit        int64
		Concurrency           int
		DepsDirectoryOverride string
		ProjectRoot           string
		MetricsGatewayURL     string
	}
}

// defaults returns the hardcoded starting point before any file or
// environment overlay is applied.
func defaults() Config {
	return Config{
		Retry: Retry{
			Limit:          2,
			Delay:          100 * time.Millisecond,
			PollInterval:   50 * time.Millisecond,
			BatchSizeLimit: 4*1024*1024 - 1024, // 4MiB minus a little overhead for framing
		},
		Concurrency:    4,
		RemoteEnv:      map[string]string{},
		RemotePlatform: map[string]string{},
		DepsEnv:        map[string]string{},
	}
}

// configFiles returns the layered config paths in override order: cwd,
// then user home, then the compile-time prefix dir, then the install etc
// dir. Later entries in this list win, so the install etc dir's settings
// override all the others.
func configFiles(installPrefix string) []string {
	var files []string
	if cwd, err := os.Getwd(); err == nil {
		files = append(files, filepath.Join(cwd, "recc"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".recc"))
	}
	return append(files,
		"/usr/local/etc/recc",
		filepath.Join(installPrefix, "etc", "recc"),
	)
}

// Load builds a Config from hardcoded defaults, layered config files, and
// the process environment, in that order, matching spec.md's precedence.
func Load(installPrefix string) (Config, error) {
	cfg := defaults()
	for _, path := range configFiles(installPrefix) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var fc fileConfig
		if err := gcfg.ReadFileInto(&fc, path); err != nil {
			return Config{}, err
		}
		applyFile(&cfg, fc)
	}
	applyEnv(&cfg, os.Environ())
	if cfg.ProjectRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.ProjectRoot = cwd
		}
	}
	return cfg, nil
}

// parsePrefixReplacement parses an ordered "from1=to1:from2=to2" list, the
// same ":"-joined shape as RECC_DEPS_EXCLUDE_PATHS. Entries without an "="
// are skipped rather than erroring, since a malformed entry shouldn't take
// down the whole config load.
func parsePrefixReplacement(v string) []pathutil.PrefixMapping {
	var out []pathutil.PrefixMapping
	for _, entry := range splitNonEmpty(v, ":") {
		from, to, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out = append(out, pathutil.PrefixMapping{From: from, To: to})
	}
	return out
}

func applyFile(cfg *Config, fc fileConfig) {
	r := fc.Recc
	if r.InstanceName != "" {
		cfg.Remote.InstanceName = r.InstanceName
	}
	if r.Server != "" {
		cfg.Remote.ServerAddress = r.Server
	}
	if r.CASServer != "" {
		cfg.Remote.CASAddress = r.CASServer
	}
	cfg.Remote.ServerSSL = cfg.Remote.ServerSSL || r.ServerSSL
	cfg.Remote.UseGoogleAPIAuth = cfg.Remote.UseGoogleAPIAuth || r.ServerAuthGoogleapi
	if r.OAuthTokenURL != "" {
		cfg.Remote.OAuthTokenURL = r.OAuthTokenURL
	}
	if r.OAuthClientID != "" {
		cfg.Remote.OAuthClientID = r.OAuthClientID
	}
	if r.OAuthClientSecret != "" {
		cfg.Remote.OAuthClientSecret = r.OAuthClientSecret
	}
	if r.RetryLimit != 0 {
		cfg.Retry.Limit = r.RetryLimit
	}
	if r.RetryDelayMs != 0 {
		cfg.Retry.Delay = time.Duration(r.RetryDelayMs) * time.Millisecond
	}
	if r.PollIntervalMs != 0 {
		cfg.Retry.PollInterval = time.Duration(r.PollIntervalMs) * time.Millisecond
	}
	if r.BatchSizeLimit != 0 {
		cfg.Retry.BatchSizeLimit = r.BatchSizeLimit
	}
	if r.Concurrency != 0 {
		cfg.Concurrency = r.Concurrency
	}
	if r.DepsDirectoryOverride != "" {
		cfg.Deps.DirectoryOverride = r.DepsDirectoryOverride
	}
	if r.ProjectRoot != "" {
		cfg.ProjectRoot = r.ProjectRoot
	}
	if r.MetricsGatewayURL != "" {
		cfg.MetricsGatewayURL = r.MetricsGatewayURL
	}
}

// applyEnv overlays RECC_* environment variables onto cfg, including the
// dynamic RECC_DEPS_ENV_<K>, RECC_REMOTE_ENV_<K> and
// RECC_REMOTE_PLATFORM_<K> families collected by prefix scan.
func applyEnv(cfg *Config, environ []string) {
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case k == "RECC_INSTANCE":
			cfg.Remote.InstanceName = v
		case k == "RECC_SERVER":
			cfg.Remote.ServerAddress = v
		case k == "RECC_CAS_SERVER":
			cfg.Remote.CASAddress = v
		case k == "RECC_SERVER_SSL":
			cfg.Remote.ServerSSL = isTruthy(v)
		case k == "RECC_SERVER_AUTH_GOOGLEAPI":
			cfg.Remote.UseGoogleAPIAuth = isTruthy(v)
		case k == "RECC_SERVER_AUTH_OAUTH_TOKEN_URL":
			cfg.Remote.OAuthTokenURL = v
		case k == "RECC_SERVER_AUTH_OAUTH_CLIENT_ID":
			cfg.Remote.OAuthClientID = v
		case k == "RECC_SERVER_AUTH_OAUTH_CLIENT_SECRET":
			cfg.Remote.OAuthClientSecret = v
		case k == "RECC_RETRY_LIMIT":
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Retry.Limit = n
			}
		case k == "RECC_RETRY_DELAY":
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Retry.Delay = time.Duration(n) * time.Millisecond
			}
		case k == "RECC_MAX_CONCURRENT_JOBS":
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Concurrency = n
			}
		case k == "RECC_DEPS_DIRECTORY_OVERRIDE":
			cfg.Deps.DirectoryOverride = v
		case k == "RECC_DEPS_EXCLUDE_PATHS":
			cfg.Deps.ExcludePaths = splitNonEmpty(v, ":")
		case k == "RECC_DEPS_OVERRIDE":
			cfg.DepsOverride = splitNonEmpty(v, ",")
		case k == "RECC_OUTPUT_FILES_OVERRIDE":
			cfg.OutputFilesOverride = splitNonEmpty(v, ",")
		case k == "RECC_OUTPUT_DIRECTORIES_OVERRIDE":
			cfg.OutputDirectoriesOverride = splitNonEmpty(v, ",")
		case k == "RECC_FORCE_REMOTE":
			cfg.ForceRemote = isTruthy(v)
		case k == "RECC_SKIP_CACHE":
			cfg.SkipCache = isTruthy(v)
		case k == "RECC_ACTION_UNCACHEABLE":
			cfg.ActionUncacheable = isTruthy(v)
		case k == "RECC_DONT_SAVE_OUTPUT":
			cfg.DontSaveOutput = isTruthy(v)
		case k == "RECC_PROJECT_ROOT":
			cfg.ProjectRoot = v
		case k == "RECC_PREFIX_REPLACEMENT":
			cfg.PrefixReplacement = parsePrefixReplacement(v)
		case k == "RECC_VERBOSE":
			cfg.Verbose = isTruthy(v)
		case k == "RECC_METRICS_PUSHGATEWAY_URL":
			cfg.MetricsGatewayURL = v
		case strings.HasPrefix(k, "RECC_DEPS_ENV_"):
			cfg.DepsEnv[strings.TrimPrefix(k, "RECC_DEPS_ENV_")] = v
		case strings.HasPrefix(k, "RECC_REMOTE_ENV_"):
			cfg.RemoteEnv[strings.TrimPrefix(k, "RECC_REMOTE_ENV_")] = v
		case strings.HasPrefix(k, "RECC_REMOTE_PLATFORM_"):
			cfg.RemotePlatform[strings.TrimPrefix(k, "RECC_REMOTE_PLATFORM_")] = v
		}
	}
	if cfg.Remote.CASAddress == "" {
		cfg.Remote.CASAddress = cfg.Remote.ServerAddress
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
