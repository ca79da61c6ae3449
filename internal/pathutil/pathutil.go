// Package pathutil implements pure, filesystem-free path manipulation for recc.
//
// Every function here works on path text only: no stat, no readlink, no
// cwd lookup beyond what's passed in explicitly. That's what lets the
// command parser and the merkleizer reason about paths without ever
// touching a filesystem they might not be running against yet (the
// remote one).
package pathutil

import (
	"fmt"
	"strings"
)

// Normalize collapses repeated slashes and resolves "." and ".." textually.
// It never touches the filesystem. A leading "/" is preserved iff the input
// had one, and the result never has a trailing "/" except for the root "/".
func Normalize(p string) string {
	if p == "" {
		return "."
	}
	absolute := strings.HasPrefix(p, "/")
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
			} else {
				out = append(out, "..")
			}
		default:
			out = append(out, part)
		}
	}
	joined := strings.Join(out, "/")
	if absolute {
		return "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// JoinNormalize concatenates base and ext with exactly one "/" between
// them, then normalizes the result.
func JoinNormalize(base, ext string) string {
	if base == "" {
		return Normalize(ext)
	}
	if ext == "" {
		return Normalize(base)
	}
	return Normalize(strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ext, "/"))
}

// MakeRelative returns path unchanged if cwd is empty or path is not
// absolute (the caller is expected to additionally gate this on "is path
// under the configured project root", since that's a property of the
// caller's configuration, not of these two strings). Otherwise it returns
// the shortest textual relative path from cwd to path, using ../ segments
// to walk back up when path isn't a descendant of cwd.
func MakeRelative(path, cwd string) string {
	if cwd == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	path = Normalize(path)
	cwd = Normalize(cwd)
	if path == cwd {
		return "."
	}
	pathParts := splitNonEmpty(path)
	cwdParts := splitNonEmpty(cwd)
	i := 0
	for i < len(pathParts) && i < len(cwdParts) && pathParts[i] == cwdParts[i] {
		i++
	}
	up := len(cwdParts) - i
	rel := make([]string, 0, up+len(pathParts)-i)
	for j := 0; j < up; j++ {
		rel = append(rel, "..")
	}
	rel = append(rel, pathParts[i:]...)
	if len(rel) == 0 {
		return "."
	}
	return strings.Join(rel, "/")
}

// MakeAbsolute prepends cwd to path if path is relative. A trailing slash
// on the input is preserved.
func MakeAbsolute(path, cwd string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	trailingSlash := strings.HasSuffix(path, "/") && path != "/"
	abs := JoinNormalize(cwd, path)
	if trailingSlash && !strings.HasSuffix(abs, "/") {
		abs += "/"
	}
	return abs
}

// HasPathPrefix returns true if prefix is a segment-aligned prefix of path:
// "/foo" is not a prefix of "/foobar", but is a prefix of "/foo/bar".
func HasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// ParentLevels returns how many segments p escapes above its starting
// directory: the maximum depth of leading ".." components, negated (so a
// path that escapes two levels returns -2; a path that never escapes
// returns 0).
func ParentLevels(p string) int {
	p = Normalize(p)
	if strings.HasPrefix(p, "/") {
		return 0
	}
	levels := 0
	depth := 0
	for _, part := range splitNonEmpty(p) {
		if part == ".." {
			depth--
			if depth < levels {
				levels = depth
			}
		} else {
			depth++
		}
	}
	return levels
}

// LastNSegments returns the trailing n segments of p, or an error if p has
// fewer than n segments.
func LastNSegments(p string, n int) (string, error) {
	parts := splitNonEmpty(Normalize(p))
	if len(parts) < n {
		return "", fmt.Errorf("pathutil: %q has only %d segments, need %d", p, len(parts), n)
	}
	return strings.Join(parts[len(parts)-n:], "/"), nil
}

// PrefixMapping is a single (from, to) entry in an ordered prefix-rewrite
// table, as configured via RECC_PREFIX_REPLACEMENT.
type PrefixMapping struct {
	From string
	To   string
}

// ResolvePrefixMap applies the first matching prefix replacement from an
// ordered list and normalizes the result. If no entry matches, p is
// returned normalized but otherwise unchanged.
func ResolvePrefixMap(p string, mappings []PrefixMapping) string {
	for _, m := range mappings {
		if HasPathPrefix(p, m.From) {
			rest := strings.TrimPrefix(p, m.From)
			return Normalize(JoinNormalize(m.To, rest))
		}
	}
	return Normalize(p)
}

func splitNonEmpty(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
