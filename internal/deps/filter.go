package deps

import (
	"strings"

	"github.com/remoteexec/recc/internal/pathutil"
)

// FilterOptions configures the post-parse filtering step shared by both
// Make and Sun style output.
type FilterOptions struct {
	// ProjectRoot gates which absolute paths survive; empty disables
	// the root check entirely (everything passes).
	ProjectRoot string
	// IncludeGlobalPaths keeps entries outside ProjectRoot instead of
	// dropping them. No RECC_* setting maps to it; recc and deps leave it
	// false.
	IncludeGlobalPaths bool
	// ExcludePaths drops any entry with one of these as a
	// segment-aligned prefix, applied after the root check.
	ExcludePaths []string
	// Products are the compile's own declared outputs; entries that
	// normalize to one of these (make rules sometimes list the target
	// itself as a dependency of itself) are dropped.
	Products []string
	// WorkingDirectory resolves relative entries to absolute before
	// the root/exclude checks. Surviving entries are returned exactly
	// as given, not normalized or resolved.
	WorkingDirectory string
}

// Filter drops self-referential and out-of-root entries and deduplicates,
// matching DepsRunner's filter step.
func Filter(deps []string, opts FilterOptions) []string {
	products := map[string]struct{}{}
	for _, p := range opts.Products {
		products[pathutil.Normalize(p)] = struct{}{}
	}

	seen := map[string]struct{}{}
	var out []string
	for _, dep := range deps {
		normalized := pathutil.Normalize(dep)
		if _, ok := products[normalized]; ok {
			continue
		}

		abs := normalized
		if !strings.HasPrefix(abs, "/") && opts.WorkingDirectory != "" {
			abs = pathutil.MakeAbsolute(abs, opts.WorkingDirectory)
		}
		if opts.ProjectRoot != "" && !opts.IncludeGlobalPaths && strings.HasPrefix(abs, "/") {
			if !pathutil.HasPathPrefix(abs, opts.ProjectRoot) {
				continue
			}
		}
		if excludedByPrefix(abs, opts.ExcludePaths) {
			continue
		}

		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}
	return out
}

func excludedByPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pathutil.HasPathPrefix(p, prefix) {
			return true
		}
	}
	return false
}
