package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"matchd/internal/common/fsutil"
	"matchd/pkg/types"
)

// SearchRoots builds the ordered, deduplicated list of local directories to
// probe: explicit override root first, then the working directory, then the
// directory the manifest itself was read from (local manifests only).
func SearchRoots(overrideRoot, manifestDir string) []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if dir == "" {
			return
		}
		canon := fsutil.Canonical(dir)
		if seen[canon] {
			return
		}
		seen[canon] = true
		roots = append(roots, canon)
	}
	add(overrideRoot)
	if wd, err := os.Getwd(); err == nil {
		add(wd)
	}
	add(manifestDir)
	return roots
}

// Resolve locates one resource, preferring verifiable local files over
// remote references. Order, first hit wins:
//
//  1. absolute local_path that exists
//  2. each search root joined with local_path, then with path
//  3. uri, when it is already an absolute remote address
//  4. manifest artefact_base_url joined with path
//  5. path itself, when it is already an absolute remote address
//
// Anything else fails with an error naming the resource so the operator can
// supply an artifact root or fix the manifest. Failure is never a default
// value: a stale guessed path must not be served silently.
func Resolve(res types.Resource, roots []string, m *types.Manifest) (*Location, error) {
	if res.LocalPath != "" && filepath.IsAbs(res.LocalPath) && fsutil.FileExists(res.LocalPath) {
		return Local(res.LocalPath), nil
	}
	for _, root := range roots {
		for _, rel := range []string{res.LocalPath, res.Path} {
			if rel == "" || fsutil.IsRemoteURL(rel) {
				continue
			}
			candidate := filepath.Join(root, rel)
			if fsutil.FileExists(candidate) {
				return Local(candidate), nil
			}
		}
	}
	if fsutil.IsRemoteURL(res.URI) {
		return Remote(res.URI), nil
	}
	if m != nil && m.ArtefactBaseURL != "" && res.Path != "" && !fsutil.IsRemoteURL(res.Path) {
		return Remote(joinURL(m.ArtefactBaseURL, res.Path)), nil
	}
	if fsutil.IsRemoteURL(res.Path) {
		return Remote(res.Path), nil
	}
	return nil, fmt.Errorf(
		"resource %q: no local file found and no remote address available; set an artifact root or correct the manifest entry",
		res.ID,
	)
}

// joinURL glues base and path with exactly one slash at the seam.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
