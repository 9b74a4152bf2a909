// Package loader owns the swappable view of "what is currently servable":
// the active manifest plus a resolved handle for every declared resource.
// Readers grab one immutable snapshot per request; reloads build a whole
// new snapshot off to the side and publish it with a single pointer swap.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"matchd/internal/artifact"
	"matchd/internal/manifest"
	"matchd/pkg/types"
)

// SourceKindFile and SourceKindRemote tag where a manifest was read from.
const (
	SourceKindFile   = "file"
	SourceKindRemote = "remote"
)

// Source describes the manifest origin for status reporting.
type Source struct {
	Kind  string
	Value string
}

// Snapshot is one fully-resolved, immutable view of the manifest. It is
// never mutated after Publish; a reload replaces it wholesale.
type Snapshot struct {
	Manifest      *types.Manifest
	Source        Source
	Models        []artifact.Handle
	Preprocessing []artifact.Handle
	Attribution   []artifact.Handle
	LoadedAt      time.Time
	// Non-fatal resolution errors, in declaration order. One broken
	// resource must not take the whole run down.
	Errors []string
}

// Status projects the snapshot into the /status response shape.
func (s *Snapshot) Status() types.StatusResponse {
	resp := types.StatusResponse{
		RunID:          s.Manifest.RunID,
		DatasetVersion: s.Manifest.DatasetVersion.String(),
		TrainedAt:      s.Manifest.TrainedAt,
		Source:         types.ManifestSource{Kind: s.Source.Kind, Value: s.Source.Value},
		LoadedAtUnix:   s.LoadedAt.Unix(),
		Errors:         append([]string(nil), s.Errors...),
		Metrics:        s.Manifest.Metrics,
	}
	resp.Models = make([]types.ModelStatus, 0, len(s.Models))
	for _, h := range s.Models {
		resp.Models = append(resp.Models, types.ModelStatus{
			ID:       h.Resource.ID,
			Format:   h.Resource.Format,
			Location: h.Status(),
			Error:    h.Err,
		})
	}
	return resp
}

// Options configures a Loader. Exactly one of ManifestPath or ManifestURL
// must be set.
type Options struct {
	// ManifestPath points at a manifest JSON file on disk.
	ManifestPath string
	// ManifestURL fetches the manifest over HTTP(S) instead.
	ManifestURL string
	// ArtifactRoot is the operator-supplied override search root.
	ArtifactRoot string
	// Client used for remote manifest fetches. Defaults to a client with
	// a modest timeout so a hung fetch only stalls the reload path.
	Client *http.Client
	Logger zerolog.Logger
}

// Loader holds the current snapshot and serializes reloads.
type Loader struct {
	opts   Options
	client *http.Client
	log    zerolog.Logger

	// reloadMu serializes snapshot builds; snap is swapped atomically so
	// readers never block on a reload in progress.
	reloadMu sync.Mutex
	snap     atomic.Pointer[Snapshot]
}

// New creates a Loader. No I/O happens until EnsureLoaded.
func New(opts Options) *Loader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{opts: opts, client: client, log: opts.Logger}
}

// Current returns the published snapshot, or nil before the first load.
func (l *Loader) Current() *Snapshot { return l.snap.Load() }

// EnsureLoaded returns the current snapshot, building one first if none
// exists. With force it always rebuilds. A failed rebuild leaves the
// previously published snapshot untouched.
func (l *Loader) EnsureLoaded(ctx context.Context, force bool) (*Snapshot, error) {
	if !force {
		if snap := l.snap.Load(); snap != nil {
			return snap, nil
		}
	}
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	// A concurrent caller may have finished the initial load while we
	// waited for the mutex.
	if !force {
		if snap := l.snap.Load(); snap != nil {
			return snap, nil
		}
	}
	snap, err := l.build(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("manifest reload failed; previous snapshot stays active")
		return nil, err
	}
	l.snap.Store(snap)
	l.log.Info().
		Str("run_id", snap.Manifest.RunID).
		Str("source", snap.Source.Value).
		Int("models", len(snap.Models)).
		Int("resolution_errors", len(snap.Errors)).
		Msg("snapshot published")
	return snap, nil
}

// ForceReload rebuilds and publishes a fresh snapshot.
func (l *Loader) ForceReload(ctx context.Context) (*Snapshot, error) {
	return l.EnsureLoaded(ctx, true)
}

func (l *Loader) build(ctx context.Context) (*Snapshot, error) {
	raw, source, manifestDir, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, err
	}
	roots := artifact.SearchRoots(l.opts.ArtifactRoot, manifestDir)

	snap := &Snapshot{Manifest: m, Source: source, LoadedAt: time.Now()}
	g, _ := errgroup.WithContext(ctx)
	snap.Models = resolveList(g, m, m.Models, roots)
	snap.Preprocessing = resolveList(g, m, m.Preprocessing, roots)
	snap.Attribution = resolveList(g, m, m.Attribution, roots)
	// Resolution never fails the group; errors land on the handles.
	_ = g.Wait()

	for _, list := range [][]artifact.Handle{snap.Models, snap.Preprocessing, snap.Attribution} {
		for _, h := range list {
			if h.Err != "" {
				snap.Errors = append(snap.Errors, h.Err)
				l.log.Warn().Str("resource", h.Resource.ID).Msg(h.Err)
			}
		}
	}
	return snap, nil
}

// resolveList schedules one resolution task per resource. Each task writes
// to its own slot, so the slice is complete once the group is done.
func resolveList(g *errgroup.Group, m *types.Manifest, resources []types.Resource, roots []string) []artifact.Handle {
	handles := make([]artifact.Handle, len(resources))
	for i, res := range resources {
		i, res := i, res
		g.Go(func() error {
			loc, err := artifact.Resolve(res, roots, m)
			h := artifact.Handle{Resource: res, Location: loc}
			if err != nil {
				h.Err = err.Error()
			}
			handles[i] = h
			return nil
		})
	}
	return handles
}

func (l *Loader) fetch(ctx context.Context) ([]byte, Source, string, error) {
	if l.opts.ManifestURL != "" {
		source := Source{Kind: SourceKindRemote, Value: l.opts.ManifestURL}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.opts.ManifestURL, nil)
		if err != nil {
			return nil, source, "", errUnreachable(l.opts.ManifestURL, err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, source, "", errUnreachable(l.opts.ManifestURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, source, "", errUnreachable(l.opts.ManifestURL, fmt.Errorf("status %s", resp.Status))
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, source, "", errUnreachable(l.opts.ManifestURL, err)
		}
		// Remote manifests contribute no manifest directory to the
		// local search roots.
		return raw, source, "", nil
	}
	source := Source{Kind: SourceKindFile, Value: l.opts.ManifestPath}
	raw, err := os.ReadFile(l.opts.ManifestPath)
	if err != nil {
		return nil, source, "", errUnreachable(l.opts.ManifestPath, err)
	}
	return raw, source, filepath.Dir(l.opts.ManifestPath), nil
}
