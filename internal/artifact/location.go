package artifact

import "matchd/pkg/types"

// Kind tags a resolved artifact location.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Location is the resolved result for one resource: a confirmed local file
// or a synthesizable remote address. An unresolved resource has no Location
// at all, which keeps "unresolved" a distinct state rather than an empty
// field on a half-filled struct.
type Location struct {
	Kind  Kind
	Value string
}

// Local wraps a confirmed filesystem path.
func Local(path string) *Location { return &Location{Kind: KindLocal, Value: path} }

// Remote wraps a remote address.
func Remote(uri string) *Location { return &Location{Kind: KindRemote, Value: uri} }

// Handle pairs a manifest resource with its resolved location. Location is
// nil and Err non-empty when resolution failed.
type Handle struct {
	Resource types.Resource
	Location *Location
	Err      string
}

// Runnable reports whether the handle can back inference. Remote artifacts
// are never fetched for inference; they are status-only.
func (h Handle) Runnable() bool {
	return h.Location != nil && h.Location.Kind == KindLocal
}

// Status converts the handle's location for API responses.
func (h Handle) Status() *types.ResourceLocation {
	if h.Location == nil {
		return nil
	}
	return &types.ResourceLocation{Kind: string(h.Location.Kind), Value: h.Location.Value}
}
