// Package transfer implements the three-phase Initiate -> Upload -> Commit
// protocol that drives a single file's upload, dispatching to one of four
// variants (local, multipart, fetch, remote) by transfer type.
package transfer

import (
	"context"
	"fmt"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// TransferType names how bytes move for one file; re-exported from model
// since File.Transfer.Type and the registry key are the same value.
type TransferType = model.TransferType

// The four transfer types a repository may advertise.
const (
	Local     = model.TransferLocal
	Multipart = model.TransferMultipart
	Fetch     = model.TransferFetch
	Remote    = model.TransferRemote
)

// InitiateEntry is one element of the Phase-A initiate-upload request
// array: `[{key, metadata, transfer: {type, ...}}]`.
type InitiateEntry struct {
	Key      string         `json:"key"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Transfer map[string]any `json:"transfer"`
}

// Variant implements one transfer type's prepare/upload/commit behavior.
// A fresh Variant is built per upload call, so it may hold per-call state
// (e.g. the chosen part size) between Prepare and Upload.
type Variant interface {
	// Prepare enriches entry before Phase A is sent — e.g. multipart adds
	// size, parts, and part_size derived from source.
	Prepare(entry *InitiateEntry, source streams.Source) error

	// Upload streams source's bytes per the File entry Phase A returned.
	// A no-op for Fetch and Remote, which never upload client-side.
	Upload(ctx context.Context, conn *httpconn.Connection, entry *model.File, source streams.Source) error

	// CommitPayload returns the body to POST to entry.Links.Commit. Only
	// consulted when the Phase A entry actually carries a commit link.
	CommitPayload() any
}

// VariantFactory constructs a fresh Variant for one upload call.
type VariantFactory func() Variant

// Registry maps a TransferType to the variant that implements it. It is an
// explicit builder passed into Engine at construction, replacing a
// module-level dispatch table with something a caller can extend or
// override per-connection.
type Registry struct {
	factories map[TransferType]VariantFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[TransferType]VariantFactory{}}
}

// Register associates a TransferType with the factory that builds its
// Variant.
func (r *Registry) Register(t TransferType, factory VariantFactory) {
	r.factories[t] = factory
}

func (r *Registry) build(t TransferType) (Variant, error) {
	factory, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("transfer: no variant registered for transfer type %q", t)
	}
	return factory(), nil
}

// NewDefaultRegistry returns a Registry with Local, Multipart, Fetch, and
// Remote wired in, the combination every repository client needs.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(Local, func() Variant { return &LocalVariant{} })
	reg.Register(Multipart, func() Variant { return &MultipartVariant{} })
	reg.Register(Fetch, func() Variant { return &FetchVariant{} })
	reg.Register(Remote, func() Variant { return &RemoteVariant{} })
	return reg
}
