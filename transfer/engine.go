package transfer

import (
	"context"
	"fmt"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/logging"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/resume"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// Engine drives the three-phase Initiate -> Upload -> Commit protocol for
// a single file, selecting its Variant from Registry by transfer type.
type Engine struct {
	Registry *Registry
	Resume   resume.Store
	// Dialect selects how the Phase-A initiate response is decoded: a
	// Zenodo-dialect repository returns its files list as a bare array
	// rather than NRP/RDM's {enabled, entries} object.
	Dialect model.Dialect
	logger  *logging.Contextual
}

// NewEngine builds an Engine. A nil registry falls back to
// NewDefaultRegistry.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Engine{Registry: registry, logger: logging.NewContextual(logging.Logger, nil)}
}

// Upload drives key's transfer from source into record, selecting a
// Variant by transferType and seeding the initiate payload's transfer
// object with transferMetadata (e.g. Fetch's source url).
func (e *Engine) Upload(ctx context.Context, conn *httpconn.Connection, record *model.Record, key string, metadata map[string]any, source streams.Source, transferType TransferType, transferMetadata map[string]any) (*model.File, error) {
	variant, err := e.Registry.build(transferType)
	if err != nil {
		return nil, err
	}
	if ra, ok := variant.(ResumeAware); ok && e.Resume != nil {
		ra.SetResumeContext(e.Resume, record.ID, key)
	}

	log := e.logger.With(logging.Fields{"record_id": record.ID, "key": key, "transfer_type": string(transferType)})

	transferFields := map[string]any{"type": string(transferType)}
	for k, v := range transferMetadata {
		transferFields[k] = v
	}
	entry := &InitiateEntry{Key: key, Metadata: metadata, Transfer: transferFields}

	if err := variant.Prepare(entry, source); err != nil {
		return nil, fmt.Errorf("transfer: prepare %q: %w", key, err)
	}

	var filesList *model.FilesList
	err = logging.Timed(log, "initiate", func() error {
		resp, err := conn.Post(ctx, record.Links.Files, []InitiateEntry{*entry}, nil)
		if err != nil {
			return err
		}
		filesList, err = model.DecodeFilesList(resp.Body, e.Dialect)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: initiate upload for %q: %w", key, err)
	}

	var committed *model.File
	for i := range filesList.Entries {
		if filesList.Entries[i].Key == key {
			committed = &filesList.Entries[i]
			break
		}
	}
	if committed == nil {
		return nil, fmt.Errorf("transfer: initiate response for %q did not echo the requested key", key)
	}

	err = logging.Timed(log, "upload", func() error {
		return variant.Upload(ctx, conn, committed, source)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: upload %q: %w", key, err)
	}

	if committed.Links.Commit == "" {
		return committed, nil
	}

	var final model.File
	err = logging.Timed(log, "commit", func() error {
		_, err := conn.Post(ctx, committed.Links.Commit, variant.CommitPayload(), &final)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: commit %q: %w", key, err)
	}

	if e.Resume != nil {
		if err := e.Resume.Forget(ctx, record.ID, key); err != nil {
			log.WithError(err).Warn("failed to clear resume state after successful commit")
		}
	}

	return &final, nil
}
