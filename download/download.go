// Package download implements the content-retrieval half of the transfer
// protocol: probe a content URL for its size and range support, allocate
// the sink once, then fetch either with N concurrent ranged GETs or one
// sequential GET depending on size and what the server advertises.
package download

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/logging"
	"github.com/nrp-cz/nrp-go-client/partsize"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// Engine materializes a content URL's bytes into a streams.Sink.
type Engine struct {
	logger *logging.Contextual
}

// NewEngine builds a download Engine.
func NewEngine() *Engine {
	return &Engine{logger: logging.NewContextual(logging.Logger, nil)}
}

// Download materializes contentURL's bytes into sink: probe, allocate,
// then dispatch to ranged-concurrent or sequential fetch.
func (e *Engine) Download(ctx context.Context, conn *httpconn.Connection, contentURL string, sink streams.Sink) error {
	log := e.logger.With(logging.Fields{"url": contentURL})

	probe, err := conn.ProbeRange(ctx, contentURL)
	if err != nil {
		return fmt.Errorf("download: probe %s: %w", contentURL, err)
	}

	if probe.Size >= 0 {
		if err := sink.Allocate(ctx, probe.Size); err != nil {
			return fmt.Errorf("download: allocate sink for %d bytes: %w", probe.Size, err)
		}
	}

	if probe.Size > partsize.MinimalDownloadPartSize && probe.AcceptsRanges {
		log.Debugf("downloading %d bytes via ranged concurrent GETs", probe.Size)
		return e.downloadRanged(ctx, conn, contentURL, sink, probe.Size)
	}

	log.Debug("downloading via a single sequential GET")
	return conn.GetStream(ctx, contentURL, sink, 0, -1)
}

func (e *Engine) downloadRanged(ctx context.Context, conn *httpconn.Connection, contentURL string, sink streams.Sink, size int64) error {
	parts, partSize, err := partsize.Compute(size, nil, nil)
	if err != nil {
		return fmt.Errorf("download: compute chunk sizing: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < parts; i++ {
		i := i
		g.Go(func() error {
			offset, length := partsize.PartBounds(i, parts, partSize, size)
			if err := conn.GetStream(gctx, contentURL, sink, offset, length); err != nil {
				return fmt.Errorf("download: chunk %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
