package transfer

import (
	"context"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// FetchVariant asks the repository to pull the file's bytes from a URL the
// caller supplies via transferMetadata; the client never sends bytes.
type FetchVariant struct{}

func (v *FetchVariant) Prepare(entry *InitiateEntry, source streams.Source) error {
	return nil
}

func (v *FetchVariant) Upload(ctx context.Context, conn *httpconn.Connection, entry *model.File, source streams.Source) error {
	return nil
}

func (v *FetchVariant) CommitPayload() any { return map[string]any{} }
