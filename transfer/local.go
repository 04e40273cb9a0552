package transfer

import (
	"context"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// LocalVariant uploads a source in a single PUT to the file's content
// link. It is the only variant a source without range support may use.
type LocalVariant struct{}

func (v *LocalVariant) Prepare(entry *InitiateEntry, source streams.Source) error {
	return nil
}

func (v *LocalVariant) Upload(ctx context.Context, conn *httpconn.Connection, entry *model.File, source streams.Source) error {
	_, err := conn.PutStream(ctx, entry.Links.Content, source)
	return err
}

func (v *LocalVariant) CommitPayload() any { return map[string]any{} }
