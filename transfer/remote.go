package transfer

import (
	"context"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/streams"
)

// RemoteVariant links a file in place without any client- or server-side
// byte transfer at all.
type RemoteVariant struct{}

func (v *RemoteVariant) Prepare(entry *InitiateEntry, source streams.Source) error {
	return nil
}

func (v *RemoteVariant) Upload(ctx context.Context, conn *httpconn.Connection, entry *model.File, source streams.Source) error {
	return nil
}

func (v *RemoteVariant) CommitPayload() any { return map[string]any{} }
