// Package records implements the Records API: create, read, search, scan,
// and per-record update/delete, plus the dotted-path in-place metadata
// patcher SetPath uses for partial updates.
package records

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/nrp-cz/nrp-go-client/errs"
	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
)

// ReadURLBuilder resolves an opaque record id to a full read URL. The
// client factory supplies the draft (user_read_url) or published
// (read_url) variant depending on which scope this Client addresses.
type ReadURLBuilder func(id string) string

// Client drives one model's record endpoints: a search/create aggregate
// plus whichever read-URL scope (draft or published) its factory bound it
// to.
type Client struct {
	conn      *httpconn.Connection
	searchURL string
	createURL string
	readURL   ReadURLBuilder
	dialect   model.Dialect
}

// NewClient builds a records Client bound to one model's URLs. dialect
// selects how Files decodes the files sub-resource response (NRP/RDM's
// {enabled, entries} object vs. Zenodo's bare entries array).
func NewClient(conn *httpconn.Connection, searchURL, createURL string, readURL ReadURLBuilder, dialect model.Dialect) *Client {
	return &Client{conn: conn, searchURL: searchURL, createURL: createURL, readURL: readURL, dialect: dialect}
}

// createOptions collects Create's optional derivations.
type createOptions struct {
	community    string
	workflow     string
	idempotent   bool
	filesEnabled bool
}

// CreateOption customizes Create's derived payload.
type CreateOption func(*createOptions)

// WithCommunity sets parent.communities.default on the created record.
func WithCommunity(id string) CreateOption {
	return func(o *createOptions) { o.community = id }
}

// WithWorkflow sets parent.workflow on the created record.
func WithWorkflow(id string) CreateOption {
	return func(o *createOptions) { o.workflow = id }
}

// WithIdempotentCreate requests idempotent creation. Reserved: the
// repository has no deterministic PID strategy yet, so this always fails
// with errs.ErrNotImplemented until one is agreed.
func WithIdempotentCreate() CreateOption {
	return func(o *createOptions) { o.idempotent = true }
}

// WithFilesEnabled overrides the default files.enabled = true.
func WithFilesEnabled(enabled bool) CreateOption {
	return func(o *createOptions) { o.filesEnabled = enabled }
}

// Create POSTs data to the model's create endpoint, deriving parent.* from
// WithCommunity/WithWorkflow and files.enabled from WithFilesEnabled
// (default true) before sending.
func (c *Client) Create(ctx context.Context, data map[string]any, opts ...CreateOption) (*model.Record, error) {
	cfg := createOptions{filesEnabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.idempotent {
		return nil, fmt.Errorf("records: idempotent create: %w", errs.ErrNotImplemented)
	}

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	if cfg.community != "" {
		SetPath(payload, "parent.communities.default", cfg.community, false)
	}
	if cfg.workflow != "" {
		SetPath(payload, "parent.workflow", cfg.workflow, false)
	}
	SetPath(payload, "files.enabled", cfg.filesEnabled, false)

	var record model.Record
	resp, err := c.conn.Post(ctx, c.createURL, payload, &record)
	if err != nil {
		return nil, fmt.Errorf("records: create: %w", err)
	}
	record.SetConnection(c.conn)
	record.SetETag(resp.ETag)
	return &record, nil
}

// Read fetches one record by opaque id or full URL (used verbatim when it
// looks like one). expand requests server-side computed-field expansion.
func (c *Client) Read(ctx context.Context, recordID string, expand bool) (*model.Record, error) {
	target := recordID
	if !looksLikeURL(recordID) {
		target = c.readURL(recordID)
	}

	var opts []httpconn.RequestOption
	if expand {
		opts = append(opts, httpconn.WithQuery("expand", "true"))
	}

	var record model.Record
	resp, err := c.conn.Get(ctx, target, &record, opts...)
	if err != nil {
		return nil, fmt.Errorf("records: read %q: %w", recordID, err)
	}
	record.SetConnection(c.conn)
	record.SetETag(resp.ETag)
	return &record, nil
}

// Files fetches record's files sub-resource, decoding it per the client's
// repository dialect.
func (c *Client) Files(ctx context.Context, record *model.Record) (*model.FilesList, error) {
	resp, err := c.conn.Get(ctx, record.Links.Files, nil)
	if err != nil {
		return nil, fmt.Errorf("records: files %q: %w", record.ID, err)
	}
	list, err := model.DecodeFilesList(resp.Body, c.dialect)
	if err != nil {
		return nil, fmt.Errorf("records: files %q: %w", record.ID, err)
	}
	list.SetConnection(c.conn)
	list.SetETag(resp.ETag)
	return list, nil
}

// SearchParams are the query-string facets a search accepts; Facets holds
// any model-specific filters beyond the common ones.
type SearchParams struct {
	Query  string
	Page   int
	Size   int
	Sort   string
	Status string
	Facets map[string]string
}

func (p SearchParams) queryOptions() []httpconn.RequestOption {
	var opts []httpconn.RequestOption
	if p.Query != "" {
		opts = append(opts, httpconn.WithQuery("q", p.Query))
	}
	if p.Page > 0 {
		opts = append(opts, httpconn.WithQuery("page", strconv.Itoa(p.Page)))
	}
	if p.Size > 0 {
		opts = append(opts, httpconn.WithQuery("size", strconv.Itoa(p.Size)))
	}
	if p.Sort != "" {
		opts = append(opts, httpconn.WithQuery("sort", p.Sort))
	}
	if p.Status != "" {
		opts = append(opts, httpconn.WithQuery("status", p.Status))
	}
	for k, v := range p.Facets {
		opts = append(opts, httpconn.WithQuery(k, v))
	}
	return opts
}

// Search issues a paginated records query.
func (c *Client) Search(ctx context.Context, params SearchParams) (*model.RecordList, error) {
	var list model.RecordList
	_, err := c.conn.Get(ctx, c.searchURL, &list, params.queryOptions()...)
	if err != nil {
		return nil, fmt.Errorf("records: search: %w", err)
	}
	list.SetConnection(c.conn)
	return &list, nil
}

// FetchPage re-issues a search for an arbitrary absolute page URL, as
// carried in a RecordList's next/prev links.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*model.RecordList, error) {
	var list model.RecordList
	_, err := c.conn.Get(ctx, pageURL, &list)
	if err != nil {
		return nil, fmt.Errorf("records: fetch page: %w", err)
	}
	list.SetConnection(c.conn)
	return &list, nil
}

// All walks every page starting from first, yielding one (record, nil) per
// hit or a single (nil, err) if a page fetch fails, after which iteration
// stops. Range over it with `for rec, err := range client.All(ctx, first)`.
func (c *Client) All(ctx context.Context, first *model.RecordList) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		page := first
		for {
			for _, rec := range page.Items() {
				if !yield(rec, nil) {
					return
				}
			}
			if !page.HasNext() {
				return
			}
			next, err := c.FetchPage(ctx, page.NextPageURL())
			if err != nil {
				yield(nil, err)
				return
			}
			page = next
		}
	}
}

// Scan performs a time-ordered, overlap-tolerant full enumeration of q: it
// sorts ascending by created, replays the query with
// `created:["last_seen" TO *]` as each page runs dry, and filters
// duplicates by self-link to tolerate records created at the boundary
// between the last fetch and the next.
func (c *Client) Scan(ctx context.Context, q string) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		seen := make(map[string]struct{})
		lastSeen := ""

		for {
			query := q
			if lastSeen != "" {
				boundary := fmt.Sprintf(`created:["%s" TO *]`, lastSeen)
				if query == "" {
					query = boundary
				} else {
					query = query + " AND " + boundary
				}
			}

			page, err := c.Search(ctx, SearchParams{Query: query, Sort: "created", Size: 100})
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page.Items()) == 0 {
				return
			}

			progressed := false
			for _, rec := range page.Items() {
				if _, dup := seen[rec.Links.Self_]; dup {
					continue
				}
				seen[rec.Links.Self_] = struct{}{}
				progressed = true
				if !yield(rec, nil) {
					return
				}
				lastSeen = rec.Created.Format("2006-01-02T15:04:05Z")
			}
			if !progressed {
				return
			}
		}
	}
}

// Update PUTs the whole record DTO back, sending If-Match from the
// record's stored ETag unless forceETag is true.
func (c *Client) Update(ctx context.Context, record *model.Record, forceETag bool) (*model.Record, error) {
	var opts []httpconn.RequestOption
	if forceETag {
		opts = append(opts, httpconn.WithoutIfMatch())
	} else {
		opts = append(opts, httpconn.WithIfMatch(record.ETag()))
	}

	var updated model.Record
	resp, err := c.conn.Put(ctx, record.Links.Self_, record, &updated, opts...)
	if err != nil {
		return nil, fmt.Errorf("records: update %q: %w", record.ID, err)
	}
	updated.SetConnection(c.conn)
	updated.SetETag(resp.ETag)
	return &updated, nil
}

// Delete removes record, sending If-Match from its stored ETag unless
// forceETag is true.
func (c *Client) Delete(ctx context.Context, record *model.Record, forceETag bool) error {
	var opts []httpconn.RequestOption
	if forceETag {
		opts = append(opts, httpconn.WithoutIfMatch())
	} else {
		opts = append(opts, httpconn.WithIfMatch(record.ETag()))
	}
	_, err := c.conn.Delete(ctx, record.Links.Self_, opts...)
	if err != nil {
		return fmt.Errorf("records: delete %q: %w", record.ID, err)
	}
	return nil
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
