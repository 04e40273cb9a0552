// Package model defines the typed DTOs exchanged with an InvenioRDM-style
// repository: records, their files and transfers, requests, and repository
// metadata. The top-level DTOs carry an Extras bag for unknown JSON keys,
// and the resource DTOs a non-owning reference to the Connection they were
// read through, set via SetConnection by the client package that decoded
// them and never serialized.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nrp-cz/nrp-go-client/convert"
	"github.com/nrp-cz/nrp-go-client/httpconn"
)

// Identity is the {id, created, updated, revision_id} quadruple common to
// every top-level REST resource.
type Identity struct {
	ID         string    `json:"id"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	RevisionID int       `json:"revision_id"`
}

// FilesMarker reports whether a record accepts file attachments.
type FilesMarker struct {
	Enabled bool `json:"enabled"`
}

// ParentCommunities names the community a record's parent belongs to by
// default.
type ParentCommunities struct {
	Default string `json:"default"`
}

// Parent groups the community and workflow attached to a record at
// creation; it is shared across all of a record's revisions and lifecycle
// states.
type Parent struct {
	Communities *ParentCommunities `json:"communities,omitempty"`
	Workflow    string             `json:"workflow,omitempty"`
}

// Record lifecycle states.
const (
	StateDraft     = "draft"
	StatePublished = "published"
)

// Record is a metadata document plus an optional file bundle, addressable
// by id and URL. Its ETag is the optimistic-concurrency token for the next
// write; the records client calls SetETag after every read or write.
type Record struct {
	Identity
	Links    RecordLinks    `json:"links"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Files_   *FilesMarker   `json:"files,omitempty"`
	Parent   *Parent        `json:"parent,omitempty"`
	State    string         `json:"state,omitempty"`
	Extras   map[string]any `json:"-"`

	connection *httpconn.Connection
	etag       string
}

func (r *Record) SetETag(etag string)                 { r.etag = etag }
func (r *Record) ETag() string                         { return r.etag }
func (r *Record) SetConnection(c *httpconn.Connection) { r.connection = c }
func (r *Record) Connection() *httpconn.Connection     { return r.connection }

// recordAlias breaks the recursion MarshalJSON/UnmarshalJSON would
// otherwise cause by calling back into themselves through json.Marshal.
type recordAlias Record

func (r *Record) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*recordAlias)(r), r.Extras)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*recordAlias)(r))
	if err != nil {
		return err
	}
	r.Extras = extras
	return nil
}

// TransferType names how bytes move between client and repository for one
// File: L local byte stream, M multipart with server-issued part URLs, F
// server-side fetch by URL, R remote link only.
type TransferType string

const (
	TransferLocal     TransferType = "L"
	TransferMultipart TransferType = "M"
	TransferFetch     TransferType = "F"
	TransferRemote    TransferType = "R"
)

// Transfer is the tagged {type, ...} object a File carries; the variant-
// specific keys (size, parts, part_size, url) live in Extras since they
// differ per TransferType.
type Transfer struct {
	Type   TransferType   `json:"type"`
	Extras map[string]any `json:"-"`
}

type transferAlias Transfer

func (t Transfer) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct(transferAlias(t), t.Extras)
}

func (t *Transfer) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*transferAlias)(t))
	if err != nil {
		return err
	}
	t.Extras = extras
	return nil
}

// File status values.
const (
	FileStatusPending   = "pending"
	FileStatusCompleted = "completed"
)

// File describes one file attached to a record, including its transfer
// protocol and the links needed to drive it.
type File struct {
	Key      string          `json:"key"`
	Metadata map[string]any  `json:"metadata,omitempty"`
	Status   string          `json:"status,omitempty"`
	Size     int64           `json:"size,omitempty"`
	Checksum string          `json:"checksum,omitempty"`
	Transfer Transfer        `json:"transfer,omitempty"`
	Links    FileActionLinks `json:"links"`
	Extras   map[string]any  `json:"-"`

	connection *httpconn.Connection
	etag       string
}

func (f *File) SetETag(etag string)                 { f.etag = etag }
func (f *File) ETag() string                         { return f.etag }
func (f *File) SetConnection(c *httpconn.Connection) { f.connection = c }
func (f *File) Connection() *httpconn.Connection     { return f.connection }

type fileAlias File

func (f *File) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*fileAlias)(f), f.Extras)
}

func (f *File) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*fileAlias)(f))
	if err != nil {
		return err
	}
	f.Extras = extras
	return nil
}

// FilesList is a record's `{enabled, entries}` file bundle.
type FilesList struct {
	Enabled bool           `json:"enabled"`
	Entries []File         `json:"entries"`
	Extras  map[string]any `json:"-"`

	connection *httpconn.Connection
	etag       string
}

func (l *FilesList) SetETag(etag string)                 { l.etag = etag }
func (l *FilesList) ETag() string                         { return l.etag }
func (l *FilesList) SetConnection(c *httpconn.Connection) { l.connection = c }
func (l *FilesList) Connection() *httpconn.Connection     { return l.connection }

type filesListAlias FilesList

func (l *FilesList) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*filesListAlias)(l), l.Extras)
}

func (l *FilesList) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*filesListAlias)(l))
	if err != nil {
		return err
	}
	l.Extras = extras
	return nil
}

// DecodeFilesList parses a record's files sub-resource response, dispatching
// on dialect: a plain NRP/RDM repository wraps entries in the
// `{enabled, entries}` object FilesList.UnmarshalJSON expects, but a
// Zenodo-dialect repository's legacy API returns the entries as a bare JSON
// array with no enclosing object, so Enabled is inferred from whether the
// array is non-empty.
func DecodeFilesList(data []byte, dialect Dialect) (*FilesList, error) {
	if dialect == DialectZenodo && isJSONArray(data) {
		var entries []File
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("model: decode zenodo files list: %w", err)
		}
		return &FilesList{Enabled: len(entries) > 0, Entries: entries}, nil
	}

	var list FilesList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("model: decode files list: %w", err)
	}
	return &list, nil
}

func isJSONArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// EntityRef is a single-entry reference map, `{entity_type: id}`, used by
// Request for created_by/receiver/topic.
type EntityRef map[string]string

// Request status values; see the state machine in Requests API docs.
const (
	RequestCreated   = "created"
	RequestSubmitted = "submitted"
	RequestAccepted  = "accepted"
	RequestDeclined  = "declined"
	RequestCancelled = "cancelled"
	RequestExpired   = "expired"
)

// Request is a workflow object representing a proposed transition (publish,
// delete, edit, access grant). Action links appear only when the current
// principal may take that action in the current status.
type Request struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title,omitempty"`
	Status    string         `json:"status"`
	IsOpen    bool           `json:"is_open"`
	IsClosed  bool           `json:"is_closed"`
	IsExpired bool           `json:"is_expired"`
	CreatedBy EntityRef      `json:"created_by"`
	Receiver  EntityRef      `json:"receiver"`
	Topic     EntityRef      `json:"topic"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Links     RequestLinks   `json:"links"`
	Extras    map[string]any `json:"-"`

	connection *httpconn.Connection
	etag       string
}

func (r *Request) SetETag(etag string)                 { r.etag = etag }
func (r *Request) ETag() string                         { return r.etag }
func (r *Request) SetConnection(c *httpconn.Connection) { r.connection = c }
func (r *Request) Connection() *httpconn.Connection     { return r.connection }

type requestAlias Request

func (r *Request) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*requestAlias)(r), r.Extras)
}

// UnmarshalJSON decodes r, then expands any colon-delimited keys in
// Payload into a nested tree so callers never see the wire's flattened
// form.
func (r *Request) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*requestAlias)(r))
	if err != nil {
		return err
	}
	r.Extras = extras
	if r.Payload != nil {
		r.Payload = convert.NestColonKeys(r.Payload)
	}
	return nil
}

// RequestType is one entry of a record's applicable-requests list: the
// template from which a concrete Request is created.
type RequestType struct {
	TypeID string                 `json:"type_id"`
	Name   string                 `json:"name,omitempty"`
	Links  RequestTypeActionLinks `json:"links"`
	Extras map[string]any         `json:"-"`

	connection *httpconn.Connection
}

func (t *RequestType) SetConnection(c *httpconn.Connection) { t.connection = c }
func (t *RequestType) Connection() *httpconn.Connection     { return t.connection }

type requestTypeAlias RequestType

func (t *RequestType) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*requestTypeAlias)(t), t.Extras)
}

func (t *RequestType) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*requestTypeAlias)(t))
	if err != nil {
		return err
	}
	t.Extras = extras
	return nil
}

// RequestTypeActionLinks is the subset of links relevant before a request
// exists yet: only `create` is possible.
type RequestTypeActionLinks struct {
	Create string `json:"create,omitempty"`
}

// Dialect distinguishes wire-format variants among InvenioRDM-family
// repositories. Zenodo diverges from plain NRP/RDM in a few response
// shapes (e.g. files as a list rather than an object). It is classified
// from RepositoryInfo.Name alone; RepositoryInfo.Version is not consulted.
type Dialect int

const (
	DialectNRP Dialect = iota
	DialectZenodo
)

func (d Dialect) String() string {
	if d == DialectZenodo {
		return "zenodo"
	}
	return "nrp"
}

// ModelInfo describes one record model a repository exposes.
type ModelInfo struct {
	API         string            `json:"api"`
	HTML        string            `json:"html,omitempty"`
	Schemas     map[string]string `json:"schemas,omitempty"`
	Schema      string            `json:"schema,omitempty"`
	Published   string            `json:"published,omitempty"`
	UserRecords string            `json:"user_records,omitempty"`
	Features    []string          `json:"features,omitempty"`
	Accept      []string          `json:"accept,omitempty"`
	Extras      map[string]any    `json:"-"`
}

type modelInfoAlias ModelInfo

func (m ModelInfo) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct(modelInfoAlias(m), m.Extras)
}

func (m *ModelInfo) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*modelInfoAlias)(m))
	if err != nil {
		return err
	}
	m.Extras = extras
	return nil
}

// RepositoryInfo is the immutable-per-fetch description of a repository's
// capabilities, returned by `.well-known/repository` discovery.
type RepositoryInfo struct {
	Name            string               `json:"name"`
	Version         string               `json:"version"`
	SoftwareVersion string               `json:"software_version,omitempty"`
	TransferTypes   []string             `json:"transfer_types,omitempty"`
	Links           RepositoryLinks      `json:"links"`
	Models          map[string]ModelInfo `json:"models,omitempty"`
	Dialect         Dialect              `json:"-"`
	Extras          map[string]any       `json:"-"`
}

type repositoryInfoAlias RepositoryInfo

func (r *RepositoryInfo) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*repositoryInfoAlias)(r), r.Extras)
}

// UnmarshalJSON decodes r, then classifies its Dialect from the discovered
// name (a case-insensitive "zenodo" substring) — Zenodo's wire shape diverges from plain NRP/RDM in a few
// response shapes (see DESIGN.md).
func (r *RepositoryInfo) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*repositoryInfoAlias)(r))
	if err != nil {
		return err
	}
	r.Extras = extras
	r.Dialect = classifyDialect(r.Name)
	return nil
}

func classifyDialect(name string) Dialect {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "zenodo") {
		return DialectZenodo
	}
	return DialectNRP
}
