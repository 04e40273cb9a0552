package model

import (
	"github.com/nrp-cz/nrp-go-client/convert"
	"github.com/nrp-cz/nrp-go-client/httpconn"
)

// Connectable is implemented by every hit type a RESTList can carry, so the
// list can propagate its connection down to each hit as they're structured.
type Connectable interface {
	SetConnection(c *httpconn.Connection)
}

// Hits is the `{hits, total}` envelope nested inside a RESTList.
type Hits[T any] struct {
	Hits  []T `json:"hits"`
	Total int `json:"total"`
}

// RESTList is the generic paginated search-result container: `{hits:
// {hits, total}, aggregations?, sort_by?, links}`. The list owns a
// connection reference it propagates to its hits so they can issue further
// requests (update, delete, follow action links) without the caller
// threading a Connection through by hand.
type RESTList[T Connectable] struct {
	HitsContainer Hits[T]        `json:"hits"`
	Aggregations  map[string]any `json:"aggregations,omitempty"`
	SortBy        string         `json:"sort_by,omitempty"`
	Links         ListLinks      `json:"links"`

	connection *httpconn.Connection
}

// SetConnection attaches conn to the list and to every hit it already
// carries, the same call a client package makes on a plain DTO after
// decoding it.
func (l *RESTList[T]) SetConnection(conn *httpconn.Connection) {
	l.connection = conn
	for _, hit := range l.HitsContainer.Hits {
		hit.SetConnection(conn)
	}
}

// Connection returns the list's non-owning Connection reference.
func (l *RESTList[T]) Connection() *httpconn.Connection { return l.connection }

// Items returns the page's hits.
func (l *RESTList[T]) Items() []T { return l.HitsContainer.Hits }

// Total returns the result set's total hit count, across all pages.
func (l *RESTList[T]) Total() int { return l.HitsContainer.Total }

// HasNext reports whether a further page is available.
func (l *RESTList[T]) HasNext() bool { return l.Links.Next != "" }

// HasPrev reports whether a preceding page is available.
func (l *RESTList[T]) HasPrev() bool { return l.Links.Prev != "" }

// NextPageURL returns the URL to fetch for the next page, or "" if none.
func (l *RESTList[T]) NextPageURL() string { return l.Links.Next }

// PrevPageURL returns the URL to fetch for the previous page, or "" if
// none.
func (l *RESTList[T]) PrevPageURL() string { return l.Links.Prev }

// RecordList is a RESTList of records, the return type of search and scan.
type RecordList = RESTList[*Record]

// RequestList is a RESTList of requests, the return type of the global
// request listing filtered by status family.
type RequestList = RESTList[*Request]

// RequestTypeList is the result of GET `record.links.applicable_requests`:
// the templates from which a concrete Request may be created for this
// record in its current state.
type RequestTypeList struct {
	Types  []RequestType `json:"request_types"`
	Extras map[string]any `json:"-"`

	connection *httpconn.Connection
}

func (l *RequestTypeList) SetConnection(conn *httpconn.Connection) {
	l.connection = conn
	for i := range l.Types {
		l.Types[i].SetConnection(conn)
	}
}

// ByTypeID looks up a request type by its stable identifier.
func (l *RequestTypeList) ByTypeID(typeID string) (RequestType, bool) {
	for _, t := range l.Types {
		if t.TypeID == typeID {
			return t, true
		}
	}
	return RequestType{}, false
}

type requestTypeListAlias RequestTypeList

func (l *RequestTypeList) MarshalJSON() ([]byte, error) {
	return convert.MarshalStruct((*requestTypeListAlias)(l), l.Extras)
}

func (l *RequestTypeList) UnmarshalJSON(data []byte) error {
	extras, err := convert.UnmarshalStruct(data, (*requestTypeListAlias)(l))
	if err != nil {
		return err
	}
	l.Extras = extras
	return nil
}
