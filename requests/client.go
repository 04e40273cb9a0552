// Package requests implements the Requests API: the workflow state machine
// (created -> submitted -> accepted/declined, or created -> cancelled, or
// -> expired), request-type driven creation, and the global request
// listing filtered by status family.
package requests

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
)

// ErrInvalidTransition is returned when a transition is attempted from a
// status that does not permit it, or when the repository has not granted
// the current principal the corresponding action link.
var ErrInvalidTransition = errors.New("requests: invalid transition")

// Client drives request creation and state transitions over one
// Connection.
type Client struct {
	conn    *httpconn.Connection
	listURL string
}

// NewClient builds a requests Client. listURL is the global request
// listing endpoint used by List.
func NewClient(conn *httpconn.Connection, listURL string) *Client {
	return &Client{conn: conn, listURL: listURL}
}

// ApplicableRequests fetches the request types a record currently accepts,
// following record.Links.ApplicableRequests.
func (c *Client) ApplicableRequests(ctx context.Context, record *model.Record) (*model.RequestTypeList, error) {
	if record.Links.ApplicableRequests == "" {
		return nil, fmt.Errorf("requests: record %q has no applicable_requests link", record.ID)
	}
	var list model.RequestTypeList
	_, err := c.conn.Get(ctx, record.Links.ApplicableRequests, &list)
	if err != nil {
		return nil, fmt.Errorf("requests: list applicable requests for %q: %w", record.ID, err)
	}
	list.SetConnection(c.conn)
	return &list, nil
}

// Create POSTs payload to requestType's creation link, producing a new
// Request in status "created". If submit is true, Submit is immediately
// invoked on the result.
func (c *Client) Create(ctx context.Context, requestType model.RequestType, payload map[string]any, submit bool) (*model.Request, error) {
	if requestType.Links.Create == "" {
		return nil, fmt.Errorf("requests: request type %q has no create link: %w", requestType.TypeID, ErrInvalidTransition)
	}

	var req model.Request
	_, err := c.conn.Post(ctx, requestType.Links.Create, payload, &req)
	if err != nil {
		return nil, fmt.Errorf("requests: create from type %q: %w", requestType.TypeID, err)
	}

	if submit {
		return c.Submit(ctx, &req)
	}
	return &req, nil
}

// Submit transitions req from "created" to "submitted".
func (c *Client) Submit(ctx context.Context, req *model.Request) (*model.Request, error) {
	return c.transition(ctx, req, model.RequestCreated, req.Links.Actions.Submit, "submit")
}

// Cancel transitions req from "created" to "cancelled".
func (c *Client) Cancel(ctx context.Context, req *model.Request) (*model.Request, error) {
	return c.transition(ctx, req, model.RequestCreated, req.Links.Actions.Cancel, "cancel")
}

// Accept transitions req from "submitted" to "accepted".
func (c *Client) Accept(ctx context.Context, req *model.Request) (*model.Request, error) {
	return c.transition(ctx, req, model.RequestSubmitted, req.Links.Actions.Accept, "accept")
}

// Decline transitions req from "submitted" to "declined".
func (c *Client) Decline(ctx context.Context, req *model.Request) (*model.Request, error) {
	return c.transition(ctx, req, model.RequestSubmitted, req.Links.Actions.Decline, "decline")
}

func (c *Client) transition(ctx context.Context, req *model.Request, requiredStatus, link, action string) (*model.Request, error) {
	if req.Status != requiredStatus {
		return nil, fmt.Errorf("requests: %s requires status %q, have %q: %w", action, requiredStatus, req.Status, ErrInvalidTransition)
	}
	if link == "" {
		return nil, fmt.Errorf("requests: %s not permitted on request %q (no action link): %w", action, req.ID, ErrInvalidTransition)
	}

	var updated model.Request
	_, err := c.conn.Post(ctx, link, nil, &updated)
	if err != nil {
		return nil, fmt.Errorf("requests: %s %q: %w", action, req.ID, err)
	}
	updated.SetConnection(c.conn)
	return &updated, nil
}

// ListParams filter the global request listing by status family and page.
type ListParams struct {
	Status string
	Page   int
	Size   int
}

// List fetches the global, principal-scoped request listing, filtered by
// status family via a query parameter.
func (c *Client) List(ctx context.Context, params ListParams) (*model.RequestList, error) {
	var opts []httpconn.RequestOption
	if params.Status != "" {
		opts = append(opts, httpconn.WithQuery("status", params.Status))
	}
	if params.Page > 0 {
		opts = append(opts, httpconn.WithQuery("page", strconv.Itoa(params.Page)))
	}
	if params.Size > 0 {
		opts = append(opts, httpconn.WithQuery("size", strconv.Itoa(params.Size)))
	}

	var list model.RequestList
	_, err := c.conn.Get(ctx, c.listURL, &list, opts...)
	if err != nil {
		return nil, fmt.Errorf("requests: list: %w", err)
	}
	list.SetConnection(c.conn)
	return &list, nil
}
