package repository

import "github.com/nrp-cz/nrp-go-client/model"

// Routes resolves the URL-routing helpers spec defines on top of a
// discovered RepositoryInfo: search/create/read/requests endpoints, scoped
// to a named model when the repository publishes more than one.
type Routes struct {
	info *model.RepositoryInfo
}

// NewRoutes wraps info for URL resolution.
func NewRoutes(info *model.RepositoryInfo) *Routes {
	return &Routes{info: info}
}

// modelInfo resolves name to a ModelInfo. An empty name resolves to the
// repository's sole model when exactly one is published; otherwise ok is
// false and callers fall back to the aggregate endpoint.
func (r *Routes) modelInfo(name string) (model.ModelInfo, bool) {
	if name != "" {
		m, ok := r.info.Models[name]
		return m, ok
	}
	if len(r.info.Models) == 1 {
		for _, m := range r.info.Models {
			return m, true
		}
	}
	return model.ModelInfo{}, false
}

// SearchURL returns the search endpoint for name, or the aggregate records
// endpoint when name is empty and no single model can be inferred.
func (r *Routes) SearchURL(name string) string {
	if m, ok := r.modelInfo(name); ok {
		return m.API
	}
	return r.info.Links.Records
}

// UserSearchURL returns the user-scoped search endpoint for name, or the
// aggregate user-records endpoint.
func (r *Routes) UserSearchURL(name string) string {
	if m, ok := r.modelInfo(name); ok && m.UserRecords != "" {
		return m.UserRecords
	}
	return r.info.Links.UserRecords
}

// CreateURL returns the creation endpoint for name; records are created
// against the same endpoint they are searched from.
func (r *Routes) CreateURL(name string) string {
	return r.SearchURL(name)
}

// ReadURL returns a ReadURLBuilder for name, joining an opaque record id to
// the model's published-record base.
func (r *Routes) ReadURL(name string) func(id string) string {
	base := r.SearchURL(name)
	if m, ok := r.modelInfo(name); ok && m.Published != "" {
		base = m.Published
	}
	return joinID(base)
}

// UserReadURL returns a ReadURLBuilder that resolves an opaque id against
// the user-scoped (draft-visible) record endpoint.
func (r *Routes) UserReadURL(name string) func(id string) string {
	return joinID(r.UserSearchURL(name))
}

// RequestsURL returns the global request-listing endpoint.
func (r *Routes) RequestsURL() string {
	return r.info.Links.Requests
}

func joinID(base string) func(id string) string {
	base = stripTrailingSlash(base)
	return func(id string) string {
		return base + "/" + id
	}
}

func stripTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
