package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nrp-cz/nrp-go-client/model"
)

func TestRoutesUseSoleModelWhenNameOmitted(t *testing.T) {
	info := &model.RepositoryInfo{
		Links: model.RepositoryLinks{Records: "https://example.org/api/records/"},
		Models: map[string]model.ModelInfo{
			"records": {API: "https://example.org/api/records/", Published: "https://example.org/api/records/"},
		},
	}
	routes := NewRoutes(info)
	assert.Equal(t, "https://example.org/api/records/", routes.SearchURL(""))
	assert.Equal(t, "https://example.org/api/records/", routes.CreateURL(""))
}

func TestRoutesFallBackToAggregateWithMultipleModels(t *testing.T) {
	info := &model.RepositoryInfo{
		Links: model.RepositoryLinks{Records: "https://example.org/api/records/"},
		Models: map[string]model.ModelInfo{
			"records":  {API: "https://example.org/api/records/"},
			"datasets": {API: "https://example.org/api/datasets/"},
		},
	}
	routes := NewRoutes(info)
	assert.Equal(t, "https://example.org/api/records/", routes.SearchURL(""))
}

func TestRoutesSearchURLUsesNamedModel(t *testing.T) {
	info := &model.RepositoryInfo{
		Models: map[string]model.ModelInfo{
			"datasets": {API: "https://example.org/api/datasets/"},
		},
	}
	routes := NewRoutes(info)
	assert.Equal(t, "https://example.org/api/datasets/", routes.SearchURL("datasets"))
}

func TestRoutesReadURLJoinsOpaqueID(t *testing.T) {
	info := &model.RepositoryInfo{
		Links: model.RepositoryLinks{Records: "https://example.org/api/records/"},
	}
	routes := NewRoutes(info)
	readURL := routes.ReadURL("")
	assert.Equal(t, "https://example.org/api/records/abc", readURL("abc"))
}

func TestRoutesRequestsURL(t *testing.T) {
	info := &model.RepositoryInfo{Links: model.RepositoryLinks{Requests: "https://example.org/api/requests/"}}
	routes := NewRoutes(info)
	assert.Equal(t, "https://example.org/api/requests/", routes.RequestsURL())
}
