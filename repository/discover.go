// Package repository resolves a base URL into a RepositoryInfo (discovery
// with an RDM-compatible fallback), builds the per-model URLs callers need
// to drive the records/requests clients, and maps a free-form record
// identifier back to the repository that owns it.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/nrp-cz/nrp-go-client/errs"
	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
)

const wellKnownPath = "/.well-known/repository/"

// Discover fetches RepositoryInfo from conn's well-known endpoint, then
// resolves info.Links.Models into the per-model index if the repository
// advertises one. If the well-known endpoint 404s or otherwise fails with
// a client error, a synthetic RDM-compatible info is constructed instead.
func Discover(ctx context.Context, conn *httpconn.Connection) (*model.RepositoryInfo, error) {
	var info model.RepositoryInfo
	_, err := conn.Get(ctx, wellKnownPath, &info)
	if err != nil {
		if errs.IsClientError(err) {
			return syntheticInfo(conn.BaseURL.String()), nil
		}
		return nil, fmt.Errorf("repository: discover: %w", err)
	}

	if info.Links.Models != "" {
		models, err := fetchModels(ctx, conn, info.Links.Models)
		if err != nil {
			return nil, fmt.Errorf("repository: discover: %w", err)
		}
		info.Models = models
	}

	return &info, nil
}

func fetchModels(ctx context.Context, conn *httpconn.Connection, modelsURL string) (map[string]model.ModelInfo, error) {
	var models map[string]model.ModelInfo
	if _, err := conn.Get(ctx, modelsURL, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// syntheticInfo builds the RDM-compatible RepositoryInfo fallback spec
// mandates when a repository carries no `.well-known/repository` endpoint.
func syntheticInfo(base string) *model.RepositoryInfo {
	base = strings.TrimSuffix(base, "/")
	return &model.RepositoryInfo{
		Name:          base,
		Version:       "",
		TransferTypes: []string{"local-file"},
		Links: model.RepositoryLinks{
			Self_:       base + "/api/",
			Records:     base + "/api/records/",
			UserRecords: base + "/api/user/records/",
			Requests:    base + "/api/requests/",
		},
		Dialect: model.DialectNRP,
	}
}
