package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nrp-cz/nrp-go-client/httpconn"
)

// ErrDOIResolutionRequired is returned when a record identifier is a DOI.
// Resolving a DOI to a landing-page URL is an external HTTP call this
// package does not make; the caller is expected to resolve it and pass the
// resulting URL back in.
var ErrDOIResolutionRequired = errors.New("repository: id is a DOI, resolve it externally first")

// Ref identifies one configured repository by its connection endpoint.
type Ref struct {
	Alias   string
	BaseURL string
}

// IsDOI reports whether id is a `doi:` URI or a resolved doi.org landing
// page URL.
func IsDOI(id string) bool {
	return strings.HasPrefix(id, "doi:") || strings.HasPrefix(id, "https://doi.org/") || strings.HasPrefix(id, "http://doi.org/")
}

func looksLikeURL(id string) bool {
	return strings.HasPrefix(id, "https://") || strings.HasPrefix(id, "http://")
}

// MatchByURL finds the configured repository whose base URL shares id's
// scheme and host, per spec's {scheme, host} matching rule.
func MatchByURL(refs []Ref, rawURL string) (Ref, bool) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return Ref{}, false
	}
	for _, ref := range refs {
		base, err := url.Parse(ref.BaseURL)
		if err != nil {
			continue
		}
		if base.Scheme == target.Scheme && base.Host == target.Host {
			return ref, true
		}
	}
	return Ref{}, false
}

// ResolveRecordID classifies a free-form record identifier per spec:
// a DOI is rejected with ErrDOIResolutionRequired (the caller resolves it
// externally and calls back in with the resulting URL); a full URL is
// matched against refs by {scheme, host}; anything else is an opaque id
// against defaultRef.
func ResolveRecordID(id string, refs []Ref, defaultRef Ref) (Ref, string, error) {
	if IsDOI(id) {
		return Ref{}, "", fmt.Errorf("%w: %q", ErrDOIResolutionRequired, id)
	}
	if looksLikeURL(id) {
		if ref, ok := MatchByURL(refs, id); ok {
			return ref, id, nil
		}
		return Ref{}, "", fmt.Errorf("repository: no configured repository matches %q", id)
	}
	return defaultRef, id, nil
}

// ResolveRecordURL behaves like ResolveRecordID, except that when id is a
// full URL it is additionally converted from a human-facing landing page
// into its API URL via apiURLFromLandingPage — a landing page is not
// guaranteed to be the record's API endpoint, so it is HEAD-probed for the
// linkset the repository advertises. conn must already be bound to the
// matched repository's base URL.
func ResolveRecordURL(ctx context.Context, conn *httpconn.Connection, id string, refs []Ref, defaultRef Ref) (Ref, string, error) {
	ref, recordRef, err := ResolveRecordID(id, refs, defaultRef)
	if err != nil {
		return Ref{}, "", err
	}
	if !looksLikeURL(recordRef) {
		return ref, recordRef, nil
	}
	apiURL, err := apiURLFromLandingPage(ctx, conn, recordRef)
	if err != nil {
		return Ref{}, "", err
	}
	return ref, apiURL, nil
}

// apiURLFromLandingPage converts a human-facing landing page URL into its
// API URL by issuing a HEAD request and reading the `Link: rel="linkset"`
// header the repository advertises on record pages.
func apiURLFromLandingPage(ctx context.Context, conn *httpconn.Connection, landingURL string) (string, error) {
	resp, err := conn.Head(ctx, landingURL)
	if err != nil {
		return "", fmt.Errorf("repository: resolve landing page %q: %w", landingURL, err)
	}
	link := linksetURL(resp.Header.Get("Link"))
	if link == "" {
		return "", fmt.Errorf("repository: %q carries no linkset Link header", landingURL)
	}
	return link, nil
}

// linksetURL extracts the URL of the rel="linkset" entry from an RFC 8288
// Link header value.
func linksetURL(header string) string {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="linkset"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start == -1 || end == -1 || end <= start {
			continue
		}
		return part[start+1 : end]
	}
	return ""
}
