package gstore

import (
	"context"
	"encoding/json"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tenkdog/jarvis/lib/store"
	"github.com/tenkdog/jarvis/rpc/transport"
	"net/http"
	"net/url"
)

var Logger = logger.GetLogger("store")

// maxBodyExcerpt is the number of body bytes kept in error messages
const maxBodyExcerpt = 180

// gistFile is a single file entry of the gist api
type gistFile struct {
	Content   *string `json:"content,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
	RawURL    string  `json:"raw_url,omitempty"`
}

// gist is the subset of the gist resource that is used
type gist struct {
	Files map[string]*gistFile `json:"files"`
}

type storeImpl struct {
	transport transport.IRESTClientTransport
}

// NewGistStore creates a document store backed by GitHub gists. The transport must
// already be connected to the api base url with the access token configured.
// Each document is one file of a gist: Locator.ID is the gist id, Locator.Name the file name.
func NewGistStore(t transport.IRESTClientTransport) store.IDocumentStore {
	return &storeImpl{transport: t}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Fetch(ctx context.Context, loc store.Locator, revision string) (store.Document, string, error) {
	if loc.ID == "" || loc.Name == "" {
		return nil, "", store.Errorf(store.RetCConfig, "incomplete locator %q", loc)
	}

	header := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if revision != "" {
		header["If-None-Match"] = revision
	}

	resp, err := s.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/gists/" + url.PathEscape(loc.ID),
		Header: header,
	})
	if err != nil {
		return nil, "", store.Errorf(store.RetCTransport, "gist get %s: %v", loc, err)
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, revision, store.ErrNotModified
	case http.StatusOK:
	default:
		return nil, "", statusError("gist get", loc, resp)
	}

	var g gist
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return nil, "", store.Errorf(store.RetCDecode, "gist get %s: %v", loc, err)
	}

	// a missing file is never treated as an empty document
	file, ok := g.Files[loc.Name]
	if !ok || file == nil {
		return nil, "", store.Errorf(store.RetCNotFound, "gist %s has no file %s", loc.ID, loc.Name)
	}

	content := ""
	if file.Content != nil {
		content = *file.Content
	}
	if file.Truncated && file.RawURL != "" {
		Logger.Debugf("content of %s is truncated, loading %s", loc, file.RawURL)
		if content, err = s.fetchRaw(ctx, loc, file.RawURL); err != nil {
			return nil, "", err
		}
	}

	doc, err := store.Decode([]byte(content))
	if err != nil {
		return nil, "", store.Errorf(store.RetCDecode, "gist get %s: %v", loc, err)
	}
	return doc, resp.Header.Get("ETag"), nil
}

func (s *storeImpl) Write(ctx context.Context, loc store.Locator, doc store.Document) (string, error) {
	if loc.ID == "" || loc.Name == "" {
		return "", store.Errorf(store.RetCConfig, "incomplete locator %q", loc)
	}

	content, err := store.Encode(doc)
	if err != nil {
		return "", err
	}
	text := string(content)
	body, err := json.Marshal(gist{Files: map[string]*gistFile{loc.Name: {Content: &text}}})
	if err != nil {
		return "", store.Errorf(store.RetCEncode, "gist patch %s: %v", loc, err)
	}

	resp, err := s.transport.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   "/gists/" + url.PathEscape(loc.ID),
		Header: map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		Body: body,
	})
	if err != nil {
		return "", store.Errorf(store.RetCTransport, "gist patch %s: %v", loc, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("gist patch", loc, resp)
	}
	return resp.Header.Get("ETag"), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// fetchRaw loads the full content of a truncated gist file
func (s *storeImpl) fetchRaw(ctx context.Context, loc store.Locator, rawURL string) (string, error) {
	resp, err := s.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   rawURL,
	})
	if err != nil {
		return "", store.Errorf(store.RetCTransport, "gist raw %s: %v", loc, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError("gist raw", loc, resp)
	}
	return string(resp.Body), nil
}

// statusError converts an unexpected answer into a store error
func statusError(op string, loc store.Locator, resp *transport.Response) error {
	excerpt := string(resp.Body)
	if len(excerpt) > maxBodyExcerpt {
		excerpt = excerpt[:maxBodyExcerpt]
	}
	return store.Errorf(store.RetCStatus, "%s %s failed: %d %s", op, loc, resp.StatusCode, excerpt)
}
