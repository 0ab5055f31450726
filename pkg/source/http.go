package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/taigrr/threedviewer/pkg/errkind"
)

// HTTP fetches the model from URL. Siblings are resolved relative to it.
type HTTP struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// NewHTTP returns an HTTP source using http.DefaultClient.
func NewHTTP(rawURL string) *HTTP {
	return &HTTP{URL: rawURL}
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTP) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errkind.NewFetch("build request", err)
	}
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := h.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errkind.NewFetch("GET "+target, err)
	}
	return resp, nil
}

// Open starts the download. Content-Length and Content-Type fill Info.
func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, Info, error) {
	resp, err := h.get(ctx, h.URL)
	if err != nil {
		return nil, Info{}, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, Info{}, errkind.NewFetch(fmt.Sprintf("GET %s: %s", h.URL, resp.Status), nil)
	}
	info := Info{
		Name:        nameFromURL(h.URL),
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}
	return resp.Body, info, nil
}

// Sibling fetches name relative to URL. 404 and 410 map to ErrNotFound.
func (h *HTTP) Sibling(ctx context.Context, name string) (io.ReadCloser, error) {
	base, err := url.Parse(h.URL)
	if err != nil {
		return nil, errkind.NewFetch("parse url", err)
	}
	ref := &url.URL{Path: name}
	target := base.ResolveReference(ref).String()

	resp, err := h.get(ctx, target)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, notFound(name)
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, errkind.NewFetch(fmt.Sprintf("GET %s: %s", target, resp.Status), nil)
	}
	return resp.Body, nil
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	// Nextcloud style download links carry the file name in a query.
	for _, key := range []string{"file", "name", "path"} {
		if v := u.Query().Get(key); v != "" {
			return path.Base(v)
		}
	}
	return path.Base(strings.TrimSuffix(u.Path, "/"))
}
