// Package stac implements a client for STAC API item search.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// DefaultURL is the USGS LandsatLook STAC server.
const DefaultURL = "https://landsatlook.usgs.gov/stac-server"

// DefaultCollection is Landsat Collection 2 Level-2 surface reflectance.
const DefaultCollection = "landsat-c2l2-sr"

const maxPages = 1000

// Doer sends HTTP requests. *http.Client and the session adapter satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries a STAC API.
type Client struct {
	baseURL  string
	doer     Doer
	timeout  time.Duration
	pageSize int
	logger   *slog.Logger
}

// Config holds STAC client configuration.
type Config struct {
	URL      string
	Timeout  time.Duration // per request
	PageSize int           // default limit when the search sets none
}

var _ output.Catalog = (*Client)(nil)

// NewClient creates a new STAC client.
func NewClient(doer Doer, cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 100
	}
	if doer == nil {
		doer = http.DefaultClient
	}

	return &Client{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		doer:     doer,
		timeout:  cfg.Timeout,
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

// searchBody is the POST /search request body.
type searchBody struct {
	Collections []string                  `json:"collections,omitempty"`
	IDs         []string                  `json:"ids,omitempty"`
	BBox        []float64                 `json:"bbox,omitempty"`
	Datetime    string                    `json:"datetime,omitempty"`
	Query       map[string]map[string]any `json:"query,omitempty"`
	Limit       int                       `json:"limit,omitempty"`
}

// itemCollection is a page of search results.
type itemCollection struct {
	Type          string        `json:"type"`
	Features      []domain.Item `json:"features"`
	Links         []domain.Link `json:"links"`
	NumberMatched *int          `json:"numberMatched,omitempty"`
}

func (c *Client) newSearchBody(params domain.SearchParams) searchBody {
	body := searchBody{
		Collections: params.Collections,
		IDs:         params.IDs,
		Datetime:    params.Datetime,
		Limit:       params.Limit,
	}
	if body.Limit == 0 {
		body.Limit = c.pageSize
	}
	if params.MaxItems > 0 && params.MaxItems < body.Limit {
		body.Limit = params.MaxItems
	}
	if !params.BBox.IsZero() {
		body.BBox = params.BBox.Slice()
	}
	if params.MaxCloudCover != nil {
		body.Query = map[string]map[string]any{
			domain.PropCloudCover: {"lte": *params.MaxCloudCover},
		}
	}
	return body
}

// Search runs an item search and follows "next" links until MaxItems items
// are collected or the server stops paginating.
func (c *Client) Search(ctx context.Context, params domain.SearchParams) ([]domain.Item, error) {
	body, err := json.Marshal(c.newSearchBody(params))
	if err != nil {
		return nil, err
	}

	method, target := http.MethodPost, c.baseURL+"/search"
	var items []domain.Item

	for page := 1; ; page++ {
		var ic itemCollection
		if err := c.doJSON(ctx, method, target, body, &ic); err != nil {
			return nil, err
		}
		items = append(items, ic.Features...)

		c.logger.Debug("search page received", "page", page, "items", len(ic.Features), "total", len(items))

		if params.MaxItems > 0 && len(items) >= params.MaxItems {
			return items[:params.MaxItems], nil
		}

		next, ok := nextLink(ic.Links)
		if !ok || len(ic.Features) == 0 {
			return items, nil
		}
		if page >= maxPages {
			return nil, fmt.Errorf("search did not finish after %d pages", maxPages)
		}

		nextMethod := strings.ToUpper(next.Method)
		if nextMethod == "" {
			nextMethod = http.MethodGet
		}
		nextBody, err := pageBody(nextMethod, body, next)
		if err != nil {
			return nil, err
		}
		if next.Href == target && nextMethod == method && bytes.Equal(nextBody, body) {
			return items, nil
		}
		method, target, body = nextMethod, next.Href, nextBody
	}
}

func nextLink(links []domain.Link) (domain.Link, bool) {
	for _, l := range links {
		if l.Rel == "next" && l.Href != "" {
			return l, true
		}
	}
	return domain.Link{}, false
}

// pageBody returns the request body for the next page. A POST link body
// replaces the previous one, or is merged into it when the link says so.
func pageBody(method string, prev []byte, next domain.Link) ([]byte, error) {
	if method != http.MethodPost {
		return nil, nil
	}
	if len(next.Body) == 0 {
		return prev, nil
	}
	if !next.Merge {
		return next.Body, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(prev, &merged); err != nil {
		return nil, err
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(next.Body, &patch); err != nil {
		return nil, fmt.Errorf("decoding next link body: %w", err)
	}
	for k, v := range patch {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// GetItem fetches one item from a collection.
func (c *Client) GetItem(ctx context.Context, collection, id string) (*domain.Item, error) {
	target := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))

	var item domain.Item
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &item); err != nil {
		var httpErr *domain.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrItemNotFound, collection, id)
		}
		return nil, err
	}
	return &item, nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return &domain.TransportError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &domain.HTTPError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{URL: target, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
