package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Property keys used by Landsat STAC items.
const (
	PropSceneID    = "landsat:scene_id"
	PropCloudCover = "eo:cloud_cover"
	PropDatetime   = "datetime"
	PropPlatform   = "platform"
)

// Asset is a single file referenced by a STAC item.
type Asset struct {
	Href      string               `json:"href" yaml:"href"`
	Type      string               `json:"type,omitempty" yaml:"type,omitempty"`
	Title     string               `json:"title,omitempty" yaml:"title,omitempty"`
	Roles     []string             `json:"roles,omitempty" yaml:"roles,omitempty"`
	Alternate map[string]Alternate `json:"alternate,omitempty" yaml:"alternate,omitempty"`
}

// Alternate is an alternate location for an asset (e.g. an S3 URI).
type Alternate struct {
	Href string `json:"href" yaml:"href"`
}

// AlternateHref returns the href of the named alternate location.
func (a Asset) AlternateHref(name string) (string, bool) {
	alt, ok := a.Alternate[name]
	if !ok || alt.Href == "" {
		return "", false
	}
	return alt.Href, true
}

// Link is a STAC link object.
type Link struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Type   string          `json:"type,omitempty"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Merge  bool            `json:"merge,omitempty"`
}

// Item is a STAC item describing one scene.
type Item struct {
	ID         string           `json:"id" yaml:"id"`
	Collection string           `json:"collection,omitempty" yaml:"collection,omitempty"`
	BBox       []float64        `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Geometry   json.RawMessage  `json:"geometry,omitempty" yaml:"-"`
	Properties map[string]any   `json:"properties" yaml:"properties"`
	Assets     map[string]Asset `json:"assets" yaml:"assets"`
	Links      []Link           `json:"links,omitempty" yaml:"-"`
}

// SceneID returns the Landsat scene id, falling back to the item id.
func (i Item) SceneID() string {
	if v, ok := i.Properties[PropSceneID].(string); ok && v != "" {
		return v
	}
	return i.ID
}

// Asset returns the asset registered under band.
func (i Item) Asset(band string) (Asset, error) {
	a, ok := i.Assets[band]
	if !ok || a.Href == "" {
		return Asset{}, fmt.Errorf("%w: %q in item %s", ErrAssetNotFound, band, i.ID)
	}
	return a, nil
}

// AssetHref returns the href of the asset registered under band.
func (i Item) AssetHref(band string) (string, error) {
	a, err := i.Asset(band)
	if err != nil {
		return "", err
	}
	return a.Href, nil
}

// CloudCover returns eo:cloud_cover if present.
func (i Item) CloudCover() (float64, bool) {
	v, ok := i.Properties[PropCloudCover].(float64)
	return v, ok
}

// Datetime returns the acquisition time if present.
func (i Item) Datetime() (time.Time, bool) {
	s, ok := i.Properties[PropDatetime].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Platform returns the platform property (e.g. "LANDSAT_9").
func (i Item) Platform() string {
	s, _ := i.Properties[PropPlatform].(string)
	return s
}

// BandNames returns the asset keys of the item.
func (i Item) BandNames() []string {
	names := make([]string, 0, len(i.Assets))
	for k := range i.Assets {
		names = append(names, k)
	}
	return names
}

// SearchParams holds STAC item search parameters.
type SearchParams struct {
	Collections   []string
	IDs           []string
	BBox          BBox
	Datetime      string // RFC 3339 instant or interval, e.g. "2024-01-01/2024-02-01"
	MaxCloudCover *float64
	Limit         int // page size
	MaxItems      int // overall cap; 0 means no cap
}

// Validate checks the search parameters.
func (p SearchParams) Validate() error {
	if !p.BBox.IsZero() {
		if err := p.BBox.Validate(); err != nil {
			return err
		}
	}
	if p.MaxCloudCover != nil && (*p.MaxCloudCover < 0 || *p.MaxCloudCover > 100) {
		return &ValidationError{Field: "max_cloud_cover", Value: *p.MaxCloudCover, Constraint: "[0, 100]", Message: "cloud cover is a percentage"}
	}
	if p.Limit < 0 || p.MaxItems < 0 {
		return &ValidationError{Field: "limit", Value: p.Limit, Constraint: ">= 0", Message: "limits must not be negative"}
	}
	return nil
}

// DownloadedAsset describes a band fetched to local disk.
type DownloadedAsset struct {
	SceneID   string    `json:"scene_id" yaml:"scene_id"`
	Band      string    `json:"band" yaml:"band"`
	Href      string    `json:"href" yaml:"href"`
	Path      string    `json:"path" yaml:"path"`
	Bytes     int64     `json:"bytes" yaml:"bytes"`
	Converted string    `json:"converted,omitempty" yaml:"converted,omitempty"`
	Published string    `json:"published,omitempty" yaml:"published,omitempty"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// AssetFileName returns "<sceneID>_<band><ext>" using the href extension, ".tif" by default.
func AssetFileName(sceneID, band, href string) string {
	ext := path.Ext(strings.SplitN(href, "?", 2)[0])
	if ext == "" || len(ext) > 6 {
		ext = ".tif"
	}
	return sceneID + "_" + band + ext
}
