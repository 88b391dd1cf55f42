package domain

import (
	"errors"
	"math"
	"testing"
)

func testItem() Item {
	return Item{
		ID:         "LC09_L2SP_034032_20240105_02_T1_SR",
		Collection: "landsat-c2l2-sr",
		Properties: map[string]any{
			PropSceneID:    "LC90340322024005LGN00",
			PropCloudCover: 12.5,
			PropDatetime:   "2024-01-05T17:40:12Z",
			PropPlatform:   "LANDSAT_9",
		},
		Assets: map[string]Asset{
			"blue": {
				Href: "https://landsatlook.usgs.gov/data/collection02/level-2/B2.TIF",
				Alternate: map[string]Alternate{
					"s3": {Href: "s3://usgs-landsat/collection02/level-2/B2.TIF"},
				},
			},
			"green": {Href: "/tmp/scene_green.tif"},
		},
	}
}

func TestItemSceneID(t *testing.T) {
	item := testItem()
	if got := item.SceneID(); got != "LC90340322024005LGN00" {
		t.Errorf("SceneID() = %q", got)
	}

	delete(item.Properties, PropSceneID)
	if got := item.SceneID(); got != item.ID {
		t.Errorf("SceneID() fallback = %q, want %q", got, item.ID)
	}
}

func TestItemAssetHref(t *testing.T) {
	item := testItem()

	tests := []struct {
		band    string
		want    string
		wantErr error
	}{
		{"blue", "https://landsatlook.usgs.gov/data/collection02/level-2/B2.TIF", nil},
		{"green", "/tmp/scene_green.tif", nil},
		{"swir22", "", ErrAssetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.band, func(t *testing.T) {
			got, err := item.AssetHref(tt.band)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AssetHref(%q) error = %v, want %v", tt.band, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AssetHref(%q) = %q, want %q", tt.band, got, tt.want)
			}
		})
	}

	if !errors.Is(ErrAssetNotFound, ErrNotFound) {
		t.Error("ErrAssetNotFound should wrap ErrNotFound")
	}
}

func TestItemProperties(t *testing.T) {
	item := testItem()

	cc, ok := item.CloudCover()
	if !ok || cc != 12.5 {
		t.Errorf("CloudCover() = %v, %v", cc, ok)
	}

	dt, ok := item.Datetime()
	if !ok || dt.Year() != 2024 || dt.YearDay() != 5 {
		t.Errorf("Datetime() = %v, %v", dt, ok)
	}

	if item.Platform() != "LANDSAT_9" {
		t.Errorf("Platform() = %q", item.Platform())
	}

	alt, ok := item.Assets["blue"].AlternateHref("s3")
	if !ok || alt != "s3://usgs-landsat/collection02/level-2/B2.TIF" {
		t.Errorf("AlternateHref(s3) = %q, %v", alt, ok)
	}
	if _, ok := item.Assets["green"].AlternateHref("s3"); ok {
		t.Error("green asset has no alternate")
	}
	if len(item.BandNames()) != 2 {
		t.Errorf("BandNames() = %v", item.BandNames())
	}
}

func TestSearchParamsValidate(t *testing.T) {
	over := 120.0
	ok := 20.0

	tests := []struct {
		name    string
		params  SearchParams
		wantErr bool
	}{
		{"empty", SearchParams{}, false},
		{"with cloud cover", SearchParams{MaxCloudCover: &ok}, false},
		{"cloud cover above 100", SearchParams{MaxCloudCover: &over}, true},
		{"bad bbox", SearchParams{BBox: BBox{MinX: 5, MaxX: 1, MinY: 0, MaxY: 1}}, true},
		{"negative limit", SearchParams{Limit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssetFileName(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://host/path/B2.TIF", "S_blue.TIF"},
		{"https://host/path/B2.tif?token=abc", "S_blue.tif"},
		{"https://host/path/download", "S_blue.tif"},
		{"/local/scene_blue.tif", "S_blue.tif"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := AssetFileName("S", "blue", tt.href); got != tt.want {
				t.Errorf("AssetFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPixelOps(t *testing.T) {
	if got := DBToLinear(10); math.Abs(got-10) > 1e-9 {
		t.Errorf("DBToLinear(10) = %v, want 10", got)
	}
	if got := DBToLinear(0); got != 1 {
		t.Errorf("DBToLinear(0) = %v, want 1", got)
	}
	if got := LinearToDB(100); math.Abs(got-20) > 1e-9 {
		t.Errorf("LinearToDB(100) = %v, want 20", got)
	}

	for _, v := range []float64{-25, -3.2, 0, 7, 30} {
		if got := LinearToDB(DBToLinear(v)); math.Abs(got-v) > 1e-9 {
			t.Errorf("round trip of %v = %v", v, got)
		}
	}

	fn, err := OpDBToLinear.Func()
	if err != nil || fn(20) != 100 {
		t.Errorf("OpDBToLinear.Func() = %v", err)
	}
	if _, err := PixelOp("sqrt").Func(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unknown op should be unsupported, got %v", err)
	}
}
