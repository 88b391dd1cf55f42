// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate represents a geographic coordinate.
type Coordinate struct {
	X    float64 // Longitude or Easting
	Y    float64 // Latitude or Northing
	SRID int     // Spatial Reference ID
}

// NewWGS84Coordinate creates a WGS84 (EPSG:4326) coordinate.
func NewWGS84Coordinate(lon, lat float64) Coordinate {
	return Coordinate{X: lon, Y: lat, SRID: SRIDWGS84}
}

// Validate checks if the coordinate is valid for its SRID.
func (c Coordinate) Validate() error {
	if c.SRID == SRIDWGS84 {
		if c.X < -180 || c.X > 180 {
			return &ValidationError{
				Field:      "longitude",
				Value:      c.X,
				Constraint: "[-180, 180]",
				Message:    "longitude must be between -180 and 180",
			}
		}
		if c.Y < -90 || c.Y > 90 {
			return &ValidationError{
				Field:      "latitude",
				Value:      c.Y,
				Constraint: "[-90, 90]",
				Message:    "latitude must be between -90 and 90",
			}
		}
	}
	return nil
}

// Common SRID constants.
const (
	SRIDWGS84       = 4326  // WGS 84
	SRIDWebMercator = 3857  // Web Mercator
	SRIDAlbersUS    = 5070  // NAD83 / Conus Albers (Landsat ARD)
	SRIDUTM33N      = 32633 // WGS 84 / UTM zone 33N
)

// BBox is a WGS84 bounding box used for STAC searches.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// ParseBBox parses "minx,miny,maxx,maxy".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("%w: expected 4 comma-separated values, got %d", ErrInvalidBBox, len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: %q: %v", ErrInvalidBBox, p, err)
		}
		v[i] = f
	}

	b := BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks corner ordering and WGS84 ranges.
func (b BBox) Validate() error {
	if !b.IsValid() {
		return &ValidationError{
			Field:      "bbox",
			Value:      b.String(),
			Constraint: "min <= max",
			Message:    "bounding box corners are out of order",
		}
	}
	if err := NewWGS84Coordinate(b.MinX, b.MinY).Validate(); err != nil {
		return err
	}
	return NewWGS84Coordinate(b.MaxX, b.MaxY).Validate()
}

// IsValid checks if the box has valid dimensions.
func (b BBox) IsValid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// IsZero returns true if the box is unset.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Contains checks if a coordinate is within the box.
func (b BBox) Contains(c Coordinate) bool {
	return c.X >= b.MinX && c.X <= b.MaxX && c.Y >= b.MinY && c.Y <= b.MaxY
}

// Width returns the width of the box.
func (b BBox) Width() float64 {
	return math.Abs(b.MaxX - b.MinX)
}

// Height returns the height of the box.
func (b BBox) Height() float64 {
	return math.Abs(b.MaxY - b.MinY)
}

// Center returns the center coordinate of the box.
func (b BBox) Center() Coordinate {
	return NewWGS84Coordinate((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2)
}

// Slice returns the box in STAC order.
func (b BBox) Slice() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// String returns "minx,miny,maxx,maxy".
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinX, b.MinY, b.MaxX, b.MaxY)
}
