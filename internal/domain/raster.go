package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DataType is the pixel sample type of a raster band.
type DataType int

// Supported pixel data types.
const (
	DataTypeUnknown DataType = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

// String returns the numpy-style name of the data type.
func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "unknown"
}

// ParseDataType parses a data type name such as "uint16" or "float32".
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for dt, name := range dataTypeNames {
		if name == s {
			return dt, nil
		}
	}
	return DataTypeUnknown, fmt.Errorf("%w: %q", ErrInvalidDataType, s)
}

// Size returns the size of one sample in bytes.
func (d DataType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether the type is a floating point type.
func (d DataType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// IsSigned reports whether the type is a signed integer type.
func (d DataType) IsSigned() bool {
	return d == Int8 || d == Int16 || d == Int32
}

// Range returns the representable range of an integer type.
func (d DataType) Range() (lo, hi float64) {
	switch d {
	case Uint8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Cast converts v to the nearest value representable in the data type.
func (d DataType) Cast(v float64) float64 {
	switch {
	case d == Float64:
		return v
	case d == Float32:
		return float64(float32(v))
	case math.IsNaN(v):
		return 0
	}
	lo, hi := d.Range()
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Widest returns the type able to hold values of both a and b.
func Widest(a, b DataType) DataType {
	if a == b {
		return a
	}
	if a.IsFloat() || b.IsFloat() {
		// float32 holds integers up to 16 bits exactly
		if a == Float64 || b == Float64 || a.Size() == 4 && !a.IsFloat() || b.Size() == 4 && !b.IsFloat() {
			return Float64
		}
		return Float32
	}
	if a.IsSigned() == b.IsSigned() {
		if a.Size() >= b.Size() {
			return a
		}
		return b
	}

	signed, unsigned := a, b
	if b.IsSigned() {
		signed, unsigned = b, a
	}
	switch max(signed.Size(), 2*unsigned.Size()) {
	case 2:
		return Int16
	case 4:
		return Int32
	default:
		return Float64
	}
}

// GeoTransform is the six-parameter affine transform in GDAL order:
// originX, pixelWidth, rowRotation, originY, columnRotation, pixelHeight.
type GeoTransform [6]float64

// FromOrigin builds a north-up transform from the upper-left corner and pixel size.
func FromOrigin(west, north, xsize, ysize float64) GeoTransform {
	return GeoTransform{west, xsize, 0, north, 0, -ysize}
}

// IsRotated reports whether the transform has rotation terms.
func (g GeoTransform) IsRotated() bool {
	return g[2] != 0 || g[4] != 0
}

// Apply maps a pixel/line position to georeferenced coordinates.
func (g GeoTransform) Apply(col, row float64) (x, y float64) {
	return g[0] + col*g[1] + row*g[2], g[3] + col*g[4] + row*g[5]
}

// CRS identifies a coordinate reference system. WKT carries the definition
// read from a file so that it can be written back unchanged.
type CRS struct {
	EPSG int
	WKT  string
}

// NewCRS creates a CRS from an EPSG code.
func NewCRS(epsg int) CRS {
	return CRS{EPSG: epsg}
}

// ParseCRS parses "EPSG:<code>".
func ParseCRS(s string) (CRS, error) {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(s)), "EPSG:")
	if !ok {
		return CRS{}, &ValidationError{Field: "crs", Value: s, Constraint: "EPSG:<code>", Message: "unsupported CRS notation"}
	}
	epsg, err := strconv.Atoi(code)
	if err != nil || epsg <= 0 {
		return CRS{}, &ValidationError{Field: "crs", Value: s, Constraint: "EPSG:<code>", Message: "invalid EPSG code"}
	}
	return NewCRS(epsg), nil
}

// IsGeographic reports whether the EPSG code is a geographic 2D CRS.
func (c CRS) IsGeographic() bool {
	return c.EPSG >= 4000 && c.EPSG < 5000
}

// IsZero returns true if no CRS is set.
func (c CRS) IsZero() bool {
	return c.EPSG == 0 && c.WKT == ""
}

// Equal compares EPSG codes when both are known and WKT definitions otherwise.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 && o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	return c.EPSG == o.EPSG && c.WKT == o.WKT
}

// String returns "EPSG:<code>" or "unknown".
func (c CRS) String() string {
	if c.EPSG == 0 {
		return "unknown"
	}
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// Compression is the TIFF compression scheme of a raster file.
type Compression int

// Compression schemes.
const (
	CompressionNone Compression = iota
	CompressionDeflate
	CompressionLZW
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionLZW:
		return "lzw"
	default:
		return "none"
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "deflate", "zlib":
		return CompressionDeflate, nil
	case "lzw":
		return CompressionLZW, nil
	default:
		return CompressionNone, &ValidationError{Field: "compression", Value: s, Constraint: "none|deflate|lzw", Message: "unknown compression"}
	}
}

// MaxSamples bounds width*height*count of a raster held in memory.
const MaxSamples = 1 << 30

// Profile describes a GeoTIFF raster.
type Profile struct {
	Width       int
	Height      int
	Count       int
	DataType    DataType
	CRS         CRS
	Transform   GeoTransform
	Tiled       bool
	BlockWidth  int
	BlockHeight int
	NoData      *float64
	Compression Compression
}

// Validate checks the profile for internal consistency.
func (p Profile) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return &ValidationError{
			Field:      "shape",
			Value:      fmt.Sprintf("%dx%d", p.Width, p.Height),
			Constraint: "> 0",
			Message:    "raster dimensions must be positive",
		}
	}
	if p.Count <= 0 {
		return &ValidationError{Field: "count", Value: p.Count, Constraint: "> 0", Message: "raster must have at least one band"}
	}
	if !withinSamples(p.Width, p.Height, p.Count) {
		return &ValidationError{
			Field:      "shape",
			Value:      fmt.Sprintf("%dx%dx%d", p.Width, p.Height, p.Count),
			Constraint: fmt.Sprintf("<= %d samples", MaxSamples),
			Message:    "raster too large to hold in memory",
		}
	}
	if p.DataType.Size() == 0 {
		return &ValidationError{Field: "dtype", Value: p.DataType.String(), Constraint: "known type", Message: "unsupported data type"}
	}
	// zero block sizes leave the choice to the driver
	if p.Tiled && (p.BlockWidth%16 != 0 || p.BlockHeight%16 != 0 || p.BlockWidth < 0 || p.BlockHeight < 0) {
		return &ValidationError{
			Field:      "block",
			Value:      fmt.Sprintf("%dx%d", p.BlockWidth, p.BlockHeight),
			Constraint: "multiple of 16",
			Message:    "tile dimensions must be multiples of 16",
		}
	}
	return nil
}

// withinSamples reports whether the product of dims is positive and at most MaxSamples.
func withinSamples(dims ...int) bool {
	n := 1
	for _, d := range dims {
		if d <= 0 || d > MaxSamples/n {
			return false
		}
		n *= d
	}
	return true
}

// SameGrid reports whether two profiles share shape, CRS and transform.
func (p Profile) SameGrid(o Profile) bool {
	return p.Width == o.Width && p.Height == o.Height && p.Transform == o.Transform && p.CRS.Equal(o.CRS)
}

// IsNoData reports whether v equals the declared nodata value.
func (p Profile) IsNoData(v float64) bool {
	if p.NoData == nil {
		return false
	}
	if math.IsNaN(*p.NoData) {
		return math.IsNaN(v)
	}
	return v == *p.NoData
}

// Raster is a profile plus one row-major pixel buffer per band.
type Raster struct {
	Profile Profile
	Bands   [][]float64
}

// NewRaster allocates zeroed band buffers for the profile.
func NewRaster(p Profile) *Raster {
	bands := make([][]float64, p.Count)
	for i := range bands {
		bands[i] = make([]float64, p.Width*p.Height)
	}
	return &Raster{Profile: p, Bands: bands}
}

// Validate checks that every band buffer matches the profile shape.
func (r *Raster) Validate() error {
	if err := r.Profile.Validate(); err != nil {
		return err
	}
	if len(r.Bands) != r.Profile.Count {
		return &ValidationError{Field: "bands", Value: len(r.Bands), Constraint: fmt.Sprintf("== %d", r.Profile.Count), Message: "band count does not match profile"}
	}
	n := r.Profile.Width * r.Profile.Height
	for i, b := range r.Bands {
		if len(b) != n {
			return &ValidationError{
				Field:      fmt.Sprintf("band %d", i+1),
				Value:      len(b),
				Constraint: fmt.Sprintf("== %d", n),
				Message:    "pixel buffer does not match width*height",
			}
		}
	}
	return nil
}

// Band returns the 1-based band buffer.
func (r *Raster) Band(n int) ([]float64, error) {
	if n < 1 || n > len(r.Bands) {
		return nil, &ValidationError{Field: "band", Value: n, Constraint: fmt.Sprintf("[1, %d]", len(r.Bands)), Message: "band index out of range"}
	}
	return r.Bands[n-1], nil
}
