package geotiff

import (
	"fmt"
	"strconv"

	"github.com/airbusgeo/godal"

	"github.com/jobrunner/landsatlook/internal/domain"
)

var gdalTypes = map[domain.DataType]godal.DataType{
	domain.Uint8:   godal.Byte,
	domain.Int8:    godal.Byte, // with PIXELTYPE=SIGNEDBYTE
	domain.Uint16:  godal.UInt16,
	domain.Int16:   godal.Int16,
	domain.Uint32:  godal.UInt32,
	domain.Int32:   godal.Int32,
	domain.Float32: godal.Float32,
	domain.Float64: godal.Float64,
}

// dataTypeOf maps the GDAL type of a band to the domain type. Signed bytes
// are stored as Byte with a PIXELTYPE marker.
func dataTypeOf(dt godal.DataType, band godal.Band) (domain.DataType, error) {
	switch dt {
	case godal.Byte:
		if band.Metadata("PIXELTYPE", godal.Domain("IMAGE_STRUCTURE")) == "SIGNEDBYTE" {
			return domain.Int8, nil
		}
		return domain.Uint8, nil
	case godal.UInt16:
		return domain.Uint16, nil
	case godal.Int16:
		return domain.Int16, nil
	case godal.UInt32:
		return domain.Uint32, nil
	case godal.Int32:
		return domain.Int32, nil
	case godal.Float32:
		return domain.Float32, nil
	case godal.Float64:
		return domain.Float64, nil
	default:
		return domain.DataTypeUnknown, fmt.Errorf("sample type %v: %w", dt, domain.ErrUnsupportedEncoding)
	}
}

// createOptions returns the GDAL type and GTiff creation options for a profile.
func createOptions(p domain.Profile) (godal.DataType, []string, error) {
	dt, ok := gdalTypes[p.DataType]
	if !ok {
		return godal.Unknown, nil, fmt.Errorf("data type %s: %w", p.DataType, domain.ErrUnsupportedEncoding)
	}

	var opts []string
	if p.DataType == domain.Int8 {
		opts = append(opts, "PIXELTYPE=SIGNEDBYTE")
	}
	if p.Count > 1 {
		opts = append(opts, "INTERLEAVE=BAND")
	}
	if p.Tiled {
		opts = append(opts, "TILED=YES")
		// zero leaves the driver default of 256
		if p.BlockWidth > 0 {
			opts = append(opts, "BLOCKXSIZE="+strconv.Itoa(p.BlockWidth))
		}
		if p.BlockHeight > 0 {
			opts = append(opts, "BLOCKYSIZE="+strconv.Itoa(p.BlockHeight))
		}
	}

	switch p.Compression {
	case domain.CompressionDeflate:
		opts = append(opts, "COMPRESS=DEFLATE")
	case domain.CompressionLZW:
		opts = append(opts, "COMPRESS=LZW")
	}
	return dt, opts, nil
}
