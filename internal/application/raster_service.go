package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// RasterService applies pixel transforms and stacks bands.
type RasterService struct {
	store    output.RasterStore
	metrics  output.MetricsCollector
	logger   *slog.Logger
	defaults input.ConvertOptions
}

// RasterServiceConfig holds defaults for dB-to-linear conversion.
type RasterServiceConfig struct {
	DataType       domain.DataType
	PreserveNoData bool
}

var _ input.RasterTransformer = (*RasterService)(nil)

// NewRasterService creates a new raster service.
func NewRasterService(store output.RasterStore, metrics output.MetricsCollector, logger *slog.Logger, cfg RasterServiceConfig) *RasterService {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &RasterService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		defaults: input.ConvertOptions{
			Operation:      string(domain.OpDBToLinear),
			DataType:       cfg.DataType,
			PreserveNoData: cfg.PreserveNoData,
		},
	}
}

// ConvertDBToLinear writes 10^(v/10) of every pixel of src to dst.
func (s *RasterService) ConvertDBToLinear(ctx context.Context, src, dst string) error {
	return s.ApplyPixelTransform(ctx, src, dst, domain.DBToLinear, s.defaults)
}

// ApplyPixelTransform reads the single band of src, applies fn to every pixel
// and writes the result to dst with the source grid and CRS.
// Every pixel goes through fn, nodata included; opts.PreserveNoData copies
// pixels equal to the declared nodata value unchanged instead.
func (s *RasterService) ApplyPixelTransform(ctx context.Context, src, dst string, fn domain.PixelFunc, opts input.ConvertOptions) (err error) {
	if fn == nil {
		return &domain.ValidationError{Field: "fn", Value: nil, Constraint: "non-nil", Message: "pixel function is required"}
	}
	if opts.Operation == "" {
		opts.Operation = "custom"
	}

	start := time.Now()
	defer func() {
		s.metrics.IncConversions(opts.Operation, err == nil)
		s.metrics.ObserveConversionDuration(opts.Operation, time.Since(start))
	}()

	in, err := s.store.Read(src)
	if err != nil {
		return err
	}
	if in.Profile.Count != 1 {
		return &domain.ValidationError{
			Field:      "count",
			Value:      in.Profile.Count,
			Constraint: "== 1",
			Message:    fmt.Sprintf("%s has %d bands, pixel transforms expect a single band", src, in.Profile.Count),
		}
	}

	p := in.Profile
	p.DataType = outputType(opts.DataType, p.DataType)
	out := domain.NewRaster(p)

	srcBand, dstBand := in.Bands[0], out.Bands[0]
	keepNoData := p.NoData != nil && opts.PreserveNoData
	for row := 0; row < p.Height; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := row * p.Width; i < (row+1)*p.Width; i++ {
			v := srcBand[i]
			if keepNoData && p.IsNoData(v) {
				dstBand[i] = v
				continue
			}
			dstBand[i] = fn(v)
		}
	}

	if err := s.store.Write(dst, out); err != nil {
		return err
	}

	s.logger.Debug("raster transformed",
		"operation", opts.Operation,
		"src", src,
		"dst", dst,
		"dtype", p.DataType.String(),
		"duration", time.Since(start),
	)
	return nil
}

// outputType promotes to float32 unless the source is float64 or an override is given.
func outputType(override, src domain.DataType) domain.DataType {
	if override != domain.DataTypeUnknown {
		return override
	}
	if src == domain.Float64 {
		return domain.Float64
	}
	return domain.Float32
}

// Stack merges single-band rasters sharing one grid into a multi-band raster.
// Bands keep the order of srcs and use the widest input data type.
func (s *RasterService) Stack(ctx context.Context, srcs []string, dst string) (err error) {
	if len(srcs) == 0 {
		return &domain.ValidationError{Field: "srcs", Value: 0, Constraint: ">= 1", Message: "at least one source raster is required"}
	}

	const op = "stack"
	start := time.Now()
	defer func() {
		s.metrics.IncConversions(op, err == nil)
		s.metrics.ObserveConversionDuration(op, time.Since(start))
	}()

	var p domain.Profile
	bands := make([][]float64, 0, len(srcs))
	for i, path := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := s.store.Read(path)
		if err != nil {
			return err
		}
		if r.Profile.Count != 1 {
			return &domain.ValidationError{
				Field:      "count",
				Value:      r.Profile.Count,
				Constraint: "== 1",
				Message:    fmt.Sprintf("%s has %d bands, only single-band rasters can be stacked", path, r.Profile.Count),
			}
		}

		if i == 0 {
			p = r.Profile
		} else {
			if !p.SameGrid(r.Profile) {
				return fmt.Errorf("%s does not match %s: %w", path, srcs[0], domain.ErrGridMismatch)
			}
			p.DataType = domain.Widest(p.DataType, r.Profile.DataType)
			if !sameNoData(p.NoData, r.Profile.NoData) {
				p.NoData = nil
			}
		}
		bands = append(bands, r.Bands[0])
	}

	p.Count = len(bands)
	out := &domain.Raster{Profile: p, Bands: bands}
	if err := s.store.Write(dst, out); err != nil {
		return err
	}

	s.logger.Debug("rasters stacked", "count", len(bands), "dst", dst, "dtype", p.DataType.String())
	return nil
}

func sameNoData(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	p := domain.Profile{NoData: a}
	return p.IsNoData(*b)
}
