package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/landsatlook/internal/adapters/geotiff"
	"github.com/jobrunner/landsatlook/internal/domain"
)

func TestLinearName(t *testing.T) {
	tests := map[string]string{
		"/in/LC08_B4.TIF":    "LC08_B4_linear.tif",
		"scene.tiff":         "scene_linear.tif",
		"noext":              "noext_linear.tif",
		"/a/b/x.y.tif":       "x.y_linear.tif",
		"already_linear.tif": "already_linear_linear.tif",
	}
	for in, want := range tests {
		if got := LinearName(in); got != want {
			t.Errorf("LinearName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWatchConverter_Handle(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "linear")

	src := filepath.Join(inDir, "LC08_B4.TIF")
	writeFixture(t, src, constantRaster(domain.Float32, 20))

	svc := NewRasterService(geotiff.NewStore(), nil, testLogger(), RasterServiceConfig{})
	conv := NewWatchConverter(svc, outDir, testLogger())

	dst, err := conv.Handle(context.Background(), src)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if dst != filepath.Join(outDir, "LC08_B4_linear.tif") {
		t.Errorf("dst = %s", dst)
	}

	out, err := geotiff.NewStore().Read(dst)
	if err != nil {
		t.Fatal(err)
	}
	band, _ := out.Band(1)
	if band[0] != 100 {
		t.Errorf("pixel = %v, want 100", band[0])
	}
}

func TestWatchConverter_SkipsOutputs(t *testing.T) {
	conv := NewWatchConverter(NewRasterService(newMemoryStore(), nil, testLogger(), RasterServiceConfig{}), t.TempDir(), testLogger())

	dst, err := conv.Handle(context.Background(), "/watched/LC08_B4_linear.tif")
	if err != nil || dst != "" {
		t.Errorf("Handle(linear) = %q, %v; want skip", dst, err)
	}
}

func TestWatchConverter_Errors(t *testing.T) {
	svc := NewRasterService(geotiff.NewStore(), nil, testLogger(), RasterServiceConfig{})
	conv := NewWatchConverter(svc, t.TempDir(), testLogger())

	_, err := conv.Handle(context.Background(), filepath.Join(t.TempDir(), "gone.tif"))
	if !errors.Is(err, domain.ErrRasterIO) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}

	corrupt := filepath.Join(t.TempDir(), "corrupt.tif")
	if err := os.WriteFile(corrupt, []byte("not a tiff"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := conv.Handle(context.Background(), corrupt); !errors.Is(err, domain.ErrRasterDecode) {
		t.Errorf("corrupt file error = %v, want ErrRasterDecode", err)
	}
}
