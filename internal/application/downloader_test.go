package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
)

const testURL = "https://landsatlook.usgs.gov/data/collection02/level-2/LC08_B4.TIF"

func TestDownloader_Download(t *testing.T) {
	payload := bytes.Repeat([]byte("landsat"), 1000)

	tests := []struct {
		name      string
		body      []byte
		chunkSize int
	}{
		{"single chunk", payload, 0},
		{"many small chunks", payload, 7},
		{"chunk size larger than body", payload, 1 << 16},
		{"empty body", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession(map[string]fakeResponse{
				testURL: {status: http.StatusOK, body: tt.body},
			})
			metrics := newCountingMetrics()
			d := NewDownloader(metrics, testLogger())
			dest := filepath.Join(t.TempDir(), "band.tif")

			n, err := d.Download(context.Background(), session, testURL, dest, input.DownloadOptions{ChunkSize: tt.chunkSize})
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			if n != int64(len(tt.body)) {
				t.Errorf("Download() = %d bytes, want %d", n, len(tt.body))
			}

			got, err := os.ReadFile(dest)
			if err != nil {
				t.Fatalf("destination not created: %v", err)
			}
			if !bytes.Equal(got, tt.body) {
				t.Errorf("destination holds %d bytes that differ from the %d served", len(got), len(tt.body))
			}
			if !session.allClosed() {
				t.Error("response body was not closed")
			}
			if metrics.downloads[true] != 1 || metrics.bytes != int64(len(tt.body)) {
				t.Errorf("metrics = %+v", metrics)
			}
		})
	}
}

func TestDownloader_DefaultTimeout(t *testing.T) {
	session := newFakeSession(map[string]fakeResponse{testURL: {status: http.StatusOK, body: []byte("x")}})
	d := NewDownloader(nil, testLogger())

	if _, err := d.Download(context.Background(), session, testURL, filepath.Join(t.TempDir(), "f"), input.DownloadOptions{}); err != nil {
		t.Fatal(err)
	}
	if session.timeouts[0] != DefaultDownloadTimeout {
		t.Errorf("timeout = %v, want %v", session.timeouts[0], DefaultDownloadTimeout)
	}

	if _, err := d.Download(context.Background(), session, testURL, filepath.Join(t.TempDir(), "g"), input.DownloadOptions{Timeout: 5 * time.Second}); err != nil {
		t.Fatal(err)
	}
	if session.timeouts[1] != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", session.timeouts[1])
	}
}

func TestDownloader_HTTPError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			session := newFakeSession(map[string]fakeResponse{
				testURL: {status: status, body: []byte("<html>error</html>")},
			})
			metrics := newCountingMetrics()
			d := NewDownloader(metrics, testLogger())

			_, err := d.Download(context.Background(), session, testURL, filepath.Join(t.TempDir(), "band.tif"), input.DownloadOptions{})
			if err == nil {
				t.Fatal("Download() should fail on error status")
			}

			var httpErr *domain.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("error = %T, want *domain.HTTPError", err)
			}
			if httpErr.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, status)
			}
			if !errors.Is(err, domain.ErrTransport) {
				t.Error("HTTP errors should match ErrTransport")
			}
			if !session.allClosed() {
				t.Error("response body was not closed")
			}
			if metrics.downloads[false] != 1 {
				t.Errorf("failed downloads = %d, want 1", metrics.downloads[false])
			}
		})
	}
}

func TestDownloader_MidStreamFailure(t *testing.T) {
	partial := []byte("first half of the band")
	session := newFakeSession(map[string]fakeResponse{
		testURL: {status: http.StatusOK, body: partial, failErr: io.ErrUnexpectedEOF},
	})
	d := NewDownloader(nil, testLogger())
	dest := filepath.Join(t.TempDir(), "band.tif")

	n, err := d.Download(context.Background(), session, testURL, dest, input.DownloadOptions{ChunkSize: 4})
	if !errors.Is(err, domain.ErrTransport) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("error = %v, want transport error wrapping io.ErrUnexpectedEOF", err)
	}
	if n != int64(len(partial)) {
		t.Errorf("bytes written = %d, want %d", n, len(partial))
	}

	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, partial) {
		t.Errorf("partial file = %q, want %q", got, partial)
	}
	if !session.allClosed() {
		t.Error("response body was not closed")
	}
}

func TestDownloader_SessionError(t *testing.T) {
	session := newFakeSession(nil)
	session.getErr = errBoom
	d := NewDownloader(nil, testLogger())

	_, err := d.Download(context.Background(), session, testURL, filepath.Join(t.TempDir(), "f"), input.DownloadOptions{})
	if !errors.Is(err, domain.ErrTransport) || !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want transport error wrapping errBoom", err)
	}
}

func TestDownloader_InvalidArguments(t *testing.T) {
	d := NewDownloader(nil, testLogger())
	session := newFakeSession(nil)

	if _, err := d.Download(context.Background(), session, "", "/tmp/x", input.DownloadOptions{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty url error = %v, want ErrInvalidInput", err)
	}
	if _, err := d.Download(context.Background(), session, testURL, "", input.DownloadOptions{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty dest error = %v, want ErrInvalidInput", err)
	}
	if len(session.requests) != 0 {
		t.Errorf("invalid calls should not reach the session, got %v", session.requests)
	}
}

func TestDownloader_MissingParentDirectory(t *testing.T) {
	session := newFakeSession(map[string]fakeResponse{testURL: {status: http.StatusOK, body: []byte("x")}})
	d := NewDownloader(nil, testLogger())
	dest := filepath.Join(t.TempDir(), "missing", "band.tif")

	_, err := d.Download(context.Background(), session, testURL, dest, input.DownloadOptions{})
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want StorageError wrapping os.ErrNotExist", err)
	}
	if !session.allClosed() {
		t.Error("response body was not closed")
	}
}

func TestDownloader_TruncatesExistingFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "band.tif")
	if err := os.WriteFile(dest, []byte(strings.Repeat("old", 100)), 0o600); err != nil {
		t.Fatal(err)
	}
	session := newFakeSession(map[string]fakeResponse{testURL: {status: http.StatusOK, body: []byte("new")}})

	if _, err := NewDownloader(nil, testLogger()).Download(context.Background(), session, testURL, dest, input.DownloadOptions{}); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(dest); string(got) != "new" {
		t.Errorf("file = %q, want %q", got, "new")
	}
}

type progressRecorder struct {
	bytes.Buffer
	max int64
}

func (p *progressRecorder) ChangeMax64(n int64) { p.max = n }

func TestDownloader_Progress(t *testing.T) {
	payload := []byte("0123456789")
	session := newFakeSession(map[string]fakeResponse{testURL: {status: http.StatusOK, body: payload}})
	progress := &progressRecorder{}

	_, err := NewDownloader(nil, testLogger()).Download(context.Background(), session, testURL,
		filepath.Join(t.TempDir(), "f"), input.DownloadOptions{ChunkSize: 3, Progress: progress})
	if err != nil {
		t.Fatal(err)
	}
	if progress.String() != string(payload) {
		t.Errorf("progress saw %q, want %q", progress.String(), payload)
	}
	if progress.max != int64(len(payload)) {
		t.Errorf("progress max = %d, want %d", progress.max, len(payload))
	}
}

func TestDownloader_LocalFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.tif")
	content := make([]byte, 3*DefaultChunkSize/2)
	for i := range content {
		content[i] = byte(i * 31)
	}
	if err := os.WriteFile(original, content, 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := os.ReadFile(original)
	if err != nil {
		t.Fatal(err)
	}
	session := newFakeSession(map[string]fakeResponse{testURL: {status: http.StatusOK, body: src}})
	dest := filepath.Join(dir, "copy.tif")

	if _, err := NewDownloader(nil, testLogger()).Download(context.Background(), session, testURL, dest, input.DownloadOptions{}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("round-tripped bytes differ from the original file")
	}
}

func TestIterContent_StopsEarly(t *testing.T) {
	var seen int
	for chunk, err := range iterContent(strings.NewReader("abcdefghij"), 4) {
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) > 4 {
			t.Errorf("chunk of %d bytes exceeds size 4", len(chunk))
		}
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("iterations = %d, want 2", seen)
	}
}

func TestRaiseForStatus(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{200, false},
		{204, false},
		{299, false},
		{301, true},
		{403, true},
		{503, true},
	}
	for _, tt := range tests {
		err := RaiseForStatus(&http.Response{StatusCode: tt.status}, testURL)
		if (err != nil) != tt.wantErr {
			t.Errorf("RaiseForStatus(%d) error = %v, wantErr %v", tt.status, err, tt.wantErr)
		}
	}
}
