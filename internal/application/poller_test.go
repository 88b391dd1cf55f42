package application

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
)

func newTestPoller(fx *sceneFixture, bands []string, outDir string) *ScenePoller {
	return NewScenePoller(fx.svc, fx.index, PollerConfig{
		Bands:    bands,
		OutDir:   outDir,
		Interval: time.Hour,
	}, testLogger())
}

func TestScenePoller_PollOnce(t *testing.T) {
	fx := newSceneFixture(t)
	outDir := t.TempDir()
	p := newTestPoller(fx, []string{"red"}, outDir)

	res, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if res.Found != 1 || res.Fetched != 1 || res.Skipped != 0 {
		t.Errorf("first poll = %+v, want 1 fetched", res)
	}
	if len(fx.index.records) != 1 {
		t.Errorf("index records = %d, want 1", len(fx.index.records))
	}

	res, err = p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 0 || res.Skipped != 1 {
		t.Errorf("second poll = %+v, want 1 skipped", res)
	}
	if len(fx.session.requests) != 1 {
		t.Errorf("http requests = %d, want 1", len(fx.session.requests))
	}
}

func TestScenePoller_SkipsIndexedScenes(t *testing.T) {
	fx := newSceneFixture(t)
	fx.index.records = []domain.DownloadedAsset{{SceneID: sceneID, Band: "red"}}

	res, err := newTestPoller(fx, []string{"red"}, t.TempDir()).PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || len(fx.session.requests) != 0 {
		t.Errorf("poll = %+v with %d requests, want scene skipped", res, len(fx.session.requests))
	}
}

func TestScenePoller_SkipsOnlyCompleteScenes(t *testing.T) {
	tests := []struct {
		name    string
		indexed []string
		want    bool
	}{
		{"all bands", []string{"red", "nir08"}, true},
		{"one of two bands", []string{"red"}, false},
		{"other band only", []string{"nir08"}, false},
		{"nothing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newSceneFixture(t)
			for _, band := range tt.indexed {
				fx.index.records = append(fx.index.records, domain.DownloadedAsset{SceneID: sceneID, Band: band})
			}

			p := newTestPoller(fx, []string{"red", "nir08"}, t.TempDir())
			if got := p.known(context.Background(), sceneID); got != tt.want {
				t.Errorf("known() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScenePoller_RetriesPartiallyFetchedScene(t *testing.T) {
	fx := newSceneFixture(t)
	nir := fx.session.responses[nirHref]
	fx.session.responses[nirHref] = fakeResponse{status: http.StatusInternalServerError}

	p := newTestPoller(fx, []string{"red", "nir08"}, t.TempDir())

	res, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Fetched != 0 {
		t.Fatalf("first poll = %+v, want 1 failed", res)
	}
	if len(fx.index.records) != 1 || fx.index.records[0].Band != "red" {
		t.Fatalf("index after partial failure = %+v, want red only", fx.index.records)
	}

	fx.session.responses[nirHref] = nir
	res, err = p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 1 || res.Skipped != 0 {
		t.Errorf("second poll = %+v, want the scene fetched", res)
	}

	var nirRequests int
	for _, url := range fx.session.requests {
		if url == nirHref {
			nirRequests++
		}
	}
	if nirRequests != 2 {
		t.Errorf("nir08 requests = %d, want 2", nirRequests)
	}

	if res, _ := p.PollOnce(context.Background()); res.Skipped != 1 {
		t.Errorf("third poll = %+v, want the complete scene skipped", res)
	}
}

func TestScenePoller_Failures(t *testing.T) {
	fx := newSceneFixture(t)
	p := newTestPoller(fx, []string{"blue"}, t.TempDir())

	res, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Fetched != 0 {
		t.Errorf("poll = %+v, want 1 failed", res)
	}
	// failed scenes are retried
	if res, _ := p.PollOnce(context.Background()); res.Failed != 1 {
		t.Errorf("retry poll = %+v, want 1 failed", res)
	}

	fx.catalog.searchErr = errBoom
	if _, err := p.PollOnce(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("search error = %v, want errBoom", err)
	}
}

func TestScenePoller_StartStop(t *testing.T) {
	fx := newSceneFixture(t)
	p := newTestPoller(fx, []string{"red"}, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	p.Stop()
	// Stop is idempotent
	p.Stop()

	if len(fx.index.records) != 1 {
		t.Errorf("index records after start = %d, want the immediate poll", len(fx.index.records))
	}
}

func TestScenePoller_LastResultAndTrigger(t *testing.T) {
	fx := newSceneFixture(t)
	p := newTestPoller(fx, []string{"red"}, t.TempDir())

	if _, ok := p.LastResult(); ok {
		t.Fatal("LastResult() before any poll reported a result")
	}

	res, err := p.TriggerPoll(context.Background())
	if err != nil {
		t.Fatalf("TriggerPoll() error = %v", err)
	}
	last, ok := p.LastResult()
	if !ok || last.Fetched != res.Fetched || last.Error != "" {
		t.Errorf("LastResult() = %+v, %v, want %+v", last, ok, res)
	}

	fx.catalog.searchErr = errBoom
	_, _ = p.PollOnce(context.Background())
	if last, _ := p.LastResult(); last.Error == "" || last.PolledAt.IsZero() {
		t.Errorf("LastResult() after failure = %+v, want error recorded", last)
	}

	p.pollMu.Lock()
	_, err = p.TriggerPoll(context.Background())
	p.pollMu.Unlock()
	if !errors.Is(err, ErrPollInProgress) {
		t.Errorf("TriggerPoll() during poll error = %v, want ErrPollInProgress", err)
	}
}
