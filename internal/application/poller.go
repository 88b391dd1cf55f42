package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// ErrPollInProgress is returned by TriggerPoll while another poll runs.
var ErrPollInProgress = errors.New("poll already in progress")

// PollResult contains the result of one poll.
type PollResult struct {
	Found    int       `json:"found"`
	Fetched  int       `json:"fetched"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	PolledAt time.Time `json:"polled_at"`
	Error    string    `json:"error,omitempty"`
}

// PollerConfig holds scene poller configuration.
type PollerConfig struct {
	Params   domain.SearchParams
	Bands    []string
	OutDir   string
	Fetch    input.FetchOptions
	Interval time.Duration
}

// ScenePoller periodically searches the catalog and fetches scenes not seen before.
type ScenePoller struct {
	scenes input.SceneService
	index  output.DownloadIndex
	cfg    PollerConfig
	logger *slog.Logger

	// Lifecycle management
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Prevents concurrent polls
	pollMu sync.Mutex
	seen   map[string]bool

	lastMu   sync.RWMutex
	last     PollResult
	hasPolls bool
}

// NewScenePoller creates a new scene poller.
func NewScenePoller(scenes input.SceneService, index output.DownloadIndex, cfg PollerConfig, logger *slog.Logger) *ScenePoller {
	if index == nil {
		index = output.NoOpIndex{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &ScenePoller{
		scenes: scenes,
		index:  index,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		seen:   make(map[string]bool),
	}
}

// Start polls once immediately and then on every interval until Stop or ctx is done.
func (p *ScenePoller) Start(ctx context.Context) {
	p.logger.Info("starting scene poller", "interval", p.cfg.Interval)

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *ScenePoller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scene poller stopped: context canceled")
			return
		case <-p.stopCh:
			p.logger.Info("scene poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop stops the poller and waits for a running poll to finish.
func (p *ScenePoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *ScenePoller) poll(ctx context.Context) {
	res, err := p.PollOnce(ctx)
	if err != nil {
		p.logger.Error("poll failed", "error", err)
		return
	}
	p.logger.Info("poll completed",
		"found", res.Found,
		"fetched", res.Fetched,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
}

// PollOnce searches and fetches every new scene. Fetch failures are counted
// and logged; the scene is retried on the next poll.
func (p *ScenePoller) PollOnce(ctx context.Context) (PollResult, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()
	return p.pollLocked(ctx)
}

// TriggerPoll runs a poll now unless one is already running.
func (p *ScenePoller) TriggerPoll(ctx context.Context) (PollResult, error) {
	if !p.pollMu.TryLock() {
		return PollResult{}, ErrPollInProgress
	}
	defer p.pollMu.Unlock()
	return p.pollLocked(ctx)
}

// LastResult returns the outcome of the most recent poll.
func (p *ScenePoller) LastResult() (PollResult, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last, p.hasPolls
}

// Interval returns the poll interval.
func (p *ScenePoller) Interval() time.Duration {
	return p.cfg.Interval
}

func (p *ScenePoller) pollLocked(ctx context.Context) (res PollResult, err error) {
	defer func() {
		last := res
		if err != nil {
			last.Error = err.Error()
		}
		if last.PolledAt.IsZero() {
			last.PolledAt = time.Now().UTC()
		}
		p.lastMu.Lock()
		p.last, p.hasPolls = last, true
		p.lastMu.Unlock()
	}()

	items, err := p.scenes.Search(ctx, p.cfg.Params)
	if err != nil {
		return PollResult{}, err
	}

	res = PollResult{Found: len(items), PolledAt: time.Now().UTC()}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sceneID := item.SceneID()
		if p.known(ctx, sceneID) {
			res.Skipped++
			continue
		}

		if _, err := p.scenes.FetchBands(ctx, item, p.cfg.Bands, p.cfg.OutDir, p.cfg.Fetch); err != nil {
			res.Failed++
			p.logger.Warn("fetching scene failed", "scene", sceneID, "error", err)
			continue
		}
		p.seen[sceneID] = true
		res.Fetched++
	}
	return res, nil
}

// known reports whether the scene was fetched before. A scene counts as
// fetched only when the index holds every configured band, so a scene that
// failed halfway is retried on the next poll.
func (p *ScenePoller) known(ctx context.Context, sceneID string) bool {
	if p.seen[sceneID] {
		return true
	}
	recs, err := p.index.List(ctx, sceneID)
	if err != nil {
		p.logger.Warn("index lookup failed", "scene", sceneID, "error", err)
		return false
	}
	if len(recs) == 0 {
		return false
	}

	have := make(map[string]bool, len(recs))
	for _, rec := range recs {
		have[rec.Band] = true
	}
	for _, band := range p.cfg.Bands {
		if !have[band] {
			p.logger.Debug("scene incomplete in index", "scene", sceneID, "missing", band)
			return false
		}
	}
	p.seen[sceneID] = true
	return true
}
