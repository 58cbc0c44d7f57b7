package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"banksia.lava.moe/internal/archive"
	"banksia.lava.moe/internal/logging"
	"banksia.lava.moe/internal/models"
)

// Config holds the poller's upstream settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Interval time.Duration
	Feeds    []models.Feed
}

// Update pairs a decoded realtime message with the feed it came from.
type Update struct {
	Feed    models.Feed
	Message *gtfsrtpb.FeedMessage
}

// Poller fetches every configured realtime endpoint concurrently on a
// fixed cadence, decodes each response, retains the most recent message
// per feed, broadcasts to subscribers, and archives raw payloads keyed by
// their header timestamp. Each endpoint is fault-isolated: a failing
// fetch is logged and skipped for the cycle without affecting siblings.
//
// A process runs a single Poller instance; Start may be called once.
type Poller struct {
	cfg    Config
	client *http.Client
	writer *archive.Writer
	worker *archive.Worker
	logger *slog.Logger

	started atomic.Bool

	mu     sync.RWMutex
	latest map[models.Feed]*gtfsrtpb.FeedMessage

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewPoller(cfg Config, client *http.Client, writer *archive.Writer, worker *archive.Worker, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Poller{
		cfg:          cfg,
		client:       client,
		writer:       writer,
		worker:       worker,
		logger:       logger.With(slog.String("component", "gtfsrt_poller")),
		latest:       make(map[models.Feed]*gtfsrtpb.FeedMessage),
		subs:         make(map[int]chan Update),
		shutdownChan: make(chan struct{}),
	}
}

// Start spawns the poll loop and the archive compression worker. It fails
// fast if the poller is already running.
func (p *Poller) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("poller already started")
	}

	p.worker.Start()
	p.wg.Add(1)
	go p.run()
	return nil
}

// Shutdown stops the poll loop and the compression worker.
func (p *Poller) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownChan)
		p.wg.Wait()
		p.worker.Shutdown()
	})
}

// LatestFor returns the most recent successfully decoded message for a
// feed, or nil if none has been received yet. Best-effort, not durable.
func (p *Poller) LatestFor(feed models.Feed) *gtfsrtpb.FeedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest[feed]
}

// Subscribe registers a consumer of decoded messages. The returned cancel
// func unregisters it. Delivery is best-effort: a subscriber that falls
// behind its channel buffer misses updates.
func (p *Poller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.pollCycle()
		select {
		case <-ticker.C:
		case <-p.shutdownChan:
			logging.LogOperation(p.logger, "shutting_down_poller")
			return
		}
	}
}

// pollCycle fans out one fetch per feed and waits for all of them.
// Fetches within a cycle are unordered relative to each other.
func (p *Poller) pollCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var g errgroup.Group
	for _, feed := range p.cfg.Feeds {
		feed := feed
		g.Go(func() error {
			p.pollFeed(ctx, feed)
			return nil
		})
	}
	_ = g.Wait()
}

// pollFeed fetches, decodes, and records one endpoint's message. All
// failures are logged with the feed identified and end the feed's cycle
// without affecting siblings.
func (p *Poller) pollFeed(ctx context.Context, feed models.Feed) {
	logger := p.logger.With(slog.String("feed", feed.Path()))

	data, err := p.fetch(ctx, feed)
	if err != nil {
		logging.LogError(logger, "realtime fetch failed", err)
		return
	}

	msg := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(data, msg); err != nil {
		logging.LogError(logger, "failed to decode feed message", err)
		return
	}

	p.mu.Lock()
	p.latest[feed] = msg
	p.mu.Unlock()

	p.broadcast(Update{Feed: feed, Message: msg})

	ts := msg.GetHeader().GetTimestamp()
	if ts == 0 {
		logging.LogOperation(logger, "feed_header_missing_timestamp")
		return
	}
	if err := p.writer.Write(feed, ts, data); err != nil {
		logging.LogError(logger, "failed to archive feed message", err)
	}
}

func (p *Poller) fetch(ctx context.Context, feed models.Feed) ([]byte, error) {
	url := p.cfg.BaseURL + "/" + feed.Path()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("KeyId", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(resp.Body, p.logger, "realtime_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	return io.ReadAll(resp.Body)
}

func (p *Poller) broadcast(u Update) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- u:
		default:
			// Slow subscriber; drop rather than stall the poll cycle.
		}
	}
}
