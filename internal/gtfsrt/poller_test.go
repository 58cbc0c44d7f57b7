package gtfsrt

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"banksia.lava.moe/internal/archive"
	"banksia.lava.moe/internal/models"
)

func marshalFeedMessage(t *testing.T, ts uint64, entityIDs ...string) []byte {
	t.Helper()

	msg := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
	}
	if ts != 0 {
		msg.Header.Timestamp = proto.Uint64(ts)
	}
	for _, id := range entityIDs {
		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{Id: proto.String(id)})
	}

	data, err := proto.Marshal(msg)
	require.NoError(t, err)
	return data
}

func newTestPoller(t *testing.T, baseURL string, feeds []models.Feed) (*Poller, string) {
	t.Helper()

	root := t.TempDir()
	worker := archive.NewWorker(slog.Default())
	writer := archive.NewWriter(root, worker, slog.Default())

	p := NewPoller(Config{
		BaseURL:  baseURL,
		APIKey:   "test-key",
		Interval: time.Hour,
		Feeds:    feeds,
	}, &http.Client{Timeout: 5 * time.Second}, writer, worker, slog.Default())
	return p, root
}

func TestPollCycleRecordsAndArchives(t *testing.T) {
	const ts = uint64(1754040600)

	var gotKeyID string
	mux := http.NewServeMux()
	mux.HandleFunc("/metro/trip-updates", func(w http.ResponseWriter, r *http.Request) {
		gotKeyID = r.Header.Get("KeyId")
		_, _ = w.Write(marshalFeedMessage(t, ts, "entity-1", "entity-2"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	feed := models.Feed{Mode: models.ModeMetro, Kind: models.KindTripUpdates}
	p, root := newTestPoller(t, srv.URL, []models.Feed{feed})

	p.pollCycle()

	assert.Equal(t, "test-key", gotKeyID)

	latest := p.LatestFor(feed)
	require.NotNil(t, latest)
	assert.Equal(t, ts, latest.GetHeader().GetTimestamp())
	assert.Len(t, latest.GetEntity(), 2)

	archived := filepath.Join(root, "metro", "trip-updates",
		archive.PartitionKey(ts), fmt.Sprintf("%d.proto", ts))
	_, err := os.Stat(archived)
	assert.NoError(t, err, "raw payload lands in the weekly partition")
}

func TestPollCycleIsolatesFailingFeeds(t *testing.T) {
	const ts = uint64(1754040600)

	mux := http.NewServeMux()
	mux.HandleFunc("/metro/trip-updates", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/tram/vehicle-positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(marshalFeedMessage(t, ts, "v1"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	broken := models.Feed{Mode: models.ModeMetro, Kind: models.KindTripUpdates}
	healthy := models.Feed{Mode: models.ModeTram, Kind: models.KindVehiclePositions}
	p, _ := newTestPoller(t, srv.URL, []models.Feed{broken, healthy})

	p.pollCycle()

	assert.Nil(t, p.LatestFor(broken))
	require.NotNil(t, p.LatestFor(healthy))
}

func TestPollCycleSkipsArchiveWithoutHeaderTimestamp(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bus/service-alerts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(marshalFeedMessage(t, 0, "alert-1"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	feed := models.Feed{Mode: models.ModeBus, Kind: models.KindServiceAlerts}
	p, root := newTestPoller(t, srv.URL, []models.Feed{feed})

	p.pollCycle()

	require.NotNil(t, p.LatestFor(feed), "the message is still retained for serving")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is archived without a header timestamp")
}

func TestPollCycleIgnoresUndecodablePayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metro/trip-updates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a protobuf"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	feed := models.Feed{Mode: models.ModeMetro, Kind: models.KindTripUpdates}
	p, _ := newTestPoller(t, srv.URL, []models.Feed{feed})

	p.pollCycle()
	assert.Nil(t, p.LatestFor(feed))
}

func TestStartTwiceFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	p, _ := newTestPoller(t, srv.URL, nil)
	require.NoError(t, p.Start())
	t.Cleanup(p.Shutdown)

	assert.Error(t, p.Start())
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	const ts = uint64(1754040600)

	mux := http.NewServeMux()
	mux.HandleFunc("/vline/trip-updates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(marshalFeedMessage(t, ts, "t1"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	feed := models.Feed{Mode: models.ModeVLine, Kind: models.KindTripUpdates}
	p, _ := newTestPoller(t, srv.URL, []models.Feed{feed})

	ch, cancel := p.Subscribe()
	defer cancel()

	p.pollCycle()

	select {
	case u := <-ch:
		assert.Equal(t, feed, u.Feed)
		assert.Equal(t, ts, u.Message.GetHeader().GetTimestamp())
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}
