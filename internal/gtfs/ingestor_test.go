package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banksia.lava.moe/internal/models"
)

// fakeStore is an in-memory Store capturing what the ingestor commits.
type fakeStore struct {
	mu        sync.Mutex
	routes    []models.Route
	stops     []models.Stop
	shapes    []models.Shape
	trips     []models.Trip
	stopTimes []models.StopTime
	metadata  map[string]int64

	stopTimeBatches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{metadata: make(map[string]int64)}
}

func (f *fakeStore) ReplaceRoutes(_ context.Context, routes []models.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = routes
	return nil
}

func (f *fakeStore) UpsertStops(_ context.Context, stops []models.Stop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = stops
	return nil
}

func (f *fakeStore) ReplaceShapes(_ context.Context, shapes []models.Shape) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shapes = shapes
	return nil
}

func (f *fakeStore) UpsertTrips(_ context.Context, trips []models.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips = trips
	return nil
}

func (f *fakeStore) DeleteStopTimes(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimes = nil
	f.stopTimeBatches = 0
	return nil
}

func (f *fakeStore) UpsertStopTimes(_ context.Context, stopTimes []models.StopTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimes = append(f.stopTimes, stopTimes...)
	f.stopTimeBatches++
	return nil
}

func (f *fakeStore) UpdateMetadata(_ context.Context, updated time.Time, groups []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, group := range groups {
		f.metadata[group] = updated.Unix()
	}
	return nil
}

func (f *fakeStore) stopByID(id string) (models.Stop, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found models.Stop
	var ok bool
	// Last write wins, matching upsert order.
	for _, s := range f.stops {
		if s.ID == id {
			found, ok = s, true
		}
	}
	return found, ok
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serveZip(t *testing.T, data []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validBundle(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"1/routes.txt": "route_id,route_short_name,route_long_name\nR1,,Mernda Line\n",
		"1/stops.txt": "stop_id,stop_name,stop_lat,stop_lon,parent_station,wheelchair_boarding\n" +
			"S1,Flinders Street Station,-37.8183,144.9671,,1\n" +
			"S2,Flinders Street Platform 1,-37.8184,144.9672,S1,1\n",
		"1/trips.txt": "route_id,service_id,trip_id,shape_id,trip_headsign,direction_id,block_id,wheelchair_accessible\n" +
			"R1,WD,T1,,City,0,,1\n",
		"1/stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"T1,08:05:00,08:06:00,S1,1\n" +
			"T1,25:30:00,25:31:00,S2,2\n",
	})
}

func newTestIngestor(t *testing.T, store Store) *Ingestor {
	t.Helper()
	workDir := filepath.Join(t.TempDir(), "work")
	return NewIngestor(http.DefaultClient, store, slog.Default(), workDir, false)
}

func TestUpdateEndToEnd(t *testing.T) {
	srv := serveZip(t, validBundle(t))
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	asOf := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ing.Update(context.Background(), srv.URL, asOf))

	require.Len(t, store.routes, 1)
	assert.Equal(t, "R1", store.routes[0].ID)
	assert.Equal(t, models.RegionalTrain, store.routes[0].Type, "route type comes from directory code 1")

	require.Len(t, store.stops, 2)
	child, ok := store.stopByID("S2")
	require.True(t, ok)
	parent, ok := store.stopByID(child.ParentStation)
	require.True(t, ok)
	assert.Equal(t, "S1", parent.ID)

	require.Len(t, store.trips, 1)
	assert.Empty(t, store.trips[0].ShapeID)

	require.Len(t, store.stopTimes, 2)
	assert.Equal(t, 485*time.Minute, store.stopTimes[0].Arrival)
	assert.Equal(t, 1530*time.Minute, store.stopTimes[1].Arrival)

	for _, group := range []string{"routes", "stops", "shapes", "trips", "stop_times"} {
		assert.Equal(t, asOf.Unix(), store.metadata[group], "group %s", group)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	srv := serveZip(t, validBundle(t))
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	asOf := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ing.Update(context.Background(), srv.URL, asOf))

	firstRoutes := store.routes
	firstStops := store.stops
	firstStopTimes := store.stopTimes

	require.NoError(t, ing.Update(context.Background(), srv.URL, asOf))

	assert.Equal(t, firstRoutes, store.routes)
	assert.Equal(t, firstStops, store.stops)
	assert.Equal(t, firstStopTimes, store.stopTimes)
}

func TestUpdateExtractsNestedArchives(t *testing.T) {
	inner := buildZip(t, map[string]string{
		"routes.txt":     "route_id,route_long_name\nR2,Craigieburn Line\n",
		"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\nS9,Somewhere,-37.7,144.9\n",
		"trips.txt":      "route_id,service_id,trip_id\nR2,WD,T9\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id\nT9,09:00:00,09:00:30,S9\n",
	})
	outer := buildZip(t, map[string]string{"2/google_transit.zip": string(inner)})

	srv := serveZip(t, outer)
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	require.NoError(t, ing.Update(context.Background(), srv.URL, time.Time{}))

	require.Len(t, store.routes, 1)
	assert.Equal(t, models.MetroTrain, store.routes[0].Type, "route type comes from directory code 2")
	require.Len(t, store.stopTimes, 1)
}

func TestUpdateAbortsOnParseErrorWithoutMetadata(t *testing.T) {
	bundle := buildZip(t, map[string]string{
		"1/routes.txt": "route_id,route_long_name\nR1,Mernda Line\n",
		"1/stops.txt":  "stop_id,stop_name,stop_lat,stop_lon\nS1,Broken,abc,144.9\n",
	})

	srv := serveZip(t, bundle)
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	err := ing.Update(context.Background(), srv.URL, time.Time{})
	require.Error(t, err)
	assert.Empty(t, store.metadata, "metadata must stay at its pre-ingest value")
}

func TestUpdateAbortsOnUnknownModeCode(t *testing.T) {
	bundle := buildZip(t, map[string]string{
		"99/routes.txt": "route_id,route_long_name\nR1,Mystery Line\n",
	})

	srv := serveZip(t, bundle)
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	err := ing.Update(context.Background(), srv.URL, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode code")
}

func TestUpdateAbortsOnDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	store := newFakeStore()
	ing := newTestIngestor(t, store)

	err := ing.Update(context.Background(), srv.URL, time.Time{})
	require.Error(t, err)
	assert.Empty(t, store.metadata)
}

func TestUpdateLogsAndKeepsLastDuplicateStop(t *testing.T) {
	bundle := buildZip(t, map[string]string{
		"1/stops.txt": "stop_id,stop_name,stop_lat,stop_lon\nS1,Old Name,-37.8,144.9\n",
		"2/stops.txt": "stop_id,stop_name,stop_lat,stop_lon\nS1,New Name,-37.8,144.9\n",
	})

	srv := serveZip(t, bundle)
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	require.NoError(t, ing.Update(context.Background(), srv.URL, time.Time{}))

	require.Len(t, store.stops, 2, "both rows are passed through; the store's upsert keeps the last")
	last, ok := store.stopByID("S1")
	require.True(t, ok)
	assert.Equal(t, "New Name", last.Name)
}

func TestUpdateStreamsStopTimesInBatches(t *testing.T) {
	srv := serveZip(t, validBundle(t))
	store := newFakeStore()
	ing := newTestIngestor(t, store)

	require.NoError(t, ing.Update(context.Background(), srv.URL, time.Time{}))
	assert.Equal(t, 1, store.stopTimeBatches, "two rows fit one batch")
}
