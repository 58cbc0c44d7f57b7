package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"banksia.lava.moe/internal/logging"
	"banksia.lava.moe/internal/models"
)

// stopTimeBatchSize bounds how many stop_times rows are held in memory
// before a batch is handed to the store.
const stopTimeBatchSize = 1_000_000

// tableGroups are the logical table groups updated by one ingest, in load
// order. Metadata is recorded for all of them at once, only after every
// group has committed.
var tableGroups = []string{"routes", "stops", "shapes", "trips", "stop_times"}

// Ingestor orchestrates one full static-bundle ingest:
// download -> extract -> parse -> snapshot-replace. Its steps are strictly
// sequential; any failure aborts the whole ingest and leaves the store's
// version metadata at its pre-ingest value. There is no retry and no
// mutual exclusion against concurrent calls; the trigger is expected to
// serialize updates.
type Ingestor struct {
	client        *http.Client
	store         Store
	logger        *slog.Logger
	workDir       string
	keepWorkFiles bool
}

func NewIngestor(client *http.Client, store Store, logger *slog.Logger, workDir string, keepWorkFiles bool) *Ingestor {
	return &Ingestor{
		client:        client,
		store:         store,
		logger:        logger.With(slog.String("component", "static_ingestor")),
		workDir:       workDir,
		keepWorkFiles: keepWorkFiles,
	}
}

// Update downloads the dataset archive at datasetURL and replaces the
// relational snapshot. asOf is recorded as the dataset timestamp; a zero
// value means now. keepWorkFiles mode leaves the scratch directory (and a
// previously downloaded archive) in place for inspection and resume.
func (ing *Ingestor) Update(ctx context.Context, datasetURL string, asOf time.Time) error {
	datasetPath := filepath.Join(ing.workDir, "dataset.zip")

	if !ing.keepWorkFiles {
		if err := os.RemoveAll(ing.workDir); err != nil {
			return fmt.Errorf("clearing work directory: %w", err)
		}
	}
	if err := os.MkdirAll(ing.workDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	logging.LogOperation(ing.logger, "fetching_dataset", slog.String("url", datasetURL))
	if err := ing.download(ctx, datasetURL, datasetPath); err != nil {
		return err
	}

	logging.LogOperation(ing.logger, "extracting_dataset")
	files, err := extractAll(datasetPath)
	if err != nil {
		return fmt.Errorf("extracting dataset: %w", err)
	}

	if err := ing.loadRoutes(ctx, files); err != nil {
		return err
	}
	if err := ing.loadStops(ctx, files); err != nil {
		return err
	}
	if err := ing.loadShapes(ctx, files); err != nil {
		return err
	}
	if err := ing.loadTrips(ctx, files); err != nil {
		return err
	}
	if err := ing.loadStopTimes(ctx, files); err != nil {
		return err
	}

	if asOf.IsZero() {
		asOf = time.Now()
	}
	logging.LogOperation(ing.logger, "updating_metadata")
	if err := ing.store.UpdateMetadata(ctx, asOf, tableGroups); err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}

	if !ing.keepWorkFiles {
		if err := os.RemoveAll(ing.workDir); err != nil {
			return fmt.Errorf("removing work directory: %w", err)
		}
	}

	logging.LogOperation(ing.logger, "ingest_complete")
	return nil
}

// download streams the dataset archive to disk. An archive already on
// disk is reused, which lets an interrupted extract step resume without
// re-downloading; an interrupted download must start over after clearing
// the work directory.
func (ing *Ingestor) download(ctx context.Context, url, dest string) (err error) {
	if _, statErr := os.Stat(dest); statErr == nil {
		logging.LogOperation(ing.logger, "reusing_downloaded_dataset", slog.String("path", dest))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building dataset request: %w", err)
	}

	resp, err := ing.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading dataset: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, ing.logger, "dataset_response_body")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading dataset: unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer logging.HandleDeferredError(&err, out.Close, ing.logger, "close_dataset_file")

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}

// filesNamed returns the extracted files with the given base name, one per
// per-mode bundle directory.
func filesNamed(files []string, name string) []string {
	var matches []string
	for _, f := range files {
		if filepath.Base(f) == name {
			matches = append(matches, f)
		}
	}
	return matches
}

// routeTypeForFile derives the route type from the integer mode code of
// the directory containing a table file.
func routeTypeForFile(path string) (models.RouteType, error) {
	dir := filepath.Base(filepath.Dir(path))
	code, err := strconv.Atoi(dir)
	if err != nil {
		return 0, fmt.Errorf("%s: directory %q is not a mode code", path, dir)
	}
	rt, err := models.RouteTypeFromModeCode(code)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return rt, nil
}

func (ing *Ingestor) loadRoutes(ctx context.Context, files []string) error {
	logging.LogOperation(ing.logger, "parsing_routes")

	var routes []models.Route
	for _, f := range filesNamed(files, "routes.txt") {
		rt, err := routeTypeForFile(f)
		if err != nil {
			return err
		}

		parsed, err := parseFile(f, func(r *os.File) ([]models.Route, error) {
			return ParseRoutes(r, f, rt)
		})
		if err != nil {
			return err
		}
		routes = append(routes, parsed...)
	}

	logging.LogOperation(ing.logger, "inserting_routes", slog.Int("count", len(routes)))
	if err := ing.store.ReplaceRoutes(ctx, routes); err != nil {
		return fmt.Errorf("storing routes: %w", err)
	}
	return nil
}

func (ing *Ingestor) loadStops(ctx context.Context, files []string) error {
	logging.LogOperation(ing.logger, "parsing_stops")

	var stops []models.Stop
	for _, f := range filesNamed(files, "stops.txt") {
		parsed, err := parseFile(f, func(r *os.File) ([]models.Stop, error) {
			return ParseStops(r, f)
		})
		if err != nil {
			return err
		}
		stops = append(stops, parsed...)
	}

	ing.logDuplicateStops(stops)

	logging.LogOperation(ing.logger, "inserting_stops", slog.Int("count", len(stops)))
	if err := ing.store.UpsertStops(ctx, stops); err != nil {
		return fmt.Errorf("storing stops: %w", err)
	}
	return nil
}

// logDuplicateStops reports stop ids that appear more than once with
// conflicting fields. Duplicates are kept, not rejected: the last parsed
// row wins on insert. Whether that is the right record is an upstream
// data question this pipeline does not try to answer.
func (ing *Ingestor) logDuplicateStops(stops []models.Stop) {
	seen := make(map[string]models.Stop, len(stops))
	for _, stop := range stops {
		prev, dup := seen[stop.ID]
		if dup && prev != stop {
			logging.LogOperation(ing.logger, "duplicate_stop",
				slog.String("stop_id", stop.ID),
				slog.String("name", stop.Name))
		}
		seen[stop.ID] = stop
	}
}

func (ing *Ingestor) loadShapes(ctx context.Context, files []string) error {
	logging.LogOperation(ing.logger, "parsing_shapes")

	var points []models.ShapePoint
	for _, f := range filesNamed(files, "shapes.txt") {
		parsed, err := parseFile(f, func(r *os.File) ([]models.ShapePoint, error) {
			return ParseShapePoints(r, f)
		})
		if err != nil {
			return err
		}
		points = append(points, parsed...)
	}

	shapes := BuildShapes(points)

	logging.LogOperation(ing.logger, "inserting_shapes", slog.Int("count", len(shapes)))
	if err := ing.store.ReplaceShapes(ctx, shapes); err != nil {
		return fmt.Errorf("storing shapes: %w", err)
	}
	return nil
}

func (ing *Ingestor) loadTrips(ctx context.Context, files []string) error {
	logging.LogOperation(ing.logger, "parsing_trips")

	var trips []models.Trip
	for _, f := range filesNamed(files, "trips.txt") {
		parsed, err := parseFile(f, func(r *os.File) ([]models.Trip, error) {
			return ParseTrips(r, f)
		})
		if err != nil {
			return err
		}
		trips = append(trips, parsed...)
	}

	logging.LogOperation(ing.logger, "inserting_trips", slog.Int("count", len(trips)))
	if err := ing.store.UpsertTrips(ctx, trips); err != nil {
		return fmt.Errorf("storing trips: %w", err)
	}
	return nil
}

// loadStopTimes streams every stop_times table into the store in bounded
// batches, never materializing a whole table.
func (ing *Ingestor) loadStopTimes(ctx context.Context, files []string) error {
	if err := ing.store.DeleteStopTimes(ctx); err != nil {
		return fmt.Errorf("clearing stop times: %w", err)
	}

	for _, f := range filesNamed(files, "stop_times.txt") {
		logging.LogOperation(ing.logger, "parsing_stop_times", slog.String("file", f))

		r, err := os.Open(f)
		if err != nil {
			return fmt.Errorf("opening %s: %w", f, err)
		}

		batch := make([]models.StopTime, 0, stopTimeBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			logging.LogOperation(ing.logger, "inserting_stop_times",
				slog.Int("count", len(batch)), slog.String("file", f))
			if err := ing.store.UpsertStopTimes(ctx, batch); err != nil {
				return fmt.Errorf("storing stop times: %w", err)
			}
			batch = batch[:0]
			return nil
		}

		err = ParseStopTimes(r, f, func(st models.StopTime) error {
			batch = append(batch, st)
			if len(batch) == stopTimeBatchSize {
				return flush()
			}
			return nil
		})
		if err == nil {
			err = flush()
		}
		logging.SafeCloseWithLogging(r, ing.logger, "stop_times_file")
		if err != nil {
			return err
		}
	}
	return nil
}

// parseFile opens a table file and runs a materializing parser over it.
func parseFile[T any](path string, parse func(*os.File) ([]T, error)) ([]T, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close() // nolint

	return parse(r)
}
