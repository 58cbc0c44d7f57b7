package gtfs

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"banksia.lava.moe/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// tableReader reads one fixed-schema GTFS table. The optional UTF-8 BOM is
// stripped and CRLF line endings are normalized by the underlying csv
// reader. The header row is read eagerly into a column-index map; rows
// with the wrong field count or unparseable numeric fields fail the whole
// parse. Missing optional columns decode to empty values, never errors.
type tableReader struct {
	file string
	r    *csv.Reader
	cols map[string]int
}

func newTableReader(r io.Reader, file string) (*tableReader, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", file, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}

	return &tableReader{file: file, r: cr, cols: cols}, nil
}

// read returns the next row, or io.EOF at the end of the table.
func (t *tableReader) read() ([]string, error) {
	row, err := t.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.file, err)
	}
	return row, nil
}

// field returns a column value, or "" when the column is absent.
func (t *tableReader) field(row []string, name string) string {
	i, ok := t.cols[name]
	if !ok {
		return ""
	}
	return row[i]
}

func (t *tableReader) requiredField(row []string, name string) (string, error) {
	i, ok := t.cols[name]
	if !ok {
		return "", fmt.Errorf("%s: missing required column %q", t.file, name)
	}
	return row[i], nil
}

// intField parses an optional integer column; empty values decode to zero.
func (t *tableReader) intField(row []string, name string) (int, error) {
	v := t.field(row, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: column %q: invalid integer %q", t.file, name, v)
	}
	return n, nil
}

func (t *tableReader) floatField(row []string, name string) (float64, error) {
	v, err := t.requiredField(row, name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: column %q: invalid number %q", t.file, name, v)
	}
	return f, nil
}

// ParseRoutes materializes the routes table. The route type is not a
// column of routes.txt; it comes from the bundle directory containing the
// file and is passed in by the caller.
func ParseRoutes(r io.Reader, file string, rt models.RouteType) ([]models.Route, error) {
	t, err := newTableReader(r, file)
	if err != nil {
		return nil, err
	}

	var routes []models.Route
	for {
		row, err := t.read()
		if err == io.EOF {
			return routes, nil
		}
		if err != nil {
			return nil, err
		}

		id, err := t.requiredField(row, "route_id")
		if err != nil {
			return nil, err
		}

		routes = append(routes, models.Route{
			ID:     id,
			Type:   rt,
			Number: t.field(row, "route_short_name"),
			Name:   t.field(row, "route_long_name"),
		})
	}
}

// ParseStops materializes the stops table.
func ParseStops(r io.Reader, file string) ([]models.Stop, error) {
	t, err := newTableReader(r, file)
	if err != nil {
		return nil, err
	}

	var stops []models.Stop
	for {
		row, err := t.read()
		if err == io.EOF {
			return stops, nil
		}
		if err != nil {
			return nil, err
		}

		id, err := t.requiredField(row, "stop_id")
		if err != nil {
			return nil, err
		}
		lat, err := t.floatField(row, "stop_lat")
		if err != nil {
			return nil, err
		}
		lon, err := t.floatField(row, "stop_lon")
		if err != nil {
			return nil, err
		}

		stops = append(stops, models.Stop{
			ID:                 id,
			Name:               t.field(row, "stop_name"),
			Position:           models.Point{Lat: lat, Lon: lon},
			ParentStation:      t.field(row, "parent_station"),
			WheelchairBoarding: t.field(row, "wheelchair_boarding") == "1",
			LevelID:            t.field(row, "level_id"),
			PlatformCode:       t.field(row, "platform_code"),
		})
	}
}

// ParseShapePoints materializes the raw rows of a shapes table.
func ParseShapePoints(r io.Reader, file string) ([]models.ShapePoint, error) {
	t, err := newTableReader(r, file)
	if err != nil {
		return nil, err
	}

	var points []models.ShapePoint
	for {
		row, err := t.read()
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			return nil, err
		}

		id, err := t.requiredField(row, "shape_id")
		if err != nil {
			return nil, err
		}
		lat, err := t.floatField(row, "shape_pt_lat")
		if err != nil {
			return nil, err
		}
		lon, err := t.floatField(row, "shape_pt_lon")
		if err != nil {
			return nil, err
		}
		seq, err := t.intField(row, "shape_pt_sequence")
		if err != nil {
			return nil, err
		}

		points = append(points, models.ShapePoint{
			ShapeID:  id,
			Position: models.Point{Lat: lat, Lon: lon},
			Sequence: seq,
		})
	}
}

// BuildShapes groups raw shape points by shape id and orders each group by
// its explicit point sequence. The returned shapes are sorted by id so a
// re-ingest of an unchanged bundle produces identical output.
func BuildShapes(points []models.ShapePoint) []models.Shape {
	grouped := make(map[string][]models.ShapePoint)
	for _, p := range points {
		grouped[p.ShapeID] = append(grouped[p.ShapeID], p)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shapes := make([]models.Shape, 0, len(ids))
	for _, id := range ids {
		group := grouped[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Sequence < group[j].Sequence
		})

		pts := make([]models.Point, len(group))
		for i, p := range group {
			pts[i] = p.Position
		}
		shapes = append(shapes, models.Shape{ID: id, Points: pts})
	}
	return shapes
}

// ParseTrips materializes the trips table. An empty shape_id is normalized
// to absent.
func ParseTrips(r io.Reader, file string) ([]models.Trip, error) {
	t, err := newTableReader(r, file)
	if err != nil {
		return nil, err
	}

	var trips []models.Trip
	for {
		row, err := t.read()
		if err == io.EOF {
			return trips, nil
		}
		if err != nil {
			return nil, err
		}

		id, err := t.requiredField(row, "trip_id")
		if err != nil {
			return nil, err
		}
		routeID, err := t.requiredField(row, "route_id")
		if err != nil {
			return nil, err
		}
		serviceID, err := t.requiredField(row, "service_id")
		if err != nil {
			return nil, err
		}
		directionID, err := t.intField(row, "direction_id")
		if err != nil {
			return nil, err
		}
		wheelchair, err := t.intField(row, "wheelchair_accessible")
		if err != nil {
			return nil, err
		}

		trips = append(trips, models.Trip{
			ID:                   id,
			RouteID:              routeID,
			ServiceID:            serviceID,
			ShapeID:              t.field(row, "shape_id"),
			Headsign:             t.field(row, "trip_headsign"),
			DirectionID:          directionID,
			BlockID:              t.field(row, "block_id"),
			WheelchairAccessible: wheelchair,
		})
	}
}

// ParseStopTimes streams the stop_times table one row at a time through
// fn. The table can run to tens of millions of rows and is never
// materialized here; a failed parse can only be restarted from scratch.
func ParseStopTimes(r io.Reader, file string, fn func(models.StopTime) error) error {
	t, err := newTableReader(r, file)
	if err != nil {
		return err
	}

	for {
		row, err := t.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		tripID, err := t.requiredField(row, "trip_id")
		if err != nil {
			return err
		}
		stopID, err := t.requiredField(row, "stop_id")
		if err != nil {
			return err
		}
		arrivalRaw, err := t.requiredField(row, "arrival_time")
		if err != nil {
			return err
		}
		arrival, err := ParseGTFSTime(arrivalRaw)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		departureRaw, err := t.requiredField(row, "departure_time")
		if err != nil {
			return err
		}
		departure, err := ParseGTFSTime(departureRaw)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		pickup, err := t.intField(row, "pickup_type")
		if err != nil {
			return err
		}
		dropOff, err := t.intField(row, "drop_off_type")
		if err != nil {
			return err
		}

		st := models.StopTime{
			TripID:      tripID,
			StopID:      stopID,
			Arrival:     arrival,
			Departure:   departure,
			Headsign:    t.field(row, "stop_headsign"),
			PickupType:  pickup,
			DropOffType: dropOff,
		}
		if err := fn(st); err != nil {
			return err
		}
	}
}
