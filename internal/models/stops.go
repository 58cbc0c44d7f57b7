package models

// Stop is one row of the stops table. A stop may reference a parent
// station by id, forming a two-level platform -> station hierarchy.
// Stops are upserted per ingest: the same id can appear in more than one
// per-mode table file, and the last write wins.
type Stop struct {
	ID                 string
	Name               string
	Position           Point
	ParentStation      string // optional; empty when the stop has no parent
	WheelchairBoarding bool
	LevelID            string // optional
	PlatformCode       string // optional
}

// Shape is an ordered polyline built from raw shape points grouped by
// shape id and sorted by point sequence. Shapes are replaced wholesale.
type Shape struct {
	ID     string
	Points []Point
}

// ShapePoint is a single raw row of the shapes table before grouping.
type ShapePoint struct {
	ShapeID  string
	Position Point
	Sequence int
}
