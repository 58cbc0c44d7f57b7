package models

import "time"

// Trip is one row of the trips table. Trips are upserted per ingest.
type Trip struct {
	ID                   string
	RouteID              string
	ServiceID            string
	ShapeID              string // optional; empty string means no shape
	Headsign             string
	DirectionID          int
	BlockID              string
	WheelchairAccessible int
}

// StopTime is one row of the stop_times table, the largest table in the
// bundle. Arrival and Departure are service-day offsets from midnight and
// may exceed 24h for post-midnight service; they are not wall-clock times.
type StopTime struct {
	TripID      string
	StopID      string
	Arrival     time.Duration
	Departure   time.Duration
	Headsign    string // optional per-stop override
	PickupType  int
	DropOffType int
}
