package models

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}
