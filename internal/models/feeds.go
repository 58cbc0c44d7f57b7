package models

// Mode is a realtime feed transit mode as named by the upstream API.
type Mode string

const (
	ModeMetro Mode = "metro"
	ModeTram  Mode = "tram"
	ModeBus   Mode = "bus"
	ModeVLine Mode = "vline"
)

// Kind is a realtime message kind.
type Kind string

const (
	KindTripUpdates      Kind = "trip-updates"
	KindVehiclePositions Kind = "vehicle-positions"
	KindServiceAlerts    Kind = "service-alerts"
)

// Feed identifies one realtime endpoint: a (mode, kind) pair.
type Feed struct {
	Mode Mode
	Kind Kind
}

// Path returns the feed's relative path, used both as the upstream URL
// suffix and as the archive directory prefix.
func (f Feed) Path() string {
	return string(f.Mode) + "/" + string(f.Kind)
}

// DefaultFeeds is the fixed endpoint list. Service alerts are not
// published for vline in the current upstream configuration.
func DefaultFeeds() []Feed {
	return []Feed{
		{ModeMetro, KindTripUpdates},
		{ModeMetro, KindVehiclePositions},
		{ModeMetro, KindServiceAlerts},
		{ModeTram, KindTripUpdates},
		{ModeTram, KindVehiclePositions},
		{ModeTram, KindServiceAlerts},
		{ModeBus, KindTripUpdates},
		{ModeBus, KindVehiclePositions},
		{ModeBus, KindServiceAlerts},
		{ModeVLine, KindTripUpdates},
		{ModeVLine, KindVehiclePositions},
	}
}
