package models

import "fmt"

// RouteType identifies the transit mode a route belongs to. The static
// bundle does not carry this in routes.txt; it is derived from the
// integer mode code of the directory containing the table files.
type RouteType int

const (
	MetroTrain RouteType = iota
	MetroTram
	MetroBus
	RegionalTrain
	RegionalCoach
	RegionalBus
	SkyBus
	Interstate
)

// RouteTypeFromModeCode maps a bundle directory mode code to a RouteType.
func RouteTypeFromModeCode(code int) (RouteType, error) {
	switch code {
	case 1:
		return RegionalTrain, nil
	case 2:
		return MetroTrain, nil
	case 3:
		return MetroTram, nil
	case 4:
		return MetroBus, nil
	case 5:
		return RegionalCoach, nil
	case 6:
		return RegionalBus, nil
	case 10:
		return Interstate, nil
	case 11:
		return SkyBus, nil
	default:
		return 0, fmt.Errorf("unknown mode code %d", code)
	}
}

func (rt RouteType) String() string {
	switch rt {
	case MetroTrain:
		return "metro-train"
	case MetroTram:
		return "metro-tram"
	case MetroBus:
		return "metro-bus"
	case RegionalTrain:
		return "regional-train"
	case RegionalCoach:
		return "regional-coach"
	case RegionalBus:
		return "regional-bus"
	case SkyBus:
		return "sky-bus"
	case Interstate:
		return "interstate"
	}
	return fmt.Sprintf("RouteType(%d)", int(rt))
}

// Route is one row of the routes table. Routes are replaced wholesale on
// each static ingest.
type Route struct {
	ID     string
	Type   RouteType
	Number string // optional short name
	Name   string
}
