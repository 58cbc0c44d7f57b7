package appconf

// Environment describes the operating environment for the process.
type Environment int

const (
	Test Environment = iota
	Development
	Production
)

// EnvFromString maps an environment name to an Environment, defaulting
// to Development for unknown values.
func EnvFromString(s string) Environment {
	switch s {
	case "test":
		return Test
	case "production":
		return Production
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}
