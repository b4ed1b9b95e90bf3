package core

import "strings"

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// GinMode maps the environment onto one of gin's run modes.
func (e Environment) GinMode() string {
	switch e {
	case Production, Staging:
		return "release"
	case Testing:
		return "test"
	default:
		return "debug"
	}
}

// ParseEnvironment normalises the provided value into one of the known environments.
// Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
