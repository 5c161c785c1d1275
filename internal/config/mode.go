package config

import "strings"

// Mode selects a build profile.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// ParseMode maps a raw mode string onto a Mode. Only "production" selects the
// production profile, every other value builds for development.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Production)) {
		return Production
	}
	return Development
}

// ResolveMode picks the mode from the CLI flag first, then the NODE_ENV value.
func ResolveMode(flag, env string) Mode {
	if strings.TrimSpace(flag) != "" {
		return ParseMode(flag)
	}
	return ParseMode(env)
}

func (m Mode) IsProduction() bool {
	return m == Production
}

func (m Mode) String() string {
	return string(m)
}
