package model

// Mode is the operating mode threaded through construction. Development
// enables the fixed fallback OTP; it must be chosen explicitly.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// ParseMode maps an APP_ENV value to a Mode. Unknown values are rejected so
// a typo never silently enables the development bypass.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "production", "prod":
		return ModeProduction, true
	case "development", "dev":
		return ModeDevelopment, true
	}
	return "", false
}

// IsDevelopment reports whether development shortcuts are enabled.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }
