package core

import "strings"

// Setting is the care environment a procedure is written for.
type Setting string

const (
	SettingHospital Setting = "Hospital"
	SettingHome     Setting = "Home"
)

// Settings lists every supported setting in a stable order.
func Settings() []Setting {
	return []Setting{SettingHospital, SettingHome}
}

// ParseSetting resolves a case-insensitive setting name.
func ParseSetting(s string) (Setting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hospital":
		return SettingHospital, nil
	case "home":
		return SettingHome, nil
	}

	return "", NewInvalidRequest("setting must be one of Hospital or Home, got %q", s)
}

func (s Setting) String() string { return string(s) }
