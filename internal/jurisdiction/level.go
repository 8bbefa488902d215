package jurisdiction

import (
	"errors"
	"fmt"
	"strings"
)

type Level string

const (
	LevelState    Level = "state"
	LevelCounty   Level = "county"
	LevelCity     Level = "city"
	LevelPrecinct Level = "precinct"
)

var Levels = []Level{LevelState, LevelCounty, LevelCity, LevelPrecinct}

var (
	// ErrInvalidURLType is returned when the url argument cannot be turned
	// into a string.
	ErrInvalidURLType = errors.New("invalid url parameter")
	// ErrUnsupportedHost is returned for URLs outside the reporting origins.
	ErrUnsupportedHost  = errors.New("unsupported url origin")
	ErrUnsupportedLevel = errors.New("unsupported level")
)

// ParseLevel accepts any casing of the four supported level names.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range Levels {
		if level == l {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLevel, s)
}

func (l Level) String() string {
	return string(l)
}
