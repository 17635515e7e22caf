package rates

import (
	"fmt"
	"strings"
)

// Metal identifies a catalog material.
type Metal string

const (
	Gold     Metal = "gold"
	Silver   Metal = "silver"
	Platinum Metal = "platinum"
)

// Tracked lists the metals with a live market rate, in refresh order.
var Tracked = []Metal{Gold, Silver}

// Parse normalises a material name into a Metal.
func Parse(s string) (Metal, error) {
	switch Metal(strings.ToLower(strings.TrimSpace(s))) {
	case Gold:
		return Gold, nil
	case Silver:
		return Silver, nil
	case Platinum:
		return Platinum, nil
	}
	return "", fmt.Errorf("unknown metal %q", s)
}

// Symbol returns the market symbol used by spot price providers.
// Platinum is not tracked and has no symbol.
func (m Metal) Symbol() (string, bool) {
	switch m {
	case Gold:
		return "XAU", true
	case Silver:
		return "XAG", true
	}
	return "", false
}

// IsTracked reports whether a live rate exists for the metal.
func (m Metal) IsTracked() bool {
	_, ok := m.Symbol()
	return ok
}

func (m Metal) String() string {
	return string(m)
}
