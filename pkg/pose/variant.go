package pose

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant is returned when a model name is not recognized.
var ErrUnknownVariant = errors.New("pose: unknown model variant")

// Variant selects the MoveNet model used for a tracking session.
type Variant int

const (
	// Lightning is the fast, lower-accuracy model (192x192 input).
	Lightning Variant = iota
	// Thunder is the slower, higher-accuracy model (256x256 input).
	Thunder
)

// Variants returns the supported variants in menu order.
func Variants() []Variant {
	return []Variant{Lightning, Thunder}
}

// ParseVariant parses "lightning" or "thunder" (case-insensitive).
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lightning":
		return Lightning, nil
	case "thunder":
		return Thunder, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// ResolveVariant maps a host-supplied model name to a variant. Only the
// exact menu value "thunder" selects Thunder; anything else is Lightning.
func ResolveVariant(s string) Variant {
	if s == Thunder.String() {
		return Thunder
	}
	return Lightning
}

// Valid reports whether v is a supported variant.
func (v Variant) Valid() bool {
	return v == Lightning || v == Thunder
}

// InputSize returns the square model input edge in pixels.
func (v Variant) InputSize() int {
	if v == Thunder {
		return 256
	}
	return 192
}

func (v Variant) String() string {
	switch v {
	case Lightning:
		return "lightning"
	case Thunder:
		return "thunder"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}
