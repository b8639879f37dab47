package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Crop identifies one of the supported crops by its capture-app name.
type Crop string

const (
	Soybean   Crop = "soja"
	Wheat     Crop = "trigo"
	Corn      Crop = "maiz"
	Sunflower Crop = "girasol"
)

// Crops lists the supported crops in catalog order.
func Crops() []Crop {
	return []Crop{Soybean, Wheat, Corn, Sunflower}
}

// ParseCrop normalizes a crop name. Unknown or empty names resolve to Soybean.
func ParseCrop(name string) Crop {
	c, _ := LookupCrop(name)
	return c
}

// LookupCrop normalizes a crop name and reports whether it was recognized.
// It returns Soybean for unrecognized names.
func LookupCrop(name string) (Crop, bool) {
	key := foldName(name)
	switch Crop(key) {
	case Soybean, Wheat, Corn, Sunflower:
		return Crop(key), true
	}

	switch key {
	case "soybean", "soy":
		return Soybean, true
	case "wheat":
		return Wheat, true
	case "corn", "maize":
		return Corn, true
	case "sunflower":
		return Sunflower, true
	}
	return Soybean, false
}

// foldName lowercases, trims and strips diacritics: " Maíz" -> "maiz".
func foldName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	// A Transformer chain carries state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		return name
	}
	return folded
}
