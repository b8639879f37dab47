package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// decimalPairRe matches "lat, lon" in decimal degrees, e.g. "-34.6037, -58.3816".
	decimalPairRe = regexp.MustCompile(`^\s*([+-]?\d+(?:\.\d+)?)\s*[,;]\s*([+-]?\d+(?:\.\d+)?)\s*$`)

	// dmsRe matches one degrees-minutes-seconds component as the capture app
	// renders it, e.g. `34° 36' 13.32" S`. West is written "O" (oeste).
	dmsRe = regexp.MustCompile(`(\d+)°\s*(\d+)'\s*(\d+(?:[.,]\d+)?)"\s*([NSEOW])`)
)

// ParseCoordinate reads a sample coordinate in either decimal degrees or the
// DMS form produced by DMS. It reports false for anything else, including the
// capture app's GPS error text.
func ParseCoordinate(s string) (Geo, bool) {
	if m := decimalPairRe.FindStringSubmatch(s); m != nil {
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lon, errLon := strconv.ParseFloat(m[2], 64)
		if errLat != nil || errLon != nil {
			return Geo{}, false
		}
		return validGeo(lat, lon)
	}

	parts := dmsRe.FindAllStringSubmatch(s, -1)
	if len(parts) != 2 {
		return Geo{}, false
	}
	lat, latHemi := dmsToDecimal(parts[0])
	lon, lonHemi := dmsToDecimal(parts[1])
	if !strings.ContainsAny(latHemi, "NS") || strings.ContainsAny(lonHemi, "NS") {
		return Geo{}, false
	}
	return validGeo(lat, lon)
}

// DMS renders the coordinate as "D° M' S.SS\" H, D° M' S.SS\" H".
func (g Geo) DMS() string {
	return dmsComponent(g.Lat, "N", "S") + ", " + dmsComponent(g.Lon, "E", "O")
}

func dmsComponent(v float64, pos, neg string) string {
	abs := math.Abs(v)
	deg := math.Floor(abs)
	minutes := (abs - deg) * 60
	whole := math.Floor(minutes)
	seconds := (minutes - whole) * 60

	hemi := pos
	if v < 0 {
		hemi = neg
	}
	return fmt.Sprintf("%d° %d' %s\" %s", int(deg), int(whole), strconv.FormatFloat(roundTo(seconds, 2), 'f', 2, 64), hemi)
}

func dmsToDecimal(m []string) (float64, string) {
	deg, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds := ParseDecimal(m[3])
	v := deg + minutes/60 + seconds/3600
	switch m[4] {
	case "S", "O", "W":
		v = -v
	}
	return v, m[4]
}

func validGeo(lat, lon float64) (Geo, bool) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Geo{}, false
	}
	return Geo{Lat: lat, Lon: lon}, true
}
