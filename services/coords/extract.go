// Package coords finds MGRS grid references in free text and converts them to
// WGS84 latitude and longitude.
package coords

import (
	"regexp"
	"strconv"
	"strings"
)

// Coordinate is a converted grid reference. Raw is the token as it appeared in
// the text.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Raw       string  `json:"raw"`
}

// The digit group is captured loosely and checked after matching, so a second
// group of a different length is treated as trailing text. Letters match in
// either case.
var mgrsPattern = regexp.MustCompile(
	`(?i)\b(\d{1,2}) ?([C-HJ-NP-X]) ?([A-HJ-NP-Z])([A-HJ-NP-V]) ?(\d{1,10})(?: (\d{1,5}))?\b`,
)

var wholeTokenPattern = regexp.MustCompile(`^` + mgrsPattern.String() + `$`)

// Extract returns the first grid reference in text that converts to a valid
// position. ok is false when the text carries none.
func Extract(text string) (Coordinate, bool) {
	for _, m := range mgrsPattern.FindAllStringSubmatchIndex(text, -1) {
		if coordinate, ok := fromMatch(text, m); ok {
			return coordinate, true
		}
	}
	return Coordinate{}, false
}

// Parse converts a single grid reference token, such as a stored raw
// coordinate. Surrounding whitespace is ignored.
func Parse(token string) (Coordinate, bool) {
	token = strings.TrimSpace(token)
	m := wholeTokenPattern.FindStringSubmatchIndex(token)
	if m == nil {
		return Coordinate{}, false
	}
	coordinate, ok := fromMatch(token, m)
	if !ok || coordinate.Raw != token {
		return Coordinate{}, false
	}
	return coordinate, true
}

func fromMatch(text string, m []int) (Coordinate, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	zone, err := strconv.Atoi(group(1))
	if err != nil {
		return Coordinate{}, false
	}

	letters := strings.ToUpper(group(2) + group(3) + group(4))
	ref := gridRef{
		zone:   zone,
		band:   letters[0],
		column: letters[1],
		row:    letters[2],
	}

	end := m[1]
	first, second := group(5), group(6)
	switch {
	case second != "" && len(first) == len(second):
		ref.easting, ref.north = first, second
	case len(first)%2 == 0 && len(first) >= 2:
		half := len(first) / 2
		ref.easting, ref.north = first[:half], first[half:]
		if second != "" {
			end = m[11]
		}
	default:
		return Coordinate{}, false
	}

	lat, lon, err := ref.toLatLon()
	if err != nil {
		return Coordinate{}, false
	}

	return Coordinate{Latitude: lat, Longitude: lon, Raw: text[m[0]:end]}, true
}
