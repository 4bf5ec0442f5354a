package coords

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	UTM "github.com/im7mortal/UTM"
)

const (
	bandLetters = "CDEFGHJKLMNPQRSTUVWX"
	rowLetters  = "ABCDEFGHJKLMNPQRSTUV"

	squareSize  = 100000.0
	rowCycle    = 2000000.0
	rowSetShift = 5
)

// columnLetters holds the 100 km column letters for sets 1-3; sets 4-6 repeat them.
var columnLetters = [3]string{"ABCDEFGH", "JKLMNPQR", "STUVWXYZ"}

// minNorthing is the lowest UTM northing, in metres, found in each latitude band.
var minNorthing = map[byte]float64{
	'C': 1100000, 'D': 2000000, 'E': 2800000, 'F': 3700000, 'G': 4600000,
	'H': 5500000, 'J': 6400000, 'K': 7300000, 'L': 8200000, 'M': 9100000,
	'N': 0, 'P': 800000, 'Q': 1700000, 'R': 2600000, 'S': 3500000,
	'T': 4400000, 'U': 5300000, 'V': 6200000, 'W': 7000000, 'X': 7900000,
}

var errInvalidGrid = errors.New("invalid grid reference")

// gridRef is a parsed MGRS reference before conversion.
type gridRef struct {
	zone    int
	band    byte
	column  byte
	row     byte
	easting string
	north   string
}

// toLatLon converts a grid reference to WGS84 degrees.
func (g gridRef) toLatLon() (float64, float64, error) {
	if g.zone < 1 || g.zone > 60 {
		return 0, 0, fmt.Errorf("%w: zone %d out of range", errInvalidGrid, g.zone)
	}
	if len(g.easting) != len(g.north) || len(g.easting) > 5 {
		return 0, 0, fmt.Errorf("%w: unbalanced digits", errInvalidGrid)
	}

	set := g.zone % 6
	if set == 0 {
		set = 6
	}

	col := strings.IndexByte(columnLetters[(set-1)%3], g.column)
	if col < 0 {
		return 0, 0, fmt.Errorf("%w: column %c not used in zone %d", errInvalidGrid, g.column, g.zone)
	}
	row := strings.IndexByte(rowLetters, g.row)
	if row < 0 {
		return 0, 0, fmt.Errorf("%w: row %c", errInvalidGrid, g.row)
	}
	if set%2 == 0 {
		row = ((row-rowSetShift)%20 + 20) % 20
	}

	floor, ok := minNorthing[g.band]
	if !ok {
		return 0, 0, fmt.Errorf("%w: band %c", errInvalidGrid, g.band)
	}

	east100k := float64(col+1) * squareSize
	north100k := float64(row) * squareSize
	for north100k < floor {
		north100k += rowCycle
	}

	easting, err := scaledDigits(g.easting)
	if err != nil {
		return 0, 0, err
	}
	northing, err := scaledDigits(g.north)
	if err != nil {
		return 0, 0, err
	}

	lat, lon, err := UTM.ToLatLon(east100k+easting, north100k+northing, g.zone, string(g.band))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errInvalidGrid, err)
	}
	if !withinBand(lat, g.band) || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: %.5f,%.5f outside band %c", errInvalidGrid, lat, lon, g.band)
	}

	return lat, lon, nil
}

// scaledDigits turns a 1-5 digit grid component into metres.
func scaledDigits(digits string) (float64, error) {
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidGrid, err)
	}
	return float64(value) * math.Pow10(5-len(digits)), nil
}

// withinBand allows one degree of slack on either side of the band.
func withinBand(lat float64, band byte) bool {
	i := strings.IndexByte(bandLetters, band)
	if i < 0 {
		return false
	}
	south := -80.0 + 8*float64(i)
	north := south + 8
	if band == 'X' {
		north = 84
	}
	return lat >= south-1 && lat <= north+1
}
