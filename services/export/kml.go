package export

import (
	"fmt"
	"html"
	"io"
	"path"

	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/services/coords"
	"github.com/meghashyamc/corescout/services/search"
	kml "github.com/twpayne/go-kml"
)

const MIMEType = "application/vnd.google-earth.kml+xml"

// CoordinateField selects where a placemark's position comes from.
type CoordinateField string

const (
	// FieldCoordinates uses the stored latitude and longitude.
	FieldCoordinates CoordinateField = "coordinates"
	// FieldMGRS and FieldRawCoordinateText re-convert the stored grid token.
	FieldMGRS              CoordinateField = "mgrs"
	FieldRawCoordinateText CoordinateField = "raw_coordinate_text"
)

func ParseCoordinateField(value string) (CoordinateField, error) {
	switch field := CoordinateField(value); field {
	case "":
		return FieldCoordinates, nil
	case FieldCoordinates, FieldMGRS, FieldRawCoordinateText:
		return field, nil
	default:
		return "", &errs.InvalidArgumentError{
			Argument: "coordinate_field",
			Reason:   fmt.Sprintf("unknown field %q, expected one of %s, %s, %s", value, FieldCoordinates, FieldMGRS, FieldRawCoordinateText),
		}
	}
}

type Stats struct {
	Placemarks int `json:"placemarks"`
	Skipped    int `json:"skipped"`
}

// Encode writes results as a KML document named docName, one placemark per
// result that has a position. Results without one are skipped and counted.
// The output is a valid document even when no placemark is written.
func Encode(w io.Writer, docName string, results []search.Result, field CoordinateField) (Stats, error) {
	var stats Stats
	elements := []kml.Element{kml.Name(docName)}
	for _, result := range results {
		lat, lon, ok := position(result, field)
		if !ok {
			stats.Skipped++
			continue
		}
		elements = append(elements, kml.Placemark(
			kml.Name(path.Base(result.SourcePath)),
			kml.Description(html.EscapeString(result.Snippet)),
			kml.Point(
				kml.Coordinates(kml.Coordinate{Lon: lon, Lat: lat}),
			),
		))
		stats.Placemarks++
	}

	if err := kml.KML(kml.Document(elements...)).WriteIndent(w, "", "  "); err != nil {
		return stats, fmt.Errorf("could not write kml: %w", err)
	}
	return stats, nil
}

func position(result search.Result, field CoordinateField) (float64, float64, bool) {
	switch field {
	case FieldMGRS, FieldRawCoordinateText:
		if result.RawCoordinateText == nil {
			return 0, 0, false
		}
		coordinate, ok := coords.Parse(*result.RawCoordinateText)
		return coordinate.Latitude, coordinate.Longitude, ok
	default:
		if result.Latitude == nil || result.Longitude == nil {
			return 0, 0, false
		}
		return *result.Latitude, *result.Longitude, true
	}
}
