package searchdb

import "time"

// Record is one stored document. Latitude, Longitude and RawCoordinateText are
// either all set or all nil.
type Record struct {
	ID                int64     `json:"id"`
	SourcePath        string    `json:"source_path"`
	FileType          string    `json:"file_type"`
	ExtractedText     string    `json:"extracted_text"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	RawCoordinateText *string   `json:"raw_coordinate_text,omitempty"`
	SizeBytes         int64     `json:"size_bytes"`
	ModifiedAt        time.Time `json:"modified_at"`
	FileHash          string    `json:"file_hash"`
	ProcessedAt       time.Time `json:"processed_at"`
}

func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

type IndexInfo struct {
	Name         string    `json:"name"`
	RecordCount  int       `json:"record_count"`
	GeoCount     int       `json:"geo_count"`
	WarningCount int       `json:"warning_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Hit struct {
	Record Record
	Score  float64
}

// Page holds up to limit hits plus the number of records that matched.
type Page struct {
	Hits  []Hit
	Total int
}
