package sanitize

// Mapping is one validated entry of a flat upload: the caller's relative path
// and its canonical form.
type Mapping struct {
	Position int
	Original string
	Path     string
}

type Rejection struct {
	Position int
	Original string
	Err      error
}

// Map reconstructs the directory structure described by a flat list of
// relative paths. Every path is validated before anything touches the
// filesystem; invalid ones are returned as rejections and do not affect the
// others.
func Map(paths []string) ([]Mapping, []Rejection) {
	mappings := make([]Mapping, 0, len(paths))
	var rejections []Rejection

	for position, original := range paths {
		cleaned, err := Clean(original)
		if err != nil {
			rejections = append(rejections, Rejection{Position: position, Original: original, Err: err})
			continue
		}
		mappings = append(mappings, Mapping{Position: position, Original: original, Path: cleaned})
	}

	return mappings, rejections
}
