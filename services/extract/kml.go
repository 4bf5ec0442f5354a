package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// kmlTextElements are the KML elements whose character data is indexed.
var kmlTextElements = map[string]bool{
	"name":        true,
	"description": true,
	"Snippet":     true,
	"value":       true,
	"SimpleData":  true,
	"address":     true,
	"text":        true,
}

func extractKML(ctx context.Context, content []byte) (string, error) {
	return kmlText(ctx, bytes.NewReader(content))
}

// extractKMZ reads the root KML document of a KMZ archive: doc.kml when
// present, otherwise the first .kml member.
func extractKMZ(ctx context.Context, content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("could not open kmz archive: %w", err)
	}

	var root *zip.File
	for _, file := range reader.File {
		if !strings.EqualFold(path.Ext(file.Name), ".kml") {
			continue
		}
		if strings.EqualFold(path.Base(file.Name), "doc.kml") {
			root = file
			break
		}
		if root == nil {
			root = file
		}
	}
	if root == nil {
		return "", errors.New("kmz archive has no kml document")
	}

	rc, err := root.Open()
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", root.Name, err)
	}
	defer rc.Close()

	return kmlText(ctx, io.LimitReader(rc, maxTextBytes))
}

func kmlText(ctx context.Context, r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	var lines []string
	var current strings.Builder
	depth := 0
	element := ""

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("could not parse kml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if depth == 0 && kmlTextElements[t.Name.Local] {
				element = t.Name.Local
				current.Reset()
			}
			if element != "" {
				depth++
			}
		case xml.EndElement:
			if element == "" {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			value := current.String()
			if element == "description" || element == "text" {
				value = htmlFragmentText(value)
			}
			if value = collapseWhitespace(value); value != "" {
				lines = append(lines, value)
			}
			element = ""
		case xml.CharData:
			if element != "" {
				current.Write(t)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}
