package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slidePattern     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	worksheetPattern = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)
)

// ooxmlPart selects the archive members to read and how their XML is turned
// into lines: text comes from elements with local name textElement, and a line
// ends after each lineElement.
type ooxmlPart struct {
	pattern     *regexp.Regexp
	exactName   string
	textElement string
	lineElement string
}

func (p ooxmlPart) matches(name string) bool {
	if p.exactName != "" {
		return name == p.exactName
	}
	return p.pattern.MatchString(name)
}

func extractDOCX(ctx context.Context, content []byte) (string, error) {
	return extractOOXML(ctx, content, true, ooxmlPart{exactName: "word/document.xml", textElement: "t", lineElement: "p"})
}

func extractPPTX(ctx context.Context, content []byte) (string, error) {
	return extractOOXML(ctx, content, true, ooxmlPart{pattern: slidePattern, textElement: "t", lineElement: "p"})
}

func extractXLSX(ctx context.Context, content []byte) (string, error) {
	return extractOOXML(ctx, content, false,
		ooxmlPart{exactName: "xl/sharedStrings.xml", textElement: "t", lineElement: "si"},
		ooxmlPart{pattern: worksheetPattern, textElement: "t", lineElement: "is"},
	)
}

// extractOOXML reads the matching members of an Office Open XML archive in
// document order. When required is set, at least one member must exist.
func extractOOXML(ctx context.Context, content []byte, required bool, parts ...ooxmlPart) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("could not open office archive: %w", err)
	}

	var sections []string
	found := false
	for _, part := range parts {
		files := matchingMembers(reader, part)
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			found = true
			text, err := readXMLText(file, part.textElement, part.lineElement)
			if err != nil {
				return "", fmt.Errorf("could not read %s: %w", file.Name, err)
			}
			if text != "" {
				sections = append(sections, text)
			}
		}
	}

	if required && !found {
		return "", errors.New("office archive has no document content")
	}

	return strings.Join(sections, "\n"), nil
}

// matchingMembers returns members in natural order (slide2 before slide10).
func matchingMembers(reader *zip.Reader, part ooxmlPart) []*zip.File {
	var files []*zip.File
	for _, file := range reader.File {
		if part.matches(file.Name) {
			files = append(files, file)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return memberNumber(files[i].Name) < memberNumber(files[j].Name)
	})
	return files
}

func memberNumber(name string) int {
	for _, pattern := range []*regexp.Regexp{slidePattern, worksheetPattern} {
		if m := pattern.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	return 0
}

func readXMLText(file *zip.File, textElement string, lineElement string) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return xmlText(io.LimitReader(rc, maxTextBytes), textElement, lineElement)
}

func xmlText(r io.Reader, textElement string, lineElement string) (string, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	var b strings.Builder
	inText := 0
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == textElement {
				inText++
			}
		case xml.EndElement:
			if t.Name.Local == textElement && inText > 0 {
				inText--
			}
			if t.Name.Local == lineElement {
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
			}
		}
	}

	return collapseWhitespace(b.String()), nil
}
