package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// Read text with size limit to prevent memory issues
const maxTextBytes = 10 * 1024 * 1024

const minPrintableRun = 4

var errBinaryContent = errors.New("content looks binary, not text")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractPlainText(_ context.Context, content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(content) > maxTextBytes {
		content = content[:maxTextBytes]
	}

	if bytes.IndexByte(content, 0) >= 0 {
		return "", errBinaryContent
	}

	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}

// extractLegacyBinary recovers readable text from pre-2007 Office files by
// collecting runs of printable ASCII, both single-byte and UTF-16LE encoded.
func extractLegacyBinary(_ context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}

	runs := printableRuns(content, 1)
	runs = append(runs, printableRuns(content, 2)...)
	runs = append(runs, printableRuns(content[1:], 2)...)

	return strings.Join(runs, "\n"), nil
}

// printableRuns scans content with the given stride (1 for single-byte text,
// 2 for UTF-16LE, where every second byte must be zero).
func printableRuns(content []byte, stride int) []string {
	var runs []string
	var current strings.Builder

	flush := func() {
		if current.Len() >= minPrintableRun {
			runs = append(runs, current.String())
		}
		current.Reset()
	}

	for i := 0; i+stride-1 < len(content); i += stride {
		c := content[i]
		printable := c == '\t' || (c >= 0x20 && c < 0x7f)
		if stride == 2 && content[i+1] != 0 {
			printable = false
		}
		if printable {
			current.WriteByte(c)
			continue
		}
		flush()
	}
	flush()

	return runs
}

// collapseWhitespace trims every line and drops empty ones.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
