package search

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

const (
	snippetAnalyzerName = "snippet"
	ellipsis            = "..."
)

// Highlighter builds snippets around query term occurrences. Text and terms
// are tokenised by the same analyzer and folded to ASCII, so matching is
// word-bounded and ignores case and diacritics like the store's tokenizer.
type Highlighter struct {
	analyzer analysis.Analyzer
	folder   *asciifolding.AsciiFoldingFilter
	context  int
	pre      string
	post     string
}

func NewHighlighter(context int, pre string, post string) (*Highlighter, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(snippetAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	analyzer := indexMapping.AnalyzerNamed(snippetAnalyzerName)
	if analyzer == nil {
		return nil, errors.New("snippet analyzer is not available")
	}
	return &Highlighter{analyzer: analyzer, folder: asciifolding.New(), context: context, pre: pre, post: post}, nil
}

type matcher struct {
	tokens []string
	prefix bool
}

type span struct {
	start int
	end   int
}

// Snippet returns a window of the configured number of runes on each side of
// the first occurrence of any term, with every occurrence inside the window
// wrapped in the highlight markers. Without an occurrence it returns the first
// runes of text, unmarked.
func (h *Highlighter) Snippet(text string, terms []Term) string {
	occurrences := h.occurrences(text, terms)
	if len(occurrences) == 0 {
		return text[:forwardRunes(text, 0, h.context)]
	}

	anchor := occurrences[0]
	start := backRunes(text, anchor.start, h.context)
	end := forwardRunes(text, anchor.end, h.context)

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	cursor := start
	for _, occurrence := range occurrences {
		if occurrence.start < cursor || occurrence.end > end {
			continue
		}
		b.WriteString(text[cursor:occurrence.start])
		b.WriteString(h.pre)
		b.WriteString(text[occurrence.start:occurrence.end])
		b.WriteString(h.post)
		cursor = occurrence.end
	}
	b.WriteString(text[cursor:end])
	if end < len(text) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func (h *Highlighter) occurrences(text string, terms []Term) []span {
	if text == "" || len(terms) == 0 {
		return nil
	}

	var matchers []matcher
	for _, term := range terms {
		stream := h.analyzer.Analyze([]byte(term.Text))
		if len(stream) == 0 {
			continue
		}
		m := matcher{tokens: make([]string, len(stream)), prefix: term.Prefix}
		for i, token := range stream {
			m.tokens[i] = h.fold(token)
		}
		matchers = append(matchers, m)
	}
	if len(matchers) == 0 {
		return nil
	}

	stream := h.analyzer.Analyze([]byte(text))
	words := make([]string, len(stream))
	for i, token := range stream {
		words[i] = h.fold(token)
	}
	var spans []span
	for i := range stream {
		for _, m := range matchers {
			if last, ok := m.matchAt(words, i); ok {
				spans = append(spans, span{start: stream[i].Start, end: stream[last].End})
			}
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	return spans
}

// fold folds a token's term only. Offsets stay those of the original text.
func (h *Highlighter) fold(token *analysis.Token) string {
	return string(h.folder.Filter(token.Term))
}

// matchAt reports whether m matches the words starting at i, and the index of
// the last matched word.
func (m matcher) matchAt(words []string, i int) (int, bool) {
	if i+len(m.tokens) > len(words) {
		return 0, false
	}
	for j, want := range m.tokens {
		got := words[i+j]
		if m.prefix && j == len(m.tokens)-1 {
			if !strings.HasPrefix(got, want) {
				return 0, false
			}
			continue
		}
		if got != want {
			return 0, false
		}
	}
	return i + len(m.tokens) - 1, true
}

func backRunes(s string, from int, n int) int {
	i := from
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func forwardRunes(s string, from int, n int) int {
	i := from
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}
