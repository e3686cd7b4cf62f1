package query

import (
	"strings"

	"github.com/blevesearch/segment"
)

// Tokenize splits text at Unicode word boundaries (UAX #29) and lowercases the words.
// Elasticsearch's standard tokenizer and bleve's unicode tokenizer follow the same
// rules, so "Don't" stays one word and accents are kept.
func Tokenize(text string) []string {
	var out []string
	seg := segment.NewWordSegmenterDirect([]byte(text))
	for seg.Segment() {
		if seg.Type() != segment.None {
			out = append(out, strings.ToLower(seg.Text()))
		}
	}
	return out
}
