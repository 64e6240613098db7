package search

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed broadening.yaml
var defaultBroadening []byte

// BroadeningTable maps narrow query terms ("burger") to broader search
// categories ("hamburger restaurant"). It is read-only after construction.
type BroadeningTable struct {
	entries []broadeningEntry // longest term first
}

type broadeningEntry struct {
	words    []string
	category string
}

// Match describes the narrow term found in a query.
type Match struct {
	Term     string // as written in the query
	Category string
	start    int // word offsets into the tokenized query
	end      int
}

type broadeningFile struct {
	Broadening struct {
		Terms map[string]string `yaml:"terms"`
	} `yaml:"broadening"`
}

// NewBroadeningTable builds a table from term -> category pairs.
func NewBroadeningTable(terms map[string]string) *BroadeningTable {
	t := &BroadeningTable{}
	for term, category := range terms {
		words := strings.Fields(strings.ToLower(term))
		category = strings.TrimSpace(category)
		if len(words) == 0 || category == "" {
			continue
		}
		t.entries = append(t.entries, broadeningEntry{words: words, category: category})
	}
	sort.Slice(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if len(a.words) != len(b.words) {
			return len(a.words) > len(b.words)
		}
		la, lb := len(strings.Join(a.words, " ")), len(strings.Join(b.words, " "))
		if la != lb {
			return la > lb
		}
		return strings.Join(a.words, " ") < strings.Join(b.words, " ")
	})
	return t
}

// LoadBroadeningTable returns the embedded seed table extended by the YAML
// file at path. Entries in the file override seed entries with the same
// term. An empty path loads only the seed.
func LoadBroadeningTable(path string) (*BroadeningTable, error) {
	terms, err := parseBroadening(defaultBroadening)
	if err != nil {
		return nil, eris.Wrap(err, "search: parse embedded broadening table")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "search: read broadening file %s", path)
		}
		extra, err := parseBroadening(data)
		if err != nil {
			return nil, eris.Wrapf(err, "search: parse broadening file %s", path)
		}
		for k, v := range extra {
			terms[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return NewBroadeningTable(terms), nil
}

func parseBroadening(data []byte) (map[string]string, error) {
	var f broadeningFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(f.Broadening.Terms))
	for k, v := range f.Broadening.Terms {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// Len returns the number of entries.
func (t *BroadeningTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup finds the longest narrow term in query. Matching is whole-word,
// case-insensitive and tolerant of a plural "s" or "es" on either side.
func (t *BroadeningTable) Lookup(query string) (Match, bool) {
	if t == nil {
		return Match{}, false
	}
	words := tokenize(query)
	for _, e := range t.entries {
		for i := 0; i+len(e.words) <= len(words); i++ {
			if !wordsMatch(words[i:i+len(e.words)], e.words) {
				continue
			}
			original := make([]string, 0, len(e.words))
			for _, w := range words[i : i+len(e.words)] {
				original = append(original, w.text)
			}
			return Match{
				Term:     strings.Join(original, " "),
				Category: e.category,
				start:    i,
				end:      i + len(e.words),
			}, true
		}
	}
	return Match{}, false
}

// Replace returns query with the matched term swapped for its category.
func (m Match) Replace(query string) string {
	words := tokenize(query)
	out := make([]string, 0, len(words))
	for i, w := range words {
		switch {
		case i == m.start:
			out = append(out, m.Category)
		case i > m.start && i < m.end:
		default:
			out = append(out, w.text)
		}
	}
	return strings.Join(out, " ")
}

type token struct {
	text string // original spelling, punctuation trimmed
	norm string // lower-cased
}

func tokenize(s string) []token {
	fields := strings.Fields(s)
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '&'
		})
		if f == "" {
			continue
		}
		out = append(out, token{text: f, norm: strings.ToLower(f)})
	}
	return out
}

func wordsMatch(query []token, term []string) bool {
	for i, tw := range term {
		if !pluralEqual(query[i].norm, tw) {
			return false
		}
	}
	return true
}

func pluralEqual(a, b string) bool {
	return a == b ||
		a == b+"s" || a == b+"es" ||
		b == a+"s" || b == a+"es"
}
