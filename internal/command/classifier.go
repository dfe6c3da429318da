// Package command turns final transcripts into navigation intents by
// keyword containment.
package command

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/hammamikhairi/ottonav/internal/domain"
)

// Default keyword sets. Matching is containment, not whole-word, so short
// keywords should be chosen with care.
var (
	DefaultAdvance = []string{"next", "forward", "continue", "つぎ", "ツギ", "次", "進んで", "すすんで", "進む"}
	DefaultRetreat = []string{"previous", "back", "まえ", "マエ", "前", "戻って", "もどって", "戻る"}
	DefaultRepeat  = []string{"repeat", "again", "もう一度", "もういちど", "繰り返", "くりかえ"}
)

// Option configures a Classifier.
type Option func(*Classifier)

// WithLocale sets the locale used for case folding (default "en").
func WithLocale(tag string) Option {
	return func(c *Classifier) { c.locale = tag }
}

// WithAdvanceKeywords replaces the "next" keyword set.
func WithAdvanceKeywords(words ...string) Option {
	return func(c *Classifier) { c.rawAdvance = words }
}

// WithRetreatKeywords replaces the "previous" keyword set.
func WithRetreatKeywords(words ...string) Option {
	return func(c *Classifier) { c.rawRetreat = words }
}

// WithRepeatKeywords replaces the "repeat" keyword set.
func WithRepeatKeywords(words ...string) Option {
	return func(c *Classifier) { c.rawRepeat = words }
}

// Match records which keyword sets a transcript hit.
type Match struct {
	Next     bool
	Previous bool
	Repeat   bool
}

// Ambiguous is true when more than one set matched.
func (m Match) Ambiguous() bool {
	n := 0
	for _, b := range []bool{m.Next, m.Previous, m.Repeat} {
		if b {
			n++
		}
	}
	return n > 1
}

// Intent resolves the match. Ambiguous matches resolve to IntentNone.
func (m Match) Intent() domain.Intent {
	switch {
	case m.Ambiguous():
		return domain.IntentNone
	case m.Next:
		return domain.IntentNext
	case m.Previous:
		return domain.IntentPrevious
	case m.Repeat:
		return domain.IntentRepeat
	default:
		return domain.IntentNone
	}
}

// Classifier is a pure keyword classifier. It holds no mutable state after
// construction and is safe for concurrent use.
type Classifier struct {
	locale     string
	tag        language.Tag
	rawAdvance []string
	rawRetreat []string
	rawRepeat  []string

	advance []string
	retreat []string
	repeat  []string
}

// New builds a classifier. It fails if a keyword appears in more than one
// set after normalisation.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		locale:     "en",
		rawAdvance: DefaultAdvance,
		rawRetreat: DefaultRetreat,
		rawRepeat:  DefaultRepeat,
	}
	for _, opt := range opts {
		opt(c)
	}

	tag, err := language.Parse(c.locale)
	if err != nil {
		tag = language.Und
	}
	c.tag = tag

	c.advance = c.normalizeAll(c.rawAdvance)
	c.retreat = c.normalizeAll(c.rawRetreat)
	c.repeat = c.normalizeAll(c.rawRepeat)

	seen := make(map[string]string)
	for name, set := range map[string][]string{"advance": c.advance, "retreat": c.retreat, "repeat": c.repeat} {
		for _, w := range set {
			if other, dup := seen[w]; dup && other != name {
				return nil, fmt.Errorf("keyword %q in both %s and %s sets", w, other, name)
			}
			seen[w] = name
		}
	}
	return c, nil
}

// MustNew is New that panics on error. Intended for package-level defaults.
func MustNew(opts ...Option) *Classifier {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultClassifier = MustNew()

// Classify classifies text with the default keyword sets.
func Classify(text string) domain.Intent {
	return defaultClassifier.Classify(text)
}

// Classify returns the intent for a final transcript. Empty or unmatched
// input yields IntentNone.
func (c *Classifier) Classify(text string) domain.Intent {
	return c.Match(text).Intent()
}

// Match reports which keyword sets text contains.
func (c *Classifier) Match(text string) Match {
	s := c.normalize(text)
	if s == "" {
		return Match{}
	}
	return Match{
		Next:     containsAny(s, c.advance),
		Previous: containsAny(s, c.retreat),
		Repeat:   containsAny(s, c.repeat),
	}
}

// normalize folds width variants (NFKC) and case for the configured locale.
// A Caser is stateful, so one is built per call.
func (c *Classifier) normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.TrimSpace(cases.Lower(c.tag).String(s))
}

func (c *Classifier) normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := c.normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
