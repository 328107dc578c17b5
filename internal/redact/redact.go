// Package redact strips identifying text from moment descriptions before
// they leave the service.
package redact

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/people"
)

const (
	EmailMask = "[email]"
	PhoneMask = "[phone]"
)

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
)

// Redactor replaces person names and aliases with stable pseudonyms
// ("Person A", "Person B", ...) assigned in first-seen order, and masks
// e-mail addresses and phone numbers. Merged people share the pseudonym of
// their terminal person. A Redactor is not safe for concurrent use.
type Redactor struct {
	namesRE *regexp.Regexp
	owner   map[string]string // lower-cased name -> terminal person id
	assign  map[string]string // terminal person id -> pseudonym
}

// New builds a Redactor over a user's people.
func New(ps []*model.Person) *Redactor {
	g := people.NewGraph(ps)
	r := &Redactor{owner: map[string]string{}, assign: map[string]string{}}

	var names []string
	for _, p := range ps {
		terminal, err := g.Resolve(p.PersonID)
		if err != nil {
			terminal = p.PersonID
		}
		for _, n := range append([]string{p.DisplayName}, p.Aliases...) {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			key := strings.ToLower(n)
			if _, dup := r.owner[key]; dup {
				continue
			}
			r.owner[key] = terminal
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return r
	}
	// longest first so "Ann Lee" wins over "Ann"
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	r.namesRE = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	return r
}

// Text redacts a single string.
func (r *Redactor) Text(s string) string {
	s = emailRE.ReplaceAllString(s, EmailMask)
	s = phoneRE.ReplaceAllString(s, PhoneMask)
	if r.namesRE == nil {
		return s
	}
	return r.names(s)
}

// names replaces every name hit that stands on word boundaries. Boundaries
// are checked on runes so accented and non-Latin names match too.
func (r *Redactor) names(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range r.namesRE.FindAllStringIndex(s, -1) {
		if !bounded(s, loc[0], loc[1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(r.pseudonym(r.owner[strings.ToLower(s[loc[0]:loc[1]])]))
		last = loc[1]
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// bounded reports whether s[i:j] is not glued to surrounding word runes.
// Scripts written without spaces (Han, kana, Hangul, Thai and similar) take
// attached particles and honorifics, so their edges need no boundary.
func bounded(s string, i, j int) bool {
	first, _ := utf8.DecodeRuneInString(s[i:j])
	if i > 0 && spaced(first) {
		if prev, _ := utf8.DecodeLastRuneInString(s[:i]); wordRune(prev) {
			return false
		}
	}
	lastRune, _ := utf8.DecodeLastRuneInString(s[i:j])
	if j < len(s) && spaced(lastRune) {
		if next, _ := utf8.DecodeRuneInString(s[j:]); wordRune(next) {
			return false
		}
	}
	return true
}

func wordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsNumber(c) || unicode.Is(unicode.Mn, c)
}

var unspacedScripts = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul,
	unicode.Thai, unicode.Lao, unicode.Khmer, unicode.Myanmar,
}

func spaced(c rune) bool {
	return !unicode.In(c, unspacedScripts...)
}

// Texts redacts each string in order; pseudonyms stay stable across the slice.
func (r *Redactor) Texts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, r.Text(s))
	}
	return out
}

func (r *Redactor) pseudonym(personID string) string {
	if p, ok := r.assign[personID]; ok {
		return p
	}
	p := "Person " + label(len(r.assign))
	r.assign[personID] = p
	return p
}

func label(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}
