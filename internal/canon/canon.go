// Package canon normalizes artist, album and track titles into a comparable form.
//
// The same function runs when a CSV is previewed and when it is matched, so a
// preview never disagrees with the import that follows it.
package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noise is the vocabulary of decorations that do not identify a recording.
const noise = `feat\.?|ft\.?|featuring|with|(?:\d{4}\s+)?remaster(?:ed)?|live|bonus(?:\s+track)?|deluxe(?:\s+edition)?|` +
	`explicit|clean|radio\s+edit|mono|stereo|single\s+version|album\s+version|\d{4}`

// suffixNoise is the subset of noise that is safe to remove after " - ".
const suffixNoise = `feat\.?|ft\.?|featuring|(?:\d{4}\s+)?remaster(?:ed)?|live|bonus\s+track|deluxe(?:\s+edition)?|` +
	`explicit|radio\s+edit|mono|stereo|single\s+version|album\s+version`

var (
	bracketed  = regexp.MustCompile(`\s*[\(\[\{]\s*(?:` + noise + `)(?:[^\w\)\]\}][^\)\]\}]*)?[\)\]\}]`)
	dashSuffix = regexp.MustCompile(`\s+-\s+(?:` + suffixNoise + `)(?:[^\w-][^-]*)?$`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ligatures maps letters that have no canonical decomposition to their ASCII spelling.
var ligatures = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'Æ': "AE",
	'œ': "oe",
	'Œ': "OE",
	'ø': "o",
	'Ø': "O",
	'ł': "l",
	'Ł': "L",
	'đ': "d",
	'ð': "d",
	'Ð': "D",
	'Đ': "D",
	'þ': "th",
	'Þ': "TH",
	'ı': "i",
	'‘': "'",
	'’': "'",
	'“': `"`,
	'”': `"`,
	'–': "-",
	'—': "-",
}

// Canonicalize reduces s to lowercase ASCII with noise suffixes removed.
//
// Steps: decompose (NFKD) and strip diacritics, fold ligatures, drop any remaining non-ASCII, lowercase,
// remove bracketed or dash-separated noise ("(feat. X)", "[Remastered 2009]", "- Live"),
// collapse whitespace, trim. Removal is repeated until nothing changes, so
// Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(s string) string {
	s = strings.ToLower(ToASCII(s))
	for {
		next := stripNoise(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripNoise(s string) string {
	s = bracketed.ReplaceAllString(s, " ")
	s = dashSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ToASCII transliterates s to ASCII without changing case.
func ToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r < unicode.MaxASCII:
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			if repl, ok := ligatures[r]; ok {
				b.WriteString(repl)
			}
		}
	}
	return b.String()
}

// Tokens splits a canonical string into its alphanumeric words.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Key joins the canonical artist and title, e.g. "the beatles|let it be".
func Key(artist, title string) string {
	return Canonicalize(artist) + "|" + Canonicalize(title)
}
