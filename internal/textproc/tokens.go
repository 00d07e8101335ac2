package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Fold lowercases text and strips diacritics ("Télé" -> "tele").
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

// Words splits folded text into raw words without filtering.
func Words(text string) []string {
	return wordRe.FindAllString(Fold(text), -1)
}

// Tokens returns the filtered, stemmed terms of text.
//
// Letter-only words shorter than three characters and stop words are dropped.
// Words containing a digit are kept from two characters on so model numbers
// and SKUs ("s24", "x100") survive.
func Tokens(text string) []string {
	words := Words(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !keep(w) {
			continue
		}
		out = append(out, Stem(w))
	}
	return out
}

// Normalise returns the tokens of text joined by single spaces.
func Normalise(text string) string {
	return strings.Join(Tokens(text), " ")
}

func keep(w string) bool {
	if isStopWord(w) {
		return false
	}
	if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
		return len(w) >= 2
	}
	return len([]rune(w)) > 2
}
