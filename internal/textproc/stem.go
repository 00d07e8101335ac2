package textproc

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/kljensen/snowball"
)

// DefaultLanguage is the stemming language of the catalog.
const DefaultLanguage = "french"

// Languages lists the Snowball stemmers that can be selected.
var Languages = []string{"english", "french", "hungarian", "norwegian", "russian", "spanish", "swedish"}

var language atomic.Pointer[string]

func init() {
	lang := DefaultLanguage
	language.Store(&lang)
}

// SetLanguage selects the Snowball stemmer used by Stem and Tokens.
// Index generations must be built and queried with the same language.
func SetLanguage(lang string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = DefaultLanguage
	}
	if !slices.Contains(Languages, lang) {
		return fmt.Errorf("unsupported stemming language %q (supported: %s)", lang, strings.Join(Languages, ", "))
	}
	language.Store(&lang)
	return nil
}

// Language returns the current stemming language.
func Language() string {
	return *language.Load()
}

// Stem reduces a folded word to its Snowball stem.
// Words containing digits are returned unchanged.
func Stem(w string) string {
	if strings.ContainsAny(w, "0123456789") {
		return w
	}
	stemmed, err := snowball.Stem(w, Language(), false)
	if err != nil || stemmed == "" {
		return w
	}
	return stemmed
}
