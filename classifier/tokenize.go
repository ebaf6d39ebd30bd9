package classifier

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

var wordRe = regexp.MustCompile(`\w+`)

// English stopwords dropped before stemming.
var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`i me my myself we our ours ourselves
		you your yours yourself yourselves he him his himself she her hers
		herself it its itself they them their theirs themselves what which
		who whom this that these those am is are was were be been being
		have has had having do does did doing a an the and but if or
		because as until while of at by for with about against between
		into through during before after above below to from up down in
		out on off over under again further then once here there when
		where why how all any both each few more most other some such no
		nor not only own same so than too very s t can will just don
		should now`) {
		stopwords[w] = true
	}
}

// Tokenize lowercases, extracts word tokens, drops stopwords, and stems.
// Both training corpora and inference sentences go through this exact
// function so vocabularies line up.
func Tokenize(text string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] {
			continue
		}
		out = append(out, english.Stem(w, false))
	}
	return out
}
