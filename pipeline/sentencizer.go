package pipeline

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/data"
)

// Abbreviations the stock english tokenizer splits on but should not.
var extraAbbreviations = []string{
	"dr", "vs", "mr", "mrs", "ms", "prof", "inc", "fig", "e.g", "i.e", "u.s",
}

var (
	brTagRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)

	// Hashes longest-first so a sha512 is not consumed as two sha256s.
	// IPv6 covers the full form, "::"-compressed middles, and addresses
	// that begin or end with "::".
	indicatorRe = regexp.MustCompile(
		`\b[a-fA-F0-9]{128}\b` +
			`|\b[a-fA-F0-9]{64}\b` +
			`|\b[a-fA-F0-9]{40}\b` +
			`|\b[a-fA-F0-9]{32}\b` +
			`|\b(?:\d{1,3}\.){3}\d{1,3}\b` +
			`|\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b` +
			`|\b(?:[0-9a-fA-F]{1,4}:){1,6}(?::[0-9a-fA-F]{1,4}){1,6}\b` +
			`|\b(?:[0-9a-fA-F]{1,4}:){1,7}:` +
			`|::(?:[0-9a-fA-F]{1,4}:){0,5}[0-9a-fA-F]{1,4}\b`)
)

// Fragment is one sentence-to-be: the raw fragment and its tag-stripped
// text. Hit lists start empty and are filled by classification.
type Fragment struct {
	HTML string
	Text string
}

// Splitter tokenizes article bodies into sentence fragments, bounded by
// the configured sentence limit.
type Splitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	limit     int
}

func NewSplitter(limit int) (*Splitter, error) {
	b, err := data.Asset("data/english.json")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer data: %w", err)
	}
	training, err := sentences.LoadTraining(b)
	if err != nil {
		return nil, fmt.Errorf("parse tokenizer data: %w", err)
	}
	for _, abbrev := range extraAbbreviations {
		training.AbbrevTypes.Add(abbrev)
	}
	return &Splitter{
		tokenizer: sentences.NewSentenceTokenizer(training),
		limit:     limit,
	}, nil
}

// Split turns an article body into at most limit fragments. Sentences the
// tokenizer broke inside defanged tokens ("[." / "]") are merged back,
// sentences carrying hash or IP indicators are re-split so each indicator
// stands alone, and every fragment is further split on <br>.
func (s *Splitter) Split(article string) []Fragment {
	var raw []string
	for _, sen := range s.tokenizer.Tokenize(article) {
		if t := strings.TrimSpace(sen.Text); t != "" {
			raw = append(raw, t)
		}
	}
	raw = mergeDefangedSplits(raw)

	var fragments []Fragment
	for _, sen := range raw {
		for _, part := range isolateIndicators(sen) {
			for _, piece := range brTagRe.Split(part, -1) {
				piece = strings.TrimSpace(piece)
				if piece == "" {
					continue
				}
				fragments = append(fragments, Fragment{
					HTML: piece,
					Text: htmlToText(piece),
				})
				if len(fragments) == s.limit {
					return fragments
				}
			}
		}
	}
	return fragments
}

// mergeDefangedSplits rejoins a sentence ending in "[." with a follower
// beginning "]", where the tokenizer mistook the defanged dot for a boundary.
func mergeDefangedSplits(sens []string) []string {
	var out []string
	for _, sen := range sens {
		if len(out) > 0 && strings.HasSuffix(out[len(out)-1], "[.") && strings.HasPrefix(sen, "]") {
			out[len(out)-1] += sen
			continue
		}
		out = append(out, sen)
	}
	return out
}

// isolateIndicators re-splits a sentence around hash and IP matches so the
// indicators become standalone fragments.
func isolateIndicators(sen string) []string {
	matches := indicatorRe.FindAllStringIndex(sen, -1)
	if matches == nil {
		return []string{sen}
	}
	var parts []string
	prev := 0
	for _, m := range matches {
		if before := strings.TrimSpace(sen[prev:m[0]]); before != "" {
			parts = append(parts, before)
		}
		parts = append(parts, sen[m[0]:m[1]])
		prev = m[1]
	}
	if after := strings.TrimSpace(sen[prev:]); after != "" {
		parts = append(parts, after)
	}
	return parts
}

func htmlToText(fragment string) string {
	text := htmlTagRe.ReplaceAllString(fragment, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
